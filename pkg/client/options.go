package client

import (
	"net"
	"strconv"
	"time"

	"github.com/danmuck/lw3/pkg/protocol"
	"github.com/danmuck/lw3/pkg/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultPort is the LW3 TCP port on Lightware devices.
	DefaultPort         = 6107
	DefaultTimeout      = 5 * time.Second
	DefaultDrainTimeout = 500 * time.Millisecond

	// minDrainWindow lets a drain pick up frames the OS already holds even
	// when DrainTimeout is tiny.
	minDrainWindow = 20 * time.Millisecond
)

// Options configures a Client.
type Options struct {
	// Address is host:port; a bare host gets DefaultPort.
	Address string
	// Timeout bounds each operation, including the wait for the connection.
	// Zero means DefaultTimeout.
	Timeout time.Duration
	// DrainTimeout bounds the wait for each stale frame after a timeout.
	// Zero means DefaultDrainTimeout.
	DrainTimeout  time.Duration
	MaxFrameBytes int
	Transport     transport.Options
	Logger        *zerolog.Logger
}

// DefaultOptions returns default client options.
func DefaultOptions(address string) Options {
	addr := withDefaultPort(address)
	return Options{
		Address:       addr,
		Timeout:       DefaultTimeout,
		DrainTimeout:  DefaultDrainTimeout,
		MaxFrameBytes: protocol.DefaultMaxFrameBytes,
		Transport:     transport.DefaultOptions(addr),
	}
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = DefaultDrainTimeout
	}
	if o.MaxFrameBytes <= 0 {
		o.MaxFrameBytes = protocol.DefaultMaxFrameBytes
	}
	return o
}

func (o Options) logger() zerolog.Logger {
	if o.Logger != nil {
		return *o.Logger
	}
	return log.Logger.With().Str("component", "lw3").Logger()
}

func withDefaultPort(address string) string {
	if address == "" {
		return ""
	}
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	return net.JoinHostPort(address, strconv.Itoa(DefaultPort))
}
