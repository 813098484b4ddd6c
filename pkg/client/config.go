package client

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type fileConfig struct {
	Address       string `toml:"address"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Timeout       string `toml:"timeout"`
	DialTimeout   string `toml:"dial_timeout"`
	DrainTimeout  string `toml:"drain_timeout"`
	MaxFrameBytes int    `toml:"max_frame_bytes"`
	BufferSize    int    `toml:"buffer_size"`
}

// LoadOptions reads a TOML device file on top of DefaultOptions. Either
// address or host (with optional port) must be set.
func LoadOptions(path string) (Options, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Options{}, fmt.Errorf("load lw3 config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Options{}, fmt.Errorf("load lw3 config: unknown key %q", undecoded[0].String())
	}

	address := strings.TrimSpace(raw.Address)
	if address == "" && meta.IsDefined("host") {
		address = strings.TrimSpace(raw.Host)
		if meta.IsDefined("port") {
			address = net.JoinHostPort(address, strconv.Itoa(raw.Port))
		}
	}
	cfg := DefaultOptions(address)

	if meta.IsDefined("timeout") {
		d, err := parseDuration("timeout", raw.Timeout)
		if err != nil {
			return Options{}, err
		}
		cfg.Timeout = d
	}
	if meta.IsDefined("dial_timeout") {
		d, err := parseDuration("dial_timeout", raw.DialTimeout)
		if err != nil {
			return Options{}, err
		}
		cfg.Transport.DialTimeout = d
	}
	if meta.IsDefined("drain_timeout") {
		d, err := parseDuration("drain_timeout", raw.DrainTimeout)
		if err != nil {
			return Options{}, err
		}
		cfg.DrainTimeout = d
	}
	if meta.IsDefined("max_frame_bytes") {
		cfg.MaxFrameBytes = raw.MaxFrameBytes
	}
	if meta.IsDefined("buffer_size") {
		cfg.Transport.BufferSize = raw.BufferSize
	}

	if err := ValidateOptions(cfg); err != nil {
		return Options{}, fmt.Errorf("load lw3 config (%s): %w", path, err)
	}
	return cfg, nil
}

func ValidateOptions(cfg Options) error {
	if strings.TrimSpace(cfg.Address) == "" {
		return fmt.Errorf("address is required")
	}
	if strings.HasPrefix(cfg.Address, ":") {
		return fmt.Errorf("host required when address is a port")
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if cfg.DrainTimeout <= 0 {
		return fmt.Errorf("drain_timeout must be positive")
	}
	if cfg.MaxFrameBytes < 0 {
		return fmt.Errorf("max_frame_bytes must not be negative")
	}
	return nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
