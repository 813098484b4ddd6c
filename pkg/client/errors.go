package client

import (
	"errors"
	"fmt"

	"github.com/danmuck/lw3/pkg/protocol"
)

var (
	ErrTimeout            = errors.New("client: round trip timed out")
	ErrConnectionLost     = errors.New("client: connection lost while waiting for response")
	ErrClosed             = errors.New("client: connection closed")
	ErrUnexpectedResponse = errors.New("client: unexpected response type")
)

// MismatchError reports a well-formed reply of the wrong shape.
type MismatchError struct {
	Op   protocol.Op
	Path string
	Want protocol.Kind
	Got  string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("client: %s %s returned %s, want %s", e.Op, e.Path, e.Got, e.Want)
}

func (e *MismatchError) Unwrap() error {
	return ErrUnexpectedResponse
}

// ShouldReconnect reports whether err leaves the connection unusable.
// Parse, device, mismatch and timeout errors do not.
func ShouldReconnect(err error) bool {
	return errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, ErrClosed) ||
		errors.Is(err, protocol.ErrFrameTooLarge)
}
