package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownResponse = errors.New("protocol: unknown response type")
	ErrMalformedLine   = errors.New("protocol: malformed response line")
	ErrMalformedFrame  = errors.New("protocol: malformed frame")
	ErrFrameTooLarge   = errors.New("protocol: frame too large")
	ErrInvalidArgument = errors.New("protocol: invalid command argument")
)

// RemoteError is an error reported by the device itself.
type RemoteError struct {
	Prefix  string
	Path    string
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("protocol: device error %s at %s: %s", e.Code, e.Path, e.Message)
}

// AsRemoteError converts an ErrorResponse into the error callers receive.
func AsRemoteError(r ErrorResponse) *RemoteError {
	return &RemoteError{
		Prefix:  r.Prefix,
		Path:    r.Path,
		Code:    r.Code,
		Message: r.Message,
	}
}

// Err returns the first device error carried by res, or nil.
func Err(res Result) error {
	switch r := res.(type) {
	case ErrorResponse:
		return AsRemoteError(r)
	case MultiResponse:
		for _, item := range r {
			if e, ok := item.(ErrorResponse); ok {
				return AsRemoteError(e)
			}
		}
		return nil
	case NodeResponse, PropertyResponse, MethodResponse:
		return nil
	case nil:
		return nil
	default:
		panic(fmt.Sprintf("protocol: unhandled result %T", res))
	}
}
