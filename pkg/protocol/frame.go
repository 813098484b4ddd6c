package protocol

import (
	"bytes"
	"context"
	"fmt"
)

// DefaultMaxFrameBytes bounds how much ReadFrame accumulates.
const DefaultMaxFrameBytes = 1 << 20

// FrameSource is the read half of a transport.
type FrameSource interface {
	ReadUntil(ctx context.Context, delim []byte) ([]byte, error)
}

var closeDelim = []byte(FrameClose)

// ReadFrame reads one complete {...} frame. It keeps reading past a '}' that
// does not start a line, so property values may contain braces. Leading
// bytes before the opening brace (such as the CRLF left over from the
// previous frame) are dropped.
func ReadFrame(ctx context.Context, src FrameSource, maxBytes int) (string, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFrameBytes
	}
	var buf []byte
	for {
		chunk, err := src.ReadUntil(ctx, closeDelim)
		buf = append(buf, chunk...)
		if err != nil {
			return "", err
		}
		if len(buf) > maxBytes {
			return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrFrameTooLarge, len(buf), maxBytes)
		}
		frame := bytes.TrimLeft(buf, " \t\r\n")
		if len(frame) == 0 {
			continue
		}
		if closesFrame(frame) {
			return string(frame), nil
		}
	}
}

func closesFrame(b []byte) bool {
	if !bytes.HasSuffix(b, closeDelim) {
		return false
	}
	rest := b[:len(b)-len(closeDelim)]
	return len(rest) == 0 || rest[len(rest)-1] == '\n'
}
