package protocol

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	LineTerminator = "\r\n"
	FrameOpen      = "{"
	FrameClose     = "}"
)

var errorLinePattern = regexp.MustCompile(`^(.E) (.+) %(E[0-9]+):(.*)$`)

const (
	patternError    = "<p>E <path> %E<digits>:<message>"
	patternProperty = "p<x> <path>=<value>"
	patternNode     = "n<x> <path>"
	patternMethod   = "m<x> <path>:<name>"
)

// Classify reports which response kind line is. The second-character E test
// runs first because error prefixes may start with p, n or m.
func Classify(line string) (Kind, error) {
	if len(line) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownResponse, line)
	}
	switch {
	case line[1] == 'E':
		return KindError, nil
	case line[0] == 'p':
		return KindProperty, nil
	case line[0] == 'n':
		return KindNode, nil
	case line[0] == 'm':
		return KindMethod, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownResponse, line)
}

// ParseLine decodes one content line.
func ParseLine(line string) (Response, error) {
	kind, err := Classify(line)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindError:
		return parseError(line)
	case KindProperty:
		return parseProperty(line)
	case KindNode:
		return parseNode(line)
	case KindMethod:
		return parseMethod(line)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownResponse, line)
	}
}

func malformed(line, pattern string) error {
	return fmt.Errorf("%w: %q does not match %q", ErrMalformedLine, line, pattern)
}

// splitPrefix separates the two-character tag from the rest of the line,
// which must follow a single space.
func splitPrefix(line string) (prefix, rest string, ok bool) {
	if len(line) < 4 || line[2] != ' ' {
		return "", "", false
	}
	return line[:2], line[3:], true
}

func parseError(line string) (Response, error) {
	m := errorLinePattern.FindStringSubmatch(line)
	if m == nil {
		return nil, malformed(line, patternError)
	}
	return ErrorResponse{
		Header:  Header{Prefix: m[1], Path: m[2]},
		Code:    m[3],
		Message: m[4],
	}, nil
}

// parseProperty splits the tail at the first '=' so values may carry '='.
func parseProperty(line string) (Response, error) {
	prefix, rest, ok := splitPrefix(line)
	if !ok {
		return nil, malformed(line, patternProperty)
	}
	path, value, found := strings.Cut(rest, "=")
	if !found || path == "" {
		return nil, malformed(line, patternProperty)
	}
	return PropertyResponse{
		Header: Header{Prefix: prefix, Path: path},
		Value:  value,
	}, nil
}

func parseNode(line string) (Response, error) {
	prefix, path, ok := splitPrefix(line)
	if !ok || strings.ContainsRune(path, ' ') {
		return nil, malformed(line, patternNode)
	}
	return NodeResponse{Header: Header{Prefix: prefix, Path: path}}, nil
}

func parseMethod(line string) (Response, error) {
	prefix, rest, ok := splitPrefix(line)
	if !ok {
		return nil, malformed(line, patternMethod)
	}
	i := strings.LastIndexByte(rest, ':')
	if i <= 0 || i == len(rest)-1 {
		return nil, malformed(line, patternMethod)
	}
	return MethodResponse{
		Header: Header{Prefix: prefix, Path: rest[:i]},
		Name:   rest[i+1:],
	}, nil
}

// ParseFrame decodes a complete {...} frame. A frame with exactly one content
// line yields that Response; any other count yields a MultiResponse, possibly
// empty. The first bad line fails the whole frame.
func ParseFrame(raw string) (Result, error) {
	lines := strings.Split(strings.TrimSpace(raw), LineTerminator)
	if len(lines) < 2 || !strings.HasPrefix(lines[0], FrameOpen) {
		return nil, fmt.Errorf("%w: missing %q signature in %q", ErrMalformedFrame, FrameOpen, raw)
	}
	if last := strings.TrimSpace(lines[len(lines)-1]); last != FrameClose && last != "" {
		return nil, fmt.Errorf("%w: missing %q terminator in %q", ErrMalformedFrame, FrameClose, raw)
	}

	if len(lines) == 3 {
		resp, err := ParseLine(lines[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
		}
		return resp, nil
	}

	content := lines[1 : len(lines)-1]
	out := make(MultiResponse, 0, len(content))
	for i, line := range content {
		resp, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformedFrame, i+1, err)
		}
		out = append(out, resp)
	}
	return out, nil
}
