package protocol

import (
	"fmt"
	"strings"
)

// TransactionTag is the fixed signature sent with every command. Devices echo
// it in the frame's opening line; it is never varied or checked.
const TransactionTag = "0000"

// Op is an LW3 command verb.
type Op string

const (
	OpGet    Op = "GET"
	OpSet    Op = "SET"
	OpGetAll Op = "GETALL"
	OpCall   Op = "CALL"
)

// Command is one request line.
type Command struct {
	Op     Op
	Path   string
	Value  string
	Method string
}

func Get(path string) Command           { return Command{Op: OpGet, Path: path} }
func Set(path, value string) Command    { return Command{Op: OpSet, Path: path, Value: value} }
func GetAll(path string) Command        { return Command{Op: OpGetAll, Path: path} }
func CallMethod(path, m string) Command { return Command{Op: OpCall, Path: path, Method: m} }

// Validate rejects arguments that would split the command across lines.
func (c Command) Validate() error {
	args := [...]struct{ name, v string }{{"path", c.Path}, {"value", c.Value}, {"method", c.Method}}
	for _, a := range args {
		if strings.ContainsAny(a.v, "\r\n") {
			return fmt.Errorf("%w: %s contains a line break", ErrInvalidArgument, a.name)
		}
	}
	if c.Path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidArgument)
	}
	switch c.Op {
	case OpGet, OpSet, OpGetAll:
		return nil
	case OpCall:
		if c.Method == "" {
			return fmt.Errorf("%w: empty method name", ErrInvalidArgument)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidArgument, c.Op)
	}
}

// Target renders the argument part of the command as it appears on the wire.
func (c Command) Target() string {
	switch c.Op {
	case OpSet:
		return c.Path + "=" + c.Value
	case OpCall:
		return c.Path + ":" + c.Method
	default:
		return c.Path
	}
}

func (c Command) String() string {
	return TransactionTag + "#" + string(c.Op) + " " + c.Target()
}

// Encode validates c and returns the terminated wire line.
func (c Command) Encode() ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return []byte(c.String() + LineTerminator), nil
}
