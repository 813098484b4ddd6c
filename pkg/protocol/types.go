package protocol

import "fmt"

// Kind tags the four single-line response shapes.
type Kind int

const (
	KindNode Kind = iota + 1
	KindProperty
	KindError
	KindMethod
)

func (k Kind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindProperty:
		return "property"
	case KindError:
		return "error"
	case KindMethod:
		return "method"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result is what one frame decodes to: a single Response or a MultiResponse.
// The set of implementations is closed.
type Result interface {
	isResult()
}

// Response is one decoded content line.
type Response interface {
	Result
	Kind() Kind
	ResponseHeader() Header
	// Line renders the response back into its wire form.
	Line() string
	String() string
}

// Header carries the fields every response line has. Prefix is the raw
// two-character tag as received and is kept for diagnostics only.
type Header struct {
	Prefix string
	Path   string
}

func (h Header) ResponseHeader() Header { return h }

type NodeResponse struct {
	Header
}

type PropertyResponse struct {
	Header
	Value string
}

type MethodResponse struct {
	Header
	Name string
}

type ErrorResponse struct {
	Header
	Code    string
	Message string
}

// MultiResponse holds the content lines of a frame in arrival order.
type MultiResponse []Response

func (NodeResponse) isResult()     {}
func (PropertyResponse) isResult() {}
func (MethodResponse) isResult()   {}
func (ErrorResponse) isResult()    {}
func (MultiResponse) isResult()    {}

func (NodeResponse) Kind() Kind     { return KindNode }
func (PropertyResponse) Kind() Kind { return KindProperty }
func (MethodResponse) Kind() Kind   { return KindMethod }
func (ErrorResponse) Kind() Kind    { return KindError }

func (r NodeResponse) Line() string {
	return r.Prefix + " " + r.Path
}

func (r PropertyResponse) Line() string {
	return r.Prefix + " " + r.Path + "=" + r.Value
}

func (r MethodResponse) Line() string {
	return r.Prefix + " " + r.Path + ":" + r.Name
}

func (r ErrorResponse) Line() string {
	return r.Prefix + " " + r.Path + " %" + r.Code + ":" + r.Message
}

func (r NodeResponse) String() string     { return r.Path }
func (r PropertyResponse) String() string { return r.Value }
func (r MethodResponse) String() string   { return r.Name }
func (r ErrorResponse) String() string    { return r.Message }

// Describe names the shape of res for error messages.
func Describe(res Result) string {
	switch r := res.(type) {
	case Response:
		return r.Kind().String()
	case MultiResponse:
		return fmt.Sprintf("multi(%d)", len(r))
	default:
		return fmt.Sprintf("%T", res)
	}
}
