package ollama

import "fmt"

// ErrorKind classifies a failed inference call.
type ErrorKind string

const (
	// KindConnection means the endpoint was unreachable.
	KindConnection ErrorKind = "connection"
	// KindTimeout means a deadline elapsed before the call finished.
	KindTimeout ErrorKind = "timeout"
	// KindStatus means the endpoint answered with a non-success status.
	KindStatus ErrorKind = "status"
	// KindMalformed means the response body could not be decoded.
	KindMalformed ErrorKind = "malformed"
)

// Error is the typed failure of one inference call.
type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ollama %s error [%d]: %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("ollama %s error: %s", e.Kind, e.Message)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	oe, ok := err.(*Error)
	return ok && oe.Kind == kind
}
