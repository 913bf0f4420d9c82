package sim

import "fmt"

// ErrorKind classifies command failures so the transport layer can map them
// to status codes without inspecting message text.
type ErrorKind int

const (
	// KindValidation marks a malformed or out-of-range command parameter.
	KindValidation ErrorKind = iota
	// KindRule marks a well-formed command that violates a gameplay
	// constraint (battery, depth, wire, ownership).
	KindRule
	// KindNotFound marks a reference to an entity that does not exist or is
	// not visible to the caller.
	KindNotFound
)

// Error is the failure type returned by every command intake operation.
// A failed command never mutates world state.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Validationf builds a KindValidation error.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// Rulef builds a KindRule error.
func Rulef(format string, args ...any) *Error {
	return &Error{Kind: KindRule, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a KindNotFound error.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind from an error, defaulting to KindValidation for
// foreign error types.
func KindOf(err error) ErrorKind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindValidation
}
