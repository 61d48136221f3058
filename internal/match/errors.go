package match

import "fmt"

// Kind is one of the tagged error kinds exposed to callers (spec.md §4.3.4, §7).
type Kind string

const (
	KindUnauthorized  Kind = "unauthorized"
	KindNotFound      Kind = "not_found"
	KindBadRequest    Kind = "bad_request"
	KindInvalidState  Kind = "invalid_state"
	KindAlreadyInMatch Kind = "already_in_match"
	KindConflict      Kind = "conflict"
	KindUnavailable   Kind = "unavailable"
)

// Error is the tagged value the Match Engine returns for every
// constraint violation; the HTTP layer maps Kind to a status code and
// never needs to sniff error strings.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func newErr(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func ErrUnauthorized(format string, args ...interface{}) *Error {
	return newErr(KindUnauthorized, format, args...)
}

func ErrNotFound(format string, args ...interface{}) *Error {
	return newErr(KindNotFound, format, args...)
}

func ErrBadRequest(format string, args ...interface{}) *Error {
	return newErr(KindBadRequest, format, args...)
}

func ErrInvalidState(format string, args ...interface{}) *Error {
	return newErr(KindInvalidState, format, args...)
}

func ErrAlreadyInMatch(format string, args ...interface{}) *Error {
	return newErr(KindAlreadyInMatch, format, args...)
}

func ErrConflict(format string, args ...interface{}) *Error {
	return newErr(KindConflict, format, args...)
}

func ErrUnavailable(format string, args ...interface{}) *Error {
	return newErr(KindUnavailable, format, args...)
}

// AsMatchError extracts *Error from err, if it is one.
func AsMatchError(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}
