package booking

import "errors"

// Kind is the stable, machine-checkable classification of a booking or
// cancellation failure. Handlers map kinds onto HTTP status codes.
type Kind string

const (
	KindInvalidInput       Kind = "invalid_input"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindUnavailable        Kind = "unavailable"
	KindConflict           Kind = "conflict"
	KindAlreadyCancelled   Kind = "already_cancelled"
	KindTransactionFailure Kind = "transaction_failure" // retryable by the caller
	KindInternal           Kind = "internal"
)

// Error is a typed business-rule failure with a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// KindOf extracts the Kind from err, or KindInternal for anything that is
// not a booking error.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindInternal
}

func newErr(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func wrapErr(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, cause: cause}
}
