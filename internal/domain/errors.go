package domain

import (
	"errors"
	"fmt"
)

// Kind classifies failures so callers never have to inspect message text.
type Kind uint8

const (
	// KindStoreFailure is the zero value: anything not classified otherwise is
	// treated as a persistence failure.
	KindStoreFailure Kind = iota
	KindInvalidArgument
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "store_failure"
	}
}

// Error is the typed failure returned by the services.
type Error struct {
	Kind Kind

	// Message is safe to show to API clients, except for KindStoreFailure.
	Message string

	// Op names the operation that failed, e.g. "cart.add_item".
	Op string

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Op != "" {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a new domain error with a formatted message.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError attaches a kind and operation to err. Returns nil if err is nil.
func WrapError(err error, kind Kind, op, message string) error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// KindOf extracts the kind of err. Errors that are not domain errors are
// store failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStoreFailure
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ErrorMessage returns the client-facing message for err. Store failures get a
// generic message so driver errors never leak.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Kind != KindStoreFailure {
		return e.Message
	}
	return "internal server error"
}

// ErrorOp extracts the operation from err, for logging.
func ErrorOp(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}
