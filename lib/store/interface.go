package store

import "fmt"

// --------------------------------------------------------------------------
// Error Type
// --------------------------------------------------------------------------

// Error is the error type returned by the typed store layer and the
// collections built on it. Backend and codec failures are kept as Err and
// can be reached with errors.Unwrap or errors.As.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
	Err  error   // The underlying cause, if any
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code. This lets
// callers test against the Err* sentinels with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError creates an Error with an underlying cause
func WrapError(code RetCode, msg string, err error) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
		Err:  err,
	}
}

// Sentinels for errors.Is checks
var (
	ErrInternal         = NewError(RetCInternalError, "internal error")
	ErrUnsupported      = NewError(RetCUnsupportedOperation, "operation not supported by the backend")
	ErrInvalidOperation = NewError(RetCInvalidOperation, "invalid operation")
	ErrSerialization    = NewError(RetCSerialization, "serialization failed")
	ErrBackend          = NewError(RetCBackend, "backend failed")
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation or violated precondition.
	RetCSerialization                       // 4: A key or value could not be encoded or decoded.
	RetCBackend                             // 5: The underlying database reported an error.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCSerialization:
		return "Serialization"
	case RetCBackend:
		return "Backend"
	default:
		return "Unknown"
	}
}
