package faults

import "errors"

type ErrorCategory string

const (
	ValidationError   ErrorCategory = "ValidationError"
	NotFoundError     ErrorCategory = "NotFoundError"
	AuthError         ErrorCategory = "AuthError"
	TransportError    ErrorCategory = "TransportError"
	InternalError     ErrorCategory = "InternalError"
	TypeMismatchError ErrorCategory = "TypeMismatchError"
	ObjectStateError  ErrorCategory = "ObjectStateError"
	RemoteCallError   ErrorCategory = "RemoteCallError"
	ConvergenceError  ErrorCategory = "ConvergenceError"
)

type TypedError struct {
	Category ErrorCategory
	Message  string
	Cause    error
}

func (e *TypedError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message != "" && e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return string(e.Category)
}

func (e *TypedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func NewTypedError(category ErrorCategory, message string, cause error) *TypedError {
	return &TypedError{
		Category: category,
		Message:  message,
		Cause:    cause,
	}
}

func IsCategory(err error, category ErrorCategory) bool {
	if err == nil {
		return false
	}

	var typedErr *TypedError
	if !errors.As(err, &typedErr) {
		return false
	}
	return typedErr.Category == category
}

// CategoryOf returns the category of the outermost TypedError in err's chain.
func CategoryOf(err error) (ErrorCategory, bool) {
	var typedErr *TypedError
	if !errors.As(err, &typedErr) {
		return "", false
	}
	return typedErr.Category, true
}

func TypeMismatch(message string, cause error) error {
	return NewTypedError(TypeMismatchError, message, cause)
}

func ObjectState(message string, cause error) error {
	return NewTypedError(ObjectStateError, message, cause)
}

func RemoteCall(message string, cause error) error {
	return NewTypedError(RemoteCallError, message, cause)
}

func Convergence(message string, cause error) error {
	return NewTypedError(ConvergenceError, message, cause)
}
