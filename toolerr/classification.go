package toolerr

import "errors"

// ErrorClass categorizes errors by their nature so callers can decide
// whether correcting the input can help.
type ErrorClass string

const (
	// ErrorClassInfrastructure indicates environment or setup issues
	// Examples: unreadable files, unreachable queue
	ErrorClassInfrastructure ErrorClass = "infrastructure"

	// ErrorClassSemantic indicates input issues the caller can correct
	// Examples: job order does not match the input schema, bad expression
	ErrorClassSemantic ErrorClass = "semantic"

	// ErrorClassTransient indicates temporary failures that may resolve
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassPermanent indicates failures in the tool definition itself
	// Examples: unsupported @context, unresolved schema names
	ErrorClassPermanent ErrorClass = "permanent"
)

// DefaultClassForCode returns the default error class for a given error code.
func DefaultClassForCode(code string) ErrorClass {
	switch code {
	case ErrCodeSchemaMismatch, ErrCodeEvaluatorFailure:
		return ErrorClassSemantic
	case ErrCodeMissingContextMarker, ErrCodeUnresolvedReference, ErrCodeInvalidSchema:
		return ErrorClassPermanent
	case ErrCodeParseError:
		return ErrorClassSemantic
	default:
		return ErrorClassTransient
	}
}

// IsRetryable reports whether repeating the same call could succeed.
// Validation and binding are pure functions of their inputs, so only
// transient and infrastructure failures qualify.
func IsRetryable(err error) bool {
	var te *Error
	if !errors.As(err, &te) {
		return false
	}
	return te.Class == ErrorClassTransient || te.Class == ErrorClassInfrastructure
}
