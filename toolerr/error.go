package toolerr

import (
	"errors"
	"fmt"
	"strings"
)

// Standard error codes reported by the validation and binding pipeline.
const (
	// ErrCodeSchemaMismatch indicates a value's shape or type disagrees with its schema
	ErrCodeSchemaMismatch = "SCHEMA_MISMATCH"

	// ErrCodeMissingContextMarker indicates a tool document lacks the supported @context
	ErrCodeMissingContextMarker = "MISSING_CONTEXT_MARKER"

	// ErrCodeUnresolvedReference indicates a named schema reference is not registered
	ErrCodeUnresolvedReference = "UNRESOLVED_SCHEMA_REFERENCE"

	// ErrCodeEvaluatorFailure indicates the expression evaluator returned an error
	ErrCodeEvaluatorFailure = "EVALUATOR_FAILURE"

	// ErrCodeInvalidSchema indicates a malformed schema definition or a duplicate name
	ErrCodeInvalidSchema = "INVALID_SCHEMA"

	// ErrCodeParseError indicates failure to read or decode a document
	ErrCodeParseError = "PARSE_ERROR"
)

// Sentinel errors, one per code. An *Error matches the sentinel of its code
// under errors.Is.
var (
	// ErrSchemaMismatch is matched by every validation failure
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrMissingContextMarker is matched when the @context marker is absent or unsupported
	ErrMissingContextMarker = errors.New("missing or unsupported context marker")

	// ErrUnresolvedReference is matched when a schema name cannot be resolved
	ErrUnresolvedReference = errors.New("unresolved schema reference")

	// ErrEvaluatorFailure is matched by errors surfaced from an expression evaluator
	ErrEvaluatorFailure = errors.New("evaluator failure")

	// ErrInvalidSchema is matched by malformed schema definitions
	ErrInvalidSchema = errors.New("invalid schema")

	// ErrParse is matched by document decoding failures
	ErrParse = errors.New("parse error")
)

var codeSentinels = map[string]error{
	ErrCodeSchemaMismatch:       ErrSchemaMismatch,
	ErrCodeMissingContextMarker: ErrMissingContextMarker,
	ErrCodeUnresolvedReference:  ErrUnresolvedReference,
	ErrCodeEvaluatorFailure:     ErrEvaluatorFailure,
	ErrCodeInvalidSchema:        ErrInvalidSchema,
	ErrCodeParseError:           ErrParse,
}

// Error is a structured error type for pipeline operations.
// It records which component and operation failed, carries a standard
// error code, and can wrap the underlying cause.
type Error struct {
	// Component is the package that generated the error (e.g. "schema", "tool")
	Component string

	// Operation is the specific operation that failed
	Operation string

	// Code is a standard error code constant
	Code string

	// Message is a human-readable error message
	Message string

	// Details contains additional context as key-value pairs
	Details map[string]any

	// Cause is the underlying error that caused this error
	Cause error

	// Class categorizes the error by its nature
	Class ErrorClass `json:"class,omitempty"`
}

// New creates a new structured error. The class defaults to the code's
// default class.
//
// Example:
//
//	err := toolerr.New("tool", "new", toolerr.ErrCodeMissingContextMarker,
//	    "document has no @context field")
func New(component, operation, code, message string) *Error {
	return &Error{
		Component: component,
		Operation: operation,
		Code:      code,
		Message:   message,
		Class:     DefaultClassForCode(code),
	}
}

// WithCause adds an underlying error to this error.
// This method returns the same error instance for method chaining.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithDetails adds additional context to this error.
// This method returns the same error instance for method chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// WithClass overrides the error classification.
func (e *Error) WithClass(class ErrorClass) *Error {
	e.Class = class
	return e
}

// Error implements the error interface.
// It formats the error as: "component [operation/code]: message: cause"
//
// Examples:
//   - "tool [new/MISSING_CONTEXT_MARKER]: document has no @context field"
//   - "tool [build/SCHEMA_MISMATCH]: job order rejected: at .message: expected string, got int"
func (e *Error) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("%s [%s/%s]", e.Component, e.Operation, e.Code))

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements error equality checking for errors.Is().
// Two Error values are equal if they share Component, Operation and Code.
// An Error also matches the sentinel registered for its code.
func (e *Error) Is(target error) bool {
	if sentinel, ok := codeSentinels[e.Code]; ok && target == sentinel {
		return true
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Component == t.Component && e.Operation == t.Operation && e.Code == t.Code
}

// CodeOf returns the code of the first *Error in err's chain, or "" when
// there is none.
func CodeOf(err error) string {
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}
