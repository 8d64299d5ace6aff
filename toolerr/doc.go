// Package toolerr provides structured error types for the toolbind pipeline.
//
// # Error Codes
//
// Standard error codes are defined as constants:
//
//   - ErrCodeSchemaMismatch: a value disagrees with its schema
//   - ErrCodeMissingContextMarker: the tool document's @context is absent or unsupported
//   - ErrCodeUnresolvedReference: a named schema reference is not registered
//   - ErrCodeEvaluatorFailure: the expression evaluator failed
//   - ErrCodeInvalidSchema: a schema definition is malformed
//   - ErrCodeParseError: a document could not be read or decoded
//
// # Usage
//
// Create an error and attach its cause:
//
//	err := toolerr.New("tool", "build", toolerr.ErrCodeSchemaMismatch,
//	    "job order rejected").WithCause(verr)
//
// Match by code through wrapping layers:
//
//	if errors.Is(err, toolerr.ErrSchemaMismatch) {
//	    // caller may correct the job order and retry
//	}
package toolerr
