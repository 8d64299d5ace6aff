// Package expr defines the contract between the binding pipeline and the
// expression languages used in tool documents.
//
// The pipeline never interprets expressions itself. A binding's valueFrom is
// an Operand: either a literal or an Expression such as
//
//	{"@type": "CelExpression", "value": "job.message.upperAscii()"}
//
// which is dispatched by type through Engines to an Evaluator. Two engines
// ship with the package: CEL (github.com/google/cel-go) and Path
// (github.com/tidwall/gjson). Callers may register their own.
package expr
