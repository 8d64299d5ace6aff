package expr

import (
	"context"
	"fmt"
	"strings"

	"github.com/zero-day-ai/toolbind/toolerr"
	"github.com/zero-day-ai/toolbind/value"
)

// Expression types understood by DefaultEngines.
const (
	TypeCEL  = "CelExpression"
	TypePath = "PathExpression"
)

// Evaluator evaluates a single expression against a job order.
//
// library is the concatenated expression-library source that was declared on
// the tool. Implementations must be safe for concurrent use and must not
// retain job or library after returning.
type Evaluator interface {
	Evaluate(ctx context.Context, source string, job any, library string) (any, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(ctx context.Context, source string, job any, library string) (any, error)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(ctx context.Context, source string, job any, library string) (any, error) {
	return f(ctx, source, job, library)
}

// Expression is an expression tagged with the engine that understands it.
type Expression struct {
	Type   string
	Source string
}

// Operand is either a literal value or an expression to evaluate.
type Operand struct {
	Literal    any
	Expression *Expression
}

// Literal wraps v as a literal operand.
func Literal(v any) Operand {
	return Operand{Literal: v}
}

// IsExpression reports whether o must be evaluated.
func (o Operand) IsExpression() bool {
	return o.Expression != nil
}

// ParseOperand interprets a document value. A mapping of the form
// {"@type": "<Name>Expression", "value": "<source>"} is an expression;
// anything else is a literal.
func ParseOperand(raw any) Operand {
	m, isMap, keysOK := value.Map(raw)
	if !isMap || !keysOK {
		return Literal(raw)
	}
	typ, ok := m["@type"].(string)
	if !ok || !strings.HasSuffix(typ, "Expression") {
		return Literal(raw)
	}
	src, ok := m["value"].(string)
	if !ok {
		return Literal(raw)
	}
	return Operand{Expression: &Expression{Type: typ, Source: src}}
}

// Engines dispatches expressions to an Evaluator by expression type.
type Engines map[string]Evaluator

// DefaultEngines returns the CEL and path engines.
func DefaultEngines() (Engines, error) {
	c, err := NewCEL()
	if err != nil {
		return nil, err
	}
	return Engines{
		TypeCEL:  c,
		TypePath: Path{},
	}, nil
}

// Evaluate runs x on its engine. Every failure, including an unknown
// expression type, is reported as EVALUATOR_FAILURE with the evaluator's
// error as the cause. Results are normalized.
func (e Engines) Evaluate(ctx context.Context, x Expression, job any, library string) (any, error) {
	ev, ok := e[x.Type]
	if !ok {
		return nil, toolerr.New("expr", "evaluate", toolerr.ErrCodeEvaluatorFailure,
			fmt.Sprintf("no evaluator registered for %s", x.Type))
	}

	out, err := ev.Evaluate(ctx, x.Source, job, library)
	if err != nil {
		return nil, toolerr.New("expr", "evaluate", toolerr.ErrCodeEvaluatorFailure,
			fmt.Sprintf("%s %q failed", x.Type, x.Source)).
			WithCause(err).
			WithDetails(map[string]any{"type": x.Type, "source": x.Source})
	}
	return value.Normalize(out), nil
}

// Resolve returns the literal of o or the result of evaluating it.
func (e Engines) Resolve(ctx context.Context, o Operand, job any, library string) (any, error) {
	if !o.IsExpression() {
		return o.Literal, nil
	}
	return e.Evaluate(ctx, *o.Expression, job, library)
}
