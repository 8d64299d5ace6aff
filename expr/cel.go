package expr

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
	"github.com/google/cel-go/ext"
)

// JobVariable is the name under which the job order is visible to CEL
// expressions.
const JobVariable = "job"

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// CEL evaluates Common Expression Language expressions.
//
// The library is a sequence of definitions, one per line:
//
//	greeting = "hello " + job.name
//	shout = greeting.upperAscii()
//
// Definitions are evaluated in order, each seeing the job and every earlier
// definition, and are then visible to the expression as plain variables.
// Blank lines and lines starting with # or // are ignored.
type CEL struct {
	env *cel.Env
}

// NewCEL creates a CEL evaluator with the string extension library enabled.
// Extra environment options are appended to the defaults.
func NewCEL(opts ...cel.EnvOption) (*CEL, error) {
	base := []cel.EnvOption{
		cel.Variable(JobVariable, cel.DynType),
		ext.Strings(),
	}
	env, err := cel.NewEnv(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &CEL{env: env}, nil
}

// Evaluate implements Evaluator.
func (c *CEL) Evaluate(ctx context.Context, source string, job any, library string) (any, error) {
	defs, err := parseLibrary(library)
	if err != nil {
		return nil, err
	}

	env := c.env
	activation := map[string]any{JobVariable: job}
	for _, d := range defs {
		v, err := evalCEL(ctx, env, d.source, activation)
		if err != nil {
			return nil, fmt.Errorf("library definition %q (line %d): %w", d.name, d.line, err)
		}
		env, err = env.Extend(cel.Variable(d.name, cel.DynType))
		if err != nil {
			return nil, fmt.Errorf("library definition %q (line %d): %w", d.name, d.line, err)
		}
		activation[d.name] = v
	}

	return evalCEL(ctx, env, source, activation)
}

func evalCEL(ctx context.Context, env *cel.Env, source string, activation map[string]any) (any, error) {
	ast, iss := env.Compile(source)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile: %w", iss.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	out, _, err := prg.ContextEval(ctx, activation)
	if err != nil {
		return nil, fmt.Errorf("eval: %w", err)
	}
	return fromCEL(out)
}

type definition struct {
	name   string
	source string
	line   int
}

func parseLibrary(library string) ([]definition, error) {
	var defs []definition
	seen := map[string]bool{JobVariable: true}

	for i, raw := range strings.Split(library, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}

		eq := strings.Index(line, "=")
		if eq <= 0 || strings.HasPrefix(line[eq:], "==") {
			return nil, fmt.Errorf("library line %d: expected `name = expression`", i+1)
		}
		name := strings.TrimSpace(line[:eq])
		src := strings.TrimSpace(line[eq+1:])
		if !identPattern.MatchString(name) {
			return nil, fmt.Errorf("library line %d: invalid name %q", i+1, name)
		}
		if seen[name] {
			return nil, fmt.Errorf("library line %d: %q is already defined", i+1, name)
		}
		if src == "" {
			return nil, fmt.Errorf("library line %d: empty expression for %q", i+1, name)
		}
		seen[name] = true
		defs = append(defs, definition{name: name, source: src, line: i + 1})
	}
	return defs, nil
}

// fromCEL converts a CEL result into the canonical value representation.
func fromCEL(v ref.Val) (any, error) {
	switch x := v.(type) {
	case types.Null:
		return nil, nil
	case types.Bool:
		return bool(x), nil
	case types.Int:
		return int64(x), nil
	case types.Uint:
		return uint64(x), nil
	case types.Double:
		return float64(x), nil
	case types.String:
		return string(x), nil
	case types.Bytes:
		return []byte(x), nil
	case traits.Mapper:
		out := map[string]any{}
		it := x.Iterator()
		for it.HasNext() == types.True {
			k := it.Next()
			ks, ok := k.(types.String)
			if !ok {
				return nil, fmt.Errorf("map key %v is not a string", k.Value())
			}
			item, err := fromCEL(x.Get(k))
			if err != nil {
				return nil, err
			}
			out[string(ks)] = item
		}
		return out, nil
	case traits.Lister:
		var out []any
		it := x.Iterator()
		for it.HasNext() == types.True {
			item, err := fromCEL(it.Next())
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		if out == nil {
			out = []any{}
		}
		return out, nil
	}

	if s, ok := v.ConvertToType(types.StringType).(types.String); ok {
		return string(s), nil
	}
	return nil, fmt.Errorf("unsupported CEL result type %s", v.Type().TypeName())
}
