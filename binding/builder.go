package binding

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/zero-day-ai/toolbind/expr"
	"github.com/zero-day-ai/toolbind/schema"
	"github.com/zero-day-ai/toolbind/toolerr"
	"github.com/zero-day-ai/toolbind/value"
)

// Binding is one command-line fragment before formatting.
type Binding struct {
	// Position orders the binding in the final argument list.
	Position Key `json:"position"`

	// Prefix is emitted before the value.
	Prefix string `json:"prefix,omitempty"`

	// ItemSeparator joins list values into one argument.
	ItemSeparator string `json:"itemSeparator,omitempty"`

	// ValueFrom is the operand that produces Value: the bound value itself
	// unless the binding declares an expression.
	ValueFrom expr.Operand `json:"-"`

	// Value is the resolved value, set by Resolve.
	Value any `json:"value"`
}

// Result is the output of one Build call.
type Result struct {
	// Bindings are in build order; call Sort for argument order.
	Bindings []Binding

	// Files lists every value bound to a File schema, in build order.
	Files []any
}

// Builder turns a validated value into bindings by walking its schema.
type Builder struct {
	names     *schema.Names
	validator *schema.Validator
}

// NewBuilder creates a builder that resolves references in names.
func NewBuilder(names *schema.Names) *Builder {
	return &Builder{
		names:     names,
		validator: schema.NewValidator(names),
	}
}

// Build walks n and v and returns the bindings they produce. key is the
// component identifying v within its parent: a field name, a map key or an
// array index.
//
// Every binding produced below a node or field that carries binding
// metadata is keyed under that metadata's [position, key], and the node's
// own binding follows its children.
func (b *Builder) Build(n *schema.Node, v any, key Component) (*Result, error) {
	res := &Result{}
	bindings, err := b.build(n, v, key, res)
	if err != nil {
		return nil, err
	}
	res.Bindings = bindings
	return res, nil
}

func (b *Builder) build(n *schema.Node, v any, key Component, res *Result) ([]Binding, error) {
	var (
		children []Binding
		err      error
	)

	switch n.Kind {
	case schema.KindRef:
		target, rerr := b.names.Resolve(n)
		if rerr != nil {
			return nil, rerr
		}
		children, err = b.build(target, v, key, res)

	case schema.KindUnion:
		children, err = b.buildUnion(n, v, key, res)

	case schema.KindRecord:
		m, isMap, keysOK := value.Map(v)
		if !isMap || !keysOK {
			return nil, b.validator.Validate(n, v)
		}
		for _, f := range n.Fields {
			fb, ferr := b.buildField(f, m[f.Name], res)
			if ferr != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, ferr)
			}
			children = append(children, fb...)
		}

	case schema.KindMap:
		m, isMap, keysOK := value.Map(v)
		if !isMap || !keysOK {
			return nil, b.validator.Validate(n, v)
		}
		for _, k := range value.SortedKeys(m) {
			cb, cerr := b.build(n.Values, m[k], Str(k), res)
			if cerr != nil {
				return nil, fmt.Errorf("{%s}: %w", k, cerr)
			}
			children = append(children, cb...)
		}

	case schema.KindArray:
		items, ok := value.List(v)
		if !ok {
			return nil, b.validator.Validate(n, v)
		}
		for i, item := range items {
			cb, cerr := b.build(n.Items, item, Str(fmt.Sprintf("%06d", i)), res)
			if cerr != nil {
				return nil, fmt.Errorf("[%d]: %w", i, cerr)
			}
			children = append(children, cb...)
		}

	case schema.KindFile:
		res.Files = append(res.Files, v)
	}
	if err != nil {
		return nil, err
	}

	return wrap(n.Binding, key, v, children), nil
}

func (b *Builder) buildField(f schema.Field, v any, res *Result) ([]Binding, error) {
	key := Str(f.Name)
	children, err := b.build(f.Type, v, key, res)
	if err != nil {
		return nil, err
	}
	return wrap(f.Binding, key, v, children), nil
}

// buildUnion recurses into the first alternative that accepts v.
func (b *Builder) buildUnion(n *schema.Node, v any, key Component, res *Result) ([]Binding, error) {
	for _, alt := range n.Alternatives {
		err := b.validator.Validate(alt, v)
		if err == nil {
			return b.build(alt, v, key, res)
		}
		if !isMismatch(err) {
			return nil, err
		}
	}
	return nil, b.validator.Validate(n, v)
}

func isMismatch(err error) bool {
	return errors.Is(err, toolerr.ErrSchemaMismatch)
}

// wrap keys children under spec and appends spec's own binding. Without a
// spec the children are returned unchanged.
func wrap(spec *schema.BindingSpec, key Component, v any, children []Binding) []Binding {
	if spec == nil {
		return children
	}

	prefix := Key{Int(spec.PositionOrDefault()), key}
	for i := range children {
		children[i].Position = children[i].Position.Prepend(prefix)
	}

	operand := expr.Literal(v)
	if spec.ValueFrom != nil {
		operand = *spec.ValueFrom
	}
	return append(children, Binding{
		Position:      prefix,
		Prefix:        spec.Prefix,
		ItemSeparator: spec.ItemSeparator,
		ValueFrom:     operand,
	})
}

// Resolve evaluates every binding's ValueFrom in order and stores the
// result in Value. The first evaluator failure stops resolution.
func Resolve(ctx context.Context, engines expr.Engines, bindings []Binding, job any, library string) error {
	for i := range bindings {
		v, err := engines.Resolve(ctx, bindings[i].ValueFrom, job, library)
		if err != nil {
			return fmt.Errorf("binding %s: %w", bindings[i].Position, err)
		}
		bindings[i].Value = v
	}
	return nil
}

// Sort orders bindings by position. Bindings with equal keys keep their
// build order.
func Sort(bindings []Binding) {
	sort.SliceStable(bindings, func(i, j int) bool {
		return bindings[i].Position.Less(bindings[j].Position)
	})
}
