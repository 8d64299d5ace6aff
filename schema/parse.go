package schema

import (
	"fmt"

	"github.com/zero-day-ai/toolbind/expr"
	"github.com/zero-day-ai/toolbind/toolerr"
	"github.com/zero-day-ai/toolbind/value"
)

// Parse converts a schema definition into a node and registers every named
// type it declares in names.
//
// Definitions follow the Avro JSON form:
//
//	"string"                                  primitive, or a reference by name
//	["null", "string"]                        union
//	{"type": "array", "items": "string"}      array
//	{"type": "map", "values": "int"}          map
//	{"type": "enum", "name": "E", "symbols": ["a", "b"]}
//	{"type": "fixed", "name": "F", "size": 16}
//	{"type": "record", "name": "R", "fields": [{"name": "x", "type": "int"}]}
//
// Any mapping may also carry a "binding". Named types are registered before
// their members are parsed, so records may refer to themselves and to types
// defined later; references are resolved lazily.
func Parse(names *Names, def any) (*Node, error) {
	p := parser{names: names}
	return p.parse(def)
}

// ParseField converts a field definition ({"name", "type", "binding", "doc"}).
func ParseField(names *Names, def any) (Field, error) {
	p := parser{names: names}
	return p.field(def)
}

// ParseBinding converts a binding definition
// ({"position", "prefix", "itemSeparator", "valueFrom"}). A nil definition
// yields a nil spec.
func ParseBinding(def any) (*BindingSpec, error) {
	if def == nil {
		return nil, nil
	}
	m, isMap, keysOK := value.Map(def)
	if !isMap || !keysOK {
		return nil, invalid("binding must be a mapping, got %s", value.KindOf(def))
	}

	b := &BindingSpec{}
	if raw, ok := m["position"]; ok && raw != nil {
		pos, ok := value.Int64(raw)
		if !ok {
			return nil, invalid("binding position must be an integer, got %s", value.Describe(raw))
		}
		b.Position = &pos
	}
	if raw, ok := m["prefix"]; ok && raw != nil {
		s, ok := raw.(string)
		if !ok {
			return nil, invalid("binding prefix must be a string, got %s", value.Describe(raw))
		}
		b.Prefix = s
	}
	if raw, ok := m["itemSeparator"]; ok && raw != nil {
		s, ok := raw.(string)
		if !ok {
			return nil, invalid("binding itemSeparator must be a string, got %s", value.Describe(raw))
		}
		b.ItemSeparator = s
	}
	if raw, ok := m["valueFrom"]; ok && raw != nil {
		op := expr.ParseOperand(raw)
		b.ValueFrom = &op
	}
	return b, nil
}

type parser struct {
	names *Names
}

func (p parser) parse(def any) (*Node, error) {
	switch d := def.(type) {
	case string:
		return p.named(d)
	case nil:
		return nil, invalid("schema definition is empty")
	}

	if list, ok := value.List(def); ok {
		return p.union(list)
	}

	m, isMap, keysOK := value.Map(def)
	if !isMap || !keysOK {
		return nil, invalid("unsupported schema definition %s", value.Describe(def))
	}
	return p.complex(m)
}

// named handles a bare type name.
func (p parser) named(name string) (*Node, error) {
	if kind, ok := primitives[name]; ok {
		return &Node{Kind: kind}, nil
	}
	switch name {
	case "record", "enum", "fixed", "array", "map":
		return nil, invalid("%q requires a mapping definition", name)
	case "":
		return nil, invalid("schema type name is empty")
	}
	return Ref(name), nil
}

func (p parser) union(defs []any) (*Node, error) {
	if len(defs) == 0 {
		return nil, invalid("union has no alternatives")
	}
	alts := make([]*Node, 0, len(defs))
	for i, d := range defs {
		n, err := p.parse(d)
		if err != nil {
			return nil, fmt.Errorf("union alternative %d: %w", i, err)
		}
		if n.Kind == KindUnion {
			return nil, invalid("union alternative %d is itself a union", i)
		}
		alts = append(alts, n)
	}
	return Union(alts...), nil
}

func (p parser) complex(m map[string]any) (*Node, error) {
	binding, err := ParseBinding(m["binding"])
	if err != nil {
		return nil, err
	}

	var n *Node
	switch t := m["type"].(type) {
	case string:
		n, err = p.typed(t, m)
	case nil:
		return nil, invalid("schema mapping has no type")
	default:
		n, err = p.parse(t)
		if err == nil && n.IsNamed() && binding != nil {
			// Keep the registered node free of this site's binding.
			n = Ref(n.Name)
		}
	}
	if err != nil {
		return nil, err
	}

	if binding != nil {
		n.Binding = binding
	}
	return n, nil
}

func (p parser) typed(t string, m map[string]any) (*Node, error) {
	switch t {
	case "record", "error":
		return p.record(m)
	case "enum":
		return p.enum(m)
	case "fixed":
		return p.fixed(m)
	case "array":
		items, ok := m["items"]
		if !ok {
			return nil, invalid("array schema has no items")
		}
		n, err := p.parse(items)
		if err != nil {
			return nil, fmt.Errorf("array items: %w", err)
		}
		return Array(n), nil
	case "map":
		values, ok := m["values"]
		if !ok {
			return nil, invalid("map schema has no values")
		}
		n, err := p.parse(values)
		if err != nil {
			return nil, fmt.Errorf("map values: %w", err)
		}
		return Map(n), nil
	}
	return p.named(t)
}

func (p parser) record(m map[string]any) (*Node, error) {
	name, err := requireName(m, "record")
	if err != nil {
		return nil, err
	}
	rawFields, ok := value.List(m["fields"])
	if !ok {
		return nil, invalid("record %q has no fields list", name)
	}

	n := Record(name)
	if err := p.names.Register(n); err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	for i, raw := range rawFields {
		f, err := p.field(raw)
		if err != nil {
			return nil, fmt.Errorf("record %q field %d: %w", name, i, err)
		}
		if seen[f.Name] {
			return nil, invalid("record %q declares field %q twice", name, f.Name)
		}
		seen[f.Name] = true
		n.Fields = append(n.Fields, f)
	}
	return n, nil
}

func (p parser) field(def any) (Field, error) {
	m, isMap, keysOK := value.Map(def)
	if !isMap || !keysOK {
		return Field{}, invalid("field definition must be a mapping, got %s", value.KindOf(def))
	}
	name, ok := m["name"].(string)
	if !ok || name == "" {
		return Field{}, invalid("field has no name")
	}
	rawType, ok := m["type"]
	if !ok {
		return Field{}, invalid("field %q has no type", name)
	}
	typ, err := p.parse(rawType)
	if err != nil {
		return Field{}, fmt.Errorf("field %q: %w", name, err)
	}
	binding, err := ParseBinding(m["binding"])
	if err != nil {
		return Field{}, fmt.Errorf("field %q: %w", name, err)
	}
	doc, _ := m["doc"].(string)

	return Field{Name: name, Type: typ, Binding: binding, Doc: doc}, nil
}

func (p parser) enum(m map[string]any) (*Node, error) {
	name, err := requireName(m, "enum")
	if err != nil {
		return nil, err
	}
	raw, ok := value.List(m["symbols"])
	if !ok || len(raw) == 0 {
		return nil, invalid("enum %q has no symbols", name)
	}

	symbols := make([]string, 0, len(raw))
	seen := map[string]bool{}
	for _, r := range raw {
		s, ok := r.(string)
		if !ok {
			return nil, invalid("enum %q symbol %s is not a string", name, value.Describe(r))
		}
		if seen[s] {
			return nil, invalid("enum %q declares symbol %q twice", name, s)
		}
		seen[s] = true
		symbols = append(symbols, s)
	}

	n := Enum(name, symbols...)
	if err := p.names.Register(n); err != nil {
		return nil, err
	}
	return n, nil
}

func (p parser) fixed(m map[string]any) (*Node, error) {
	name, err := requireName(m, "fixed")
	if err != nil {
		return nil, err
	}
	size, ok := value.Int64(m["size"])
	if !ok || size < 0 {
		return nil, invalid("fixed %q needs a non-negative integer size", name)
	}

	n := Fixed(name, int(size))
	if err := p.names.Register(n); err != nil {
		return nil, err
	}
	return n, nil
}

func requireName(m map[string]any, kind string) (string, error) {
	name, ok := m["name"].(string)
	if !ok || name == "" {
		return "", invalid("%s schema has no name", kind)
	}
	if _, primitive := primitives[name]; primitive {
		return "", invalid("%s schema cannot be named %q", kind, name)
	}
	return name, nil
}

func invalid(format string, args ...any) error {
	return toolerr.New("schema", "parse", toolerr.ErrCodeInvalidSchema, fmt.Sprintf(format, args...))
}
