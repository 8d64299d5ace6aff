package schema

import (
	"strconv"
	"strings"

	"github.com/zero-day-ai/toolbind/expr"
)

// Kind is the variant tag of a schema node.
type Kind int

const (
	KindNull Kind = iota
	KindBoolean
	KindString
	KindBytes
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindFixed
	KindEnum
	KindArray
	KindMap
	KindUnion
	KindRecord
	KindFile
	KindRef
)

// primitives maps type names that need no further attributes to their kind.
var primitives = map[string]Kind{
	"null":    KindNull,
	"boolean": KindBoolean,
	"string":  KindString,
	"bytes":   KindBytes,
	"int":     KindInt,
	"long":    KindLong,
	"float":   KindFloat,
	"double":  KindDouble,
	"File":    KindFile,
}

var kindNames = map[Kind]string{
	KindNull:    "null",
	KindBoolean: "boolean",
	KindString:  "string",
	KindBytes:   "bytes",
	KindInt:     "int",
	KindLong:    "long",
	KindFloat:   "float",
	KindDouble:  "double",
	KindFixed:   "fixed",
	KindEnum:    "enum",
	KindArray:   "array",
	KindMap:     "map",
	KindUnion:   "union",
	KindRecord:  "record",
	KindFile:    "File",
	KindRef:     "ref",
}

// String returns the schema-language name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Node is one node of a schema tree.
//
// Only the attributes of the node's Kind are meaningful. Named nodes
// (record, enum, fixed) are registered in a Names registry; other nodes
// refer to them through KindRef nodes so that recursive schemas never form
// cycles of pointers.
type Node struct {
	Kind Kind

	// Name is set on record, enum and fixed nodes, and on refs.
	Name string

	// Size is the exact length of a fixed value.
	Size int

	// Symbols are the allowed enum values, in declaration order.
	Symbols []string

	// Items is the element schema of an array.
	Items *Node

	// Values is the value schema of a map.
	Values *Node

	// Alternatives are the union branches, in declaration order.
	Alternatives []*Node

	// Fields are the record fields, in declaration order.
	Fields []Field

	// Binding is optional command-line binding metadata attached to the node.
	Binding *BindingSpec
}

// Field is a named, typed member of a record.
type Field struct {
	Name    string
	Type    *Node
	Binding *BindingSpec
	Doc     string
}

// BindingSpec describes how a value is placed on the command line.
type BindingSpec struct {
	// Position orders the binding among its siblings; nil means 0.
	Position *int64

	// Prefix is emitted before the value, e.g. "--threads".
	Prefix string

	// ItemSeparator joins list values into one argument when set.
	ItemSeparator string

	// ValueFrom replaces the bound value when set.
	ValueFrom *expr.Operand
}

// PositionOrDefault returns the declared position or 0.
func (b *BindingSpec) PositionOrDefault() int64 {
	if b == nil || b.Position == nil {
		return 0
	}
	return *b.Position
}

// Null returns a null schema.
func Null() *Node { return &Node{Kind: KindNull} }

// Boolean returns a boolean schema.
func Boolean() *Node { return &Node{Kind: KindBoolean} }

// String returns a string schema.
func String() *Node { return &Node{Kind: KindString} }

// Bytes returns a bytes schema.
func Bytes() *Node { return &Node{Kind: KindBytes} }

// Int returns a 32-bit integer schema.
func Int() *Node { return &Node{Kind: KindInt} }

// Long returns a 64-bit integer schema.
func Long() *Node { return &Node{Kind: KindLong} }

// Float returns a float schema.
func Float() *Node { return &Node{Kind: KindFloat} }

// Double returns a double schema.
func Double() *Node { return &Node{Kind: KindDouble} }

// File returns the File marker schema.
func File() *Node { return &Node{Kind: KindFile} }

// Fixed returns a named fixed-size schema.
func Fixed(name string, size int) *Node { return &Node{Kind: KindFixed, Name: name, Size: size} }

// Enum returns a named enum schema.
func Enum(name string, symbols ...string) *Node {
	return &Node{Kind: KindEnum, Name: name, Symbols: symbols}
}

// Array returns an array schema.
func Array(items *Node) *Node { return &Node{Kind: KindArray, Items: items} }

// Map returns a map schema.
func Map(values *Node) *Node { return &Node{Kind: KindMap, Values: values} }

// Union returns a union schema over the given alternatives.
func Union(alternatives ...*Node) *Node {
	return &Node{Kind: KindUnion, Alternatives: alternatives}
}

// Record returns a named record schema.
func Record(name string, fields ...Field) *Node {
	return &Node{Kind: KindRecord, Name: name, Fields: fields}
}

// Ref returns a reference to a named schema.
func Ref(name string) *Node { return &Node{Kind: KindRef, Name: name} }

// WithBinding returns n with b attached. n is modified in place.
func (n *Node) WithBinding(b *BindingSpec) *Node {
	n.Binding = b
	return n
}

// IsNamed reports whether n is registered by name.
func (n *Node) IsNamed() bool {
	switch n.Kind {
	case KindRecord, KindEnum, KindFixed:
		return n.Name != ""
	}
	return false
}

// String renders n compactly for error messages. Named nodes render as
// their name, so recursive schemas stay finite.
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	switch n.Kind {
	case KindRef:
		return n.Name
	case KindRecord, KindEnum, KindFixed:
		if n.Name != "" {
			return n.Name
		}
		if n.Kind == KindFixed {
			return "fixed(" + strconv.Itoa(n.Size) + ")"
		}
		return n.Kind.String()
	case KindArray:
		return "array<" + n.Items.String() + ">"
	case KindMap:
		return "map<" + n.Values.String() + ">"
	case KindUnion:
		parts := make([]string, len(n.Alternatives))
		for i, alt := range n.Alternatives {
			parts[i] = alt.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return n.Kind.String()
}

// Int64Ptr returns a pointer to n. Handy for BindingSpec.Position.
func Int64Ptr(n int64) *int64 { return &n }
