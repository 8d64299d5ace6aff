package schema

import (
	"fmt"
	"math"
	"strings"

	"github.com/zero-day-ai/toolbind/toolerr"
	"github.com/zero-day-ai/toolbind/value"
)

// ValidationError reports why a value does not conform to a schema.
//
// Errors form a chain from the root of the value down to the failing leaf:
// each level records the segment it descended through (a field name, "[i]"
// for an array index, "{key}" for a map key) and wraps the error of the
// level below in Err.
type ValidationError struct {
	// Segment is the path element of this level; empty at the root.
	Segment string

	// Schema is the node the value was checked against.
	Schema *Node

	// Value is the offending value.
	Value any

	// Reason describes the mismatch at this level.
	Reason string

	// Err is the failure one level deeper, if any.
	Err error

	// Alternatives holds the failure of every union branch, in
	// declaration order. Err is the deepest of them.
	Alternatives []error
}

// Path renders the location of the failing leaf, e.g. "inputs[0].binding".
// The root path is empty.
func (e *ValidationError) Path() string {
	var b strings.Builder
	for cur := e; cur != nil; cur = nextValidation(cur.Err) {
		if cur.Segment == "" {
			continue
		}
		if b.Len() > 0 && !strings.HasPrefix(cur.Segment, "[") && !strings.HasPrefix(cur.Segment, "{") {
			b.WriteByte('.')
		}
		b.WriteString(cur.Segment)
	}
	return b.String()
}

// Leaf returns the deepest error of the chain.
func (e *ValidationError) Leaf() *ValidationError {
	leaf := e
	for next := nextValidation(leaf.Err); next != nil; next = nextValidation(leaf.Err) {
		leaf = next
	}
	return leaf
}

func (e *ValidationError) Error() string {
	leaf := e.Leaf()
	msg := leaf.Reason
	if leaf.Err != nil {
		msg += ": " + leaf.Err.Error()
	}
	if path := e.Path(); path != "" {
		return "at " + path + ": " + msg
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is makes every ValidationError match toolerr.ErrSchemaMismatch.
func (e *ValidationError) Is(target error) bool {
	return target == toolerr.ErrSchemaMismatch
}

func nextValidation(err error) *ValidationError {
	ve, ok := err.(*ValidationError)
	if !ok {
		return nil
	}
	return ve
}

func (e *ValidationError) depth() int {
	d := 0
	for cur := e; cur != nil; cur = nextValidation(cur.Err) {
		d++
	}
	return d
}

// Validator checks values against schema nodes, resolving references
// through a Names registry. It holds no per-call state and is safe for
// concurrent use.
type Validator struct {
	names *Names
}

// NewValidator creates a validator that resolves references in names.
func NewValidator(names *Names) *Validator {
	return &Validator{names: names}
}

// Validate reports whether v conforms to n. A mismatch is returned as a
// *ValidationError; an unregistered reference yields
// UNRESOLVED_SCHEMA_REFERENCE. The value is never modified.
func (v *Validator) Validate(n *Node, val any) error {
	return v.validate(n, val)
}

// Valid is Validate reduced to a boolean. Unresolved references count as
// mismatches.
func (v *Validator) Valid(n *Node, val any) bool {
	return v.validate(n, val) == nil
}

func (v *Validator) validate(n *Node, val any) error {
	if n == nil {
		return toolerr.New("schema", "validate", toolerr.ErrCodeInvalidSchema, "nil schema node")
	}

	switch n.Kind {
	case KindNull:
		if val != nil {
			return mismatch(n, val, "expected null, got %s", value.KindOf(val))
		}
	case KindBoolean:
		if _, ok := val.(bool); !ok {
			return mismatch(n, val, "expected boolean, got %s", value.KindOf(val))
		}
	case KindString:
		if _, ok := val.(string); !ok {
			return mismatch(n, val, "expected string, got %s", value.KindOf(val))
		}
	case KindBytes:
		switch val.(type) {
		case string, []byte:
		default:
			return mismatch(n, val, "expected bytes, got %s", value.KindOf(val))
		}
	case KindInt:
		i, ok := value.Int64(val)
		if !ok {
			return mismatch(n, val, "expected int, got %s", describeNumber(val))
		}
		if i < math.MinInt32 || i > math.MaxInt32 {
			return mismatch(n, val, "value %d is out of int range", i)
		}
	case KindLong:
		if _, ok := value.Int64(val); !ok {
			return mismatch(n, val, "expected long, got %s", describeNumber(val))
		}
	case KindFloat, KindDouble:
		if !value.IsNumber(val) {
			return mismatch(n, val, "expected %s, got %s", n.Kind, value.KindOf(val))
		}
	case KindFixed:
		var size int
		switch x := val.(type) {
		case string:
			size = len(x)
		case []byte:
			size = len(x)
		default:
			return mismatch(n, val, "expected %s, got %s", n, value.KindOf(val))
		}
		if size != n.Size {
			return mismatch(n, val, "expected %d bytes, got %d", n.Size, size)
		}
	case KindEnum:
		s, ok := val.(string)
		if !ok {
			return mismatch(n, val, "expected %s symbol, got %s", n, value.KindOf(val))
		}
		for _, sym := range n.Symbols {
			if s == sym {
				return nil
			}
		}
		return mismatch(n, val, "%q is not one of %v", s, n.Symbols)
	case KindArray:
		return v.validateArray(n, val)
	case KindMap:
		return v.validateMap(n, val)
	case KindUnion:
		return v.validateUnion(n, val)
	case KindRecord:
		return v.validateRecord(n, val)
	case KindFile:
		m, isMap, keysOK := value.Map(val)
		if !isMap || !keysOK {
			return mismatch(n, val, "expected File mapping, got %s", value.KindOf(val))
		}
		if _, ok := m["path"].(string); !ok {
			return mismatch(n, val, "File has no string path")
		}
	case KindRef:
		target, err := v.names.Resolve(n)
		if err != nil {
			return err
		}
		return v.validate(target, val)
	default:
		return toolerr.New("schema", "validate", toolerr.ErrCodeInvalidSchema,
			fmt.Sprintf("unknown schema kind %d", int(n.Kind)))
	}
	return nil
}

func (v *Validator) validateArray(n *Node, val any) error {
	items, ok := value.List(val)
	if !ok {
		return mismatch(n, val, "expected array, got %s", value.KindOf(val))
	}
	for i, item := range items {
		if err := v.validate(n.Items, item); err != nil {
			return descend(n, val, fmt.Sprintf("[%d]", i), err)
		}
	}
	return nil
}

func (v *Validator) validateMap(n *Node, val any) error {
	m, isMap, keysOK := value.Map(val)
	if !isMap {
		return mismatch(n, val, "expected map, got %s", value.KindOf(val))
	}
	if !keysOK {
		return mismatch(n, val, "map keys must be strings")
	}
	for _, k := range value.SortedKeys(m) {
		if err := v.validate(n.Values, m[k]); err != nil {
			return descend(n, val, "{"+k+"}", err)
		}
	}
	return nil
}

func (v *Validator) validateUnion(n *Node, val any) error {
	var (
		alts    []error
		deepest *ValidationError
	)
	for _, alt := range n.Alternatives {
		err := v.validate(alt, val)
		if err == nil {
			return nil
		}
		ve := nextValidation(err)
		if ve == nil {
			return err
		}
		alts = append(alts, ve)
		if deepest == nil || ve.depth() > deepest.depth() {
			deepest = ve
		}
	}

	ue := &ValidationError{
		Schema:       n,
		Value:        val,
		Reason:       fmt.Sprintf("%s matches no alternative of %s", value.KindOf(val), n),
		Alternatives: alts,
	}
	// A scalar mismatch on every branch says nothing more than the union
	// reason; only keep a branch that got past the top level.
	if deepest != nil && deepest.depth() > 1 {
		ue.Err = deepest
	}
	return ue
}

func (v *Validator) validateRecord(n *Node, val any) error {
	m, isMap, keysOK := value.Map(val)
	if !isMap {
		return mismatch(n, val, "expected %s mapping, got %s", n, value.KindOf(val))
	}
	if !keysOK {
		return mismatch(n, val, "record keys must be strings")
	}
	for _, f := range n.Fields {
		// An absent field is validated as null.
		if err := v.validate(f.Type, m[f.Name]); err != nil {
			return descend(n, val, f.Name, err)
		}
	}
	return nil
}

func mismatch(n *Node, val any, format string, args ...any) *ValidationError {
	return &ValidationError{
		Schema: n,
		Value:  val,
		Reason: fmt.Sprintf(format, args...),
	}
}

// descend records segment on a child failure and wraps it in a failure of
// n. Failures that are not mismatches (such as unresolved references) pass
// through unchanged.
func descend(n *Node, val any, segment string, err error) error {
	child := nextValidation(err)
	if child == nil {
		return err
	}
	child.Segment = segment
	return &ValidationError{
		Schema: n,
		Value:  val,
		Reason: "invalid " + segment,
		Err:    child,
	}
}

func describeNumber(val any) string {
	if value.KindOf(val) == value.KindFloat {
		return "float " + value.Describe(val)
	}
	if value.IsInteger(val) {
		return "integer " + value.Describe(val) + " (out of range)"
	}
	return value.KindOf(val).String()
}
