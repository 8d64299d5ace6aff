package binding

import (
	"strings"

	"github.com/zero-day-ai/toolbind/value"
)

// Format renders a resolved binding as command-line arguments. It returns
// nil when the binding contributes nothing:
//
//   - null values, false, and true without a prefix
//   - empty lists
//   - mappings other than a File (records bind through their fields)
//
// true with a prefix yields just the prefix. Lists yield one argument per
// item, or a single joined argument when ItemSeparator is set. Scalars yield
// their string form. A prefix, when set, is emitted as its own argument
// before the value.
func Format(b Binding) []string {
	v := b.Value

	switch x := v.(type) {
	case nil:
		return nil
	case bool:
		if x && b.Prefix != "" {
			return []string{b.Prefix}
		}
		return nil
	}

	if items, ok := value.List(v); ok {
		if len(items) == 0 {
			return nil
		}
		args := make([]string, 0, len(items))
		for _, item := range items {
			args = append(args, itemString(item))
		}
		if b.ItemSeparator != "" {
			return withPrefix(b.Prefix, strings.Join(args, b.ItemSeparator))
		}
		return withPrefix(b.Prefix, args...)
	}

	if m, isMap, keysOK := value.Map(v); isMap {
		if !keysOK {
			return nil
		}
		if path, ok := m["path"].(string); ok {
			return withPrefix(b.Prefix, path)
		}
		return nil
	}

	if s, ok := value.String(v); ok {
		return withPrefix(b.Prefix, s)
	}
	return nil
}

// Argv flattens the fragments of bindings in order.
func Argv(bindings []Binding) []string {
	var argv []string
	for _, b := range bindings {
		argv = append(argv, Format(b)...)
	}
	return argv
}

func withPrefix(prefix string, args ...string) []string {
	if prefix == "" {
		return args
	}
	return append([]string{prefix}, args...)
}

// itemString renders a list item. File items render as their path; other
// non-scalars fall back to their description.
func itemString(item any) string {
	if s, ok := value.String(item); ok {
		return s
	}
	if m, isMap, keysOK := value.Map(item); isMap && keysOK {
		if path, ok := m["path"].(string); ok {
			return path
		}
	}
	if item == nil {
		return ""
	}
	return value.Describe(item)
}
