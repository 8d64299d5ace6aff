// Package schema models the recursive, Avro-like type language used to
// describe tool inputs and outputs, and validates dynamic values against it.
//
// A schema is a tree of *Node values. Named types (record, enum, fixed) live
// in a Names registry and are referenced from the tree by KindRef nodes, which
// keeps recursive schemas acyclic as Go values:
//
//	names := schema.NewNames()
//	node, err := schema.Parse(names, map[string]any{
//	    "type": "record", "name": "Tree",
//	    "fields": []any{
//	        map[string]any{"name": "label", "type": "string"},
//	        map[string]any{"name": "children", "type": map[string]any{"type": "array", "items": "Tree"}},
//	    },
//	})
//	err = schema.NewValidator(names).Validate(node, value)
//
// Every validation failure is a *ValidationError that matches
// toolerr.ErrSchemaMismatch and reports the path to the offending value.
package schema
