// Package binding turns a validated job order into ordered command-line
// arguments.
//
// A Builder walks a schema and a value together. Wherever a field or node
// carries binding metadata it emits a Binding keyed by a position Key of
// the form [position, key]; the keys of everything produced beneath it are
// prefixed with the same pair, so a parent's bindings group with and sort
// ahead of its descendants. Array elements are keyed by zero-padded index
// strings ("000000", "000001", ...) so lexicographic order matches element
// order. That holds up to the padding width: from element 1000000 on the
// index strings grow a digit and "1000000" sorts before "999999".
//
// Keys mix integers and strings. Integers always sort before strings, which
// puts an explicit argument keyed [p, i] ahead of an input keyed [p, name].
//
// After building, Resolve evaluates each binding's ValueFrom, Sort orders
// the bindings, and Format renders each one as zero or more arguments.
package binding
