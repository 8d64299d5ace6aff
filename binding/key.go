package binding

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Component is one element of a position key: an integer or a string.
// The zero value is the integer 0.
type Component struct {
	num   int64
	str   string
	isStr bool
}

// Int returns an integer component.
func Int(n int64) Component { return Component{num: n} }

// Str returns a string component.
func Str(s string) Component { return Component{str: s, isStr: true} }

// IsString reports whether c holds a string.
func (c Component) IsString() bool { return c.isStr }

// Int64 returns the integer held by c; it is 0 for string components.
func (c Component) Int64() int64 { return c.num }

// Text returns the string held by c; it is "" for integer components.
func (c Component) Text() string { return c.str }

// Compare orders components. Integers compare numerically and strings
// lexicographically; every integer sorts before every string.
func (c Component) Compare(o Component) int {
	switch {
	case !c.isStr && o.isStr:
		return -1
	case c.isStr && !o.isStr:
		return 1
	case c.isStr:
		return strings.Compare(c.str, o.str)
	case c.num < o.num:
		return -1
	case c.num > o.num:
		return 1
	}
	return 0
}

func (c Component) String() string {
	if c.isStr {
		return strconv.Quote(c.str)
	}
	return strconv.FormatInt(c.num, 10)
}

// MarshalJSON encodes c as a JSON number or string.
func (c Component) MarshalJSON() ([]byte, error) {
	if c.isStr {
		return json.Marshal(c.str)
	}
	return json.Marshal(c.num)
}

// Key is a position key. Keys order component-wise; a key that is a
// prefix of another sorts first.
type Key []Component

// Compare returns -1, 0 or 1.
func (k Key) Compare(o Key) int {
	for i := 0; i < len(k) && i < len(o); i++ {
		if c := k[i].Compare(o[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(k) < len(o):
		return -1
	case len(k) > len(o):
		return 1
	}
	return 0
}

// Less reports whether k sorts before o.
func (k Key) Less(o Key) bool { return k.Compare(o) < 0 }

// Prepend returns a new key made of prefix followed by k.
func (k Key) Prepend(prefix Key) Key {
	out := make(Key, 0, len(prefix)+len(k))
	out = append(out, prefix...)
	return append(out, k...)
}

func (k Key) String() string {
	parts := make([]string, len(k))
	for i, c := range k {
		parts[i] = c.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
