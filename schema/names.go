package schema

import (
	"fmt"
	"sort"
	"sync"

	"github.com/zero-day-ai/toolbind/toolerr"
)

// Names is a registry of named schema nodes.
//
// It is safe for concurrent use. A name is registered at most once;
// lookups never register anything.
type Names struct {
	mu    sync.RWMutex
	nodes map[string]*Node
}

// NewNames creates an empty registry.
func NewNames() *Names {
	return &Names{nodes: make(map[string]*Node)}
}

// Register adds a named node. Registering a name twice fails with
// INVALID_SCHEMA.
func (r *Names) Register(n *Node) error {
	if n == nil || !n.IsNamed() {
		return toolerr.New("schema", "register", toolerr.ErrCodeInvalidSchema,
			"only named record, enum and fixed schemas can be registered")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[n.Name]; exists {
		return toolerr.New("schema", "register", toolerr.ErrCodeInvalidSchema,
			fmt.Sprintf("schema %q is already defined", n.Name))
	}
	r.nodes[n.Name] = n
	return nil
}

// Lookup returns the node registered under name.
func (r *Names) Lookup(name string) (*Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[name]
	return n, ok
}

// Get returns the node registered under name or an
// UNRESOLVED_SCHEMA_REFERENCE error.
func (r *Names) Get(name string) (*Node, error) {
	n, ok := r.Lookup(name)
	if !ok {
		return nil, unresolved(name)
	}
	return n, nil
}

// Resolve returns the registered target of a ref, or n itself when n is
// not a ref. Registered nodes are never refs, so one lookup suffices.
func (r *Names) Resolve(n *Node) (*Node, error) {
	if n == nil || n.Kind != KindRef {
		return n, nil
	}
	return r.Get(n.Name)
}

// Names returns the registered names in sorted order.
func (r *Names) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.nodes))
	for name := range r.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent registry with the same entries. Nodes are
// shared; they are treated as immutable once registered.
func (r *Names) Clone() *Names {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c := &Names{nodes: make(map[string]*Node, len(r.nodes))}
	for name, n := range r.nodes {
		c.nodes[name] = n
	}
	return c
}

// CheckRefs walks n and every named node reachable from it and fails with
// UNRESOLVED_SCHEMA_REFERENCE on the first ref that is not registered.
func (r *Names) CheckRefs(n *Node) error {
	return r.checkRefs(n, map[string]bool{})
}

func (r *Names) checkRefs(n *Node, seen map[string]bool) error {
	if n == nil {
		return nil
	}
	if n.IsNamed() {
		if seen[n.Name] {
			return nil
		}
		seen[n.Name] = true
	}

	switch n.Kind {
	case KindRef:
		if seen[n.Name] {
			return nil
		}
		target, err := r.Get(n.Name)
		if err != nil {
			return err
		}
		return r.checkRefs(target, seen)
	case KindArray:
		return r.checkRefs(n.Items, seen)
	case KindMap:
		return r.checkRefs(n.Values, seen)
	case KindUnion:
		for _, alt := range n.Alternatives {
			if err := r.checkRefs(alt, seen); err != nil {
				return err
			}
		}
	case KindRecord:
		for _, f := range n.Fields {
			if err := r.checkRefs(f.Type, seen); err != nil {
				return fmt.Errorf("field %s.%s: %w", n.Name, f.Name, err)
			}
		}
	}
	return nil
}

func unresolved(name string) error {
	return toolerr.New("schema", "resolve", toolerr.ErrCodeUnresolvedReference,
		fmt.Sprintf("schema %q is not defined", name)).
		WithDetails(map[string]any{"name": name})
}
