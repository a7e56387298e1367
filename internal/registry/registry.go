package registry

import (
	"context"
	"log/slog"
	"sort"

	"github.com/specialistvlad/chatgraph/internal/handlers"
	"github.com/specialistvlad/chatgraph/internal/outcome"
	"github.com/specialistvlad/chatgraph/internal/route"
)

// Table maps normalized route paths to handler descriptors.
type Table struct {
	entries map[string]*handlers.Descriptor
	// leaves indexes the most recently registered key for each leaf segment.
	leaves map[string]string
}

// New creates an empty table.
func New() *Table {
	return &Table{
		entries: make(map[string]*handlers.Descriptor),
		leaves:  make(map[string]string),
	}
}

// Register binds h to path. The path is trimmed, lower-cased and prefixed with
// the root segment when it lacks one. Registering the same path again replaces
// the previous handler.
func (t *Table) Register(path string, h handlers.Handler, opts ...handlers.Option) *handlers.Descriptor {
	key := route.Normalize(path)
	d := handlers.Describe(key, h, opts...)
	t.set(key, d)
	return d
}

// HandleFunc is Register for a plain function.
func (t *Table) HandleFunc(path string, fn func(ctx context.Context, req *handlers.Request) (outcome.Outcome, error), opts ...handlers.Option) *handlers.Descriptor {
	return t.Register(path, handlers.HandlerFunc(fn), opts...)
}

func (t *Table) set(key string, d *handlers.Descriptor) {
	if _, exists := t.entries[key]; exists {
		slog.Debug("Overwriting route handler.", "route", key)
	} else {
		slog.Debug("Registering route handler.", "route", key, "capabilities", d.Capabilities.String(), "mode", d.Mode.String())
	}
	t.entries[key] = d
	t.leaves[route.Parse(key).Leaf()] = key
}

// Include merges other into t under prefix. Every key k of other becomes
// prefix + k with its root segment stripped, and the root entry of other
// becomes prefix itself. Collisions overwrite t. other is not modified.
func (t *Table) Include(other *Table, prefix string) error {
	p := route.Parse(prefix)
	if other == nil || !other.hasRoot() {
		return &CompositionError{Prefix: p.String(), Reason: "included table has no '" + route.Root + "' entry"}
	}
	for _, k := range other.Keys() {
		key := p.Join(route.Parse(k)).String()
		t.set(key, other.entries[k].Rebind(key))
	}
	return nil
}

func (t *Table) hasRoot() bool {
	_, ok := t.entries[route.Root]
	return ok
}

// Lookup returns the descriptor registered at exactly path.
func (t *Table) Lookup(path string) (*handlers.Descriptor, bool) {
	d, ok := t.entries[route.Normalize(path)]
	return d, ok
}

// Resolve finds the handler for a session positioned at p. Handlers are
// addressed by the leaf of the current path: the full path is tried first,
// then the leaf directly under the root, then the last key registered with
// the same leaf. The matched key is returned alongside the descriptor.
func (t *Table) Resolve(p route.Path) (*handlers.Descriptor, string, bool) {
	if d, ok := t.entries[p.String()]; ok {
		return d, p.String(), true
	}
	leaf := p.Leaf()
	key := route.Normalize(leaf)
	if d, ok := t.entries[key]; ok {
		return d, key, true
	}
	if key, ok := t.leaves[leaf]; ok {
		return t.entries[key], key, true
	}
	return nil, "", false
}

// Has reports whether path is a registered key. It makes the table usable
// as the owning set of a route.Path, so Next only reaches registered paths.
func (t *Table) Has(path string) bool {
	_, ok := t.entries[route.Normalize(path)]
	return ok
}

// Keys returns the registered paths in sorted order.
func (t *Table) Keys() []string {
	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of registered paths.
func (t *Table) Len() int {
	return len(t.entries)
}
