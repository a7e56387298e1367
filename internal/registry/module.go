package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/specialistvlad/chatgraph/internal/ctxlog"
	"github.com/specialistvlad/chatgraph/internal/route"
)

// Module contributes routes to a table. Sub-flows that live under a prefix
// build their own Table and Include it.
type Module interface {
	Register(t *Table) error
}

// ModuleFunc adapts a function to Module.
type ModuleFunc func(t *Table) error

// Register calls f.
func (f ModuleFunc) Register(t *Table) error { return f(t) }

// Build assembles a table from modules in order, so later modules override
// earlier ones, and validates the result.
func Build(ctx context.Context, modules ...Module) (*Table, error) {
	logger := ctxlog.FromContext(ctx)
	t := New()
	for i, m := range modules {
		if err := m.Register(t); err != nil {
			return nil, fmt.Errorf("registering module %d: %w", i, err)
		}
	}
	if err := t.Validate(ctx); err != nil {
		return nil, err
	}
	logger.Info("Route table built.", "routes", t.Len())
	return t, nil
}

// Validate checks that the table can serve a fresh session, which always
// starts at the root. Leaves shared by several keys are reported because
// only one of them is reachable through leaf addressing.
func (t *Table) Validate(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	if !t.hasRoot() {
		return fmt.Errorf("route table has no '%s' entry", route.Root)
	}

	byLeaf := make(map[string][]string)
	for _, k := range t.Keys() {
		leaf := route.Parse(k).Leaf()
		byLeaf[leaf] = append(byLeaf[leaf], k)
	}
	for leaf, keys := range byLeaf {
		if len(keys) > 1 {
			logger.Warn("Several routes share a leaf; leaf dispatch reaches only one of them unless the full path is current.",
				"leaf", leaf, "routes", strings.Join(keys, ", "), "resolves_to", t.leaves[leaf])
		}
	}
	return nil
}
