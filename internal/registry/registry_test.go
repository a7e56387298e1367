package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/specialistvlad/chatgraph/internal/handlers"
	"github.com/specialistvlad/chatgraph/internal/outcome"
	"github.com/specialistvlad/chatgraph/internal/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reply(body string) handlers.HandlerFunc {
	return func(context.Context, *handlers.Request) (outcome.Outcome, error) {
		return outcome.Text{Body: body}, nil
	}
}

func serve(t *testing.T, d *handlers.Descriptor) string {
	t.Helper()
	out, err := d.Handler.Serve(context.Background(), &handlers.Request{})
	require.NoError(t, err)
	return out.(outcome.Text).Body
}

func TestRegister_NormalizesPath(t *testing.T) {
	// Arrange
	tbl := New()

	// Act
	tbl.Register("  Menu.Billing ", reply("billing"))

	// Assert
	d, ok := tbl.Lookup("start.menu.billing")
	require.True(t, ok)
	assert.Equal(t, "start.menu.billing", d.Name)
	assert.Equal(t, []string{"start.menu.billing"}, tbl.Keys())
}

func TestRegister_LastWriteWins(t *testing.T) {
	tbl := New()
	tbl.Register("start", reply("first"))
	tbl.Register("START", reply("second"))

	d, ok := tbl.Lookup("start")
	require.True(t, ok)
	assert.Equal(t, "second", serve(t, d))
	assert.Equal(t, 1, tbl.Len())
}

func TestLookup_ExactMatchOnly(t *testing.T) {
	tbl := New()
	tbl.Register("start.menu", reply("menu"))

	_, ok := tbl.Lookup("start.menu.extra")
	assert.False(t, ok)
	_, ok = tbl.Lookup("start")
	assert.False(t, ok)
}

func TestInclude_RenamesUnderPrefix(t *testing.T) {
	// Arrange
	sub := New()
	sub.Register("start", reply("sub root"))
	sub.Register("start.invoice", reply("invoice"))
	tbl := New()
	tbl.Register("start", reply("root"))

	// Act
	err := tbl.Include(sub, "billing")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "start.billing", "start.billing.invoice"}, tbl.Keys())
	d, ok := tbl.Lookup("start.billing")
	require.True(t, ok)
	assert.Equal(t, "sub root", serve(t, d))
	assert.Equal(t, "start.billing", d.Name)
	assert.Equal(t, []string{"start", "start.invoice"}, sub.Keys(), "included table must not change")
}

func TestInclude_OverwritesOnCollision(t *testing.T) {
	sub := New()
	sub.Register("start", reply("new"))
	tbl := New()
	tbl.Register("start.billing", reply("old"))

	require.NoError(t, tbl.Include(sub, "start.billing"))

	d, _ := tbl.Lookup("start.billing")
	assert.Equal(t, "new", serve(t, d))
}

func TestInclude_RequiresRootEntry(t *testing.T) {
	sub := New()
	sub.Register("start.invoice", reply("invoice"))
	tbl := New()

	err := tbl.Include(sub, "billing")

	require.Error(t, err)
	var ce *CompositionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "start.billing", ce.Prefix)
	assert.ErrorIs(t, err, ErrComposition)
	assert.Equal(t, 0, tbl.Len())
}

func TestResolve_AddressesByLeaf(t *testing.T) {
	tbl := New()
	tbl.Register("start", reply("root"))
	tbl.Register("choice", reply("choice"))
	tbl.Register("start.menu.billing", reply("billing"))

	testCases := []struct {
		name    string
		current string
		wantKey string
	}{
		{name: "root", current: "start", wantKey: "start"},
		{name: "leaf under root", current: "start.choice", wantKey: "start.choice"},
		{name: "leaf after loop in place", current: "start.choice.choice", wantKey: "start.choice"},
		{name: "full path", current: "start.menu.billing", wantKey: "start.menu.billing"},
		{name: "nested leaf by index", current: "start.other.billing", wantKey: "start.menu.billing"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d, key, ok := tbl.Resolve(route.Parse(tc.current))
			require.True(t, ok)
			assert.Equal(t, tc.wantKey, key)
			assert.Equal(t, tc.wantKey, d.Name)
		})
	}

	_, _, ok := tbl.Resolve(route.Parse("start.missing"))
	assert.False(t, ok)
}

func TestHas_BacksRouteNext(t *testing.T) {
	tbl := New()
	tbl.Register("start", reply("root"))
	tbl.Register("choice", reply("choice"))

	p := route.Parse("start").Within(tbl)

	next, err := p.Next("choice")
	require.NoError(t, err)
	assert.Equal(t, "start.choice", next.String())

	_, err = p.Next("nowhere")
	assert.ErrorIs(t, err, route.ErrNotFound)
}

func TestHas_RequiresExactKey(t *testing.T) {
	// Arrange
	tbl := New()
	tbl.Register("start", reply("root"))
	tbl.Register("start.choice", reply("choice"))
	tbl.Register("start.menu.billing", reply("billing"))
	p := route.Parse("start.choice").Within(tbl)

	// Act
	_, err := p.Next("billing")

	// Assert
	assert.ErrorIs(t, err, route.ErrNotFound)
	assert.False(t, tbl.Has("start.choice.billing"))
	assert.True(t, tbl.Has("Start.Menu.Billing"))
	_, _, reachable := tbl.Resolve(route.Parse("start.choice.billing"))
	assert.True(t, reachable)
}

func TestBuild_AppliesModulesInOrder(t *testing.T) {
	first := ModuleFunc(func(t *Table) error {
		t.Register("start", reply("first"))
		return nil
	})
	second := ModuleFunc(func(t *Table) error {
		t.Register("start", reply("second"))
		return nil
	})

	tbl, err := Build(context.Background(), first, second)

	require.NoError(t, err)
	d, _ := tbl.Lookup("start")
	assert.Equal(t, "second", serve(t, d))
}

func TestBuild_FailsWithoutRoot(t *testing.T) {
	m := ModuleFunc(func(t *Table) error {
		t.Register("start.only", reply("x"))
		return nil
	})

	_, err := Build(context.Background(), m)

	assert.ErrorContains(t, err, "no 'start' entry")
}

func TestBuild_PropagatesCompositionError(t *testing.T) {
	m := ModuleFunc(func(t *Table) error {
		return t.Include(New(), "sub")
	})

	_, err := Build(context.Background(), m)

	assert.ErrorIs(t, err, ErrComposition)
}
