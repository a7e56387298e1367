package demo

import (
	"context"
	"testing"

	"github.com/specialistvlad/chatgraph/internal/dispatch"
	"github.com/specialistvlad/chatgraph/internal/event"
	"github.com/specialistvlad/chatgraph/internal/registry"
	"github.com/specialistvlad/chatgraph/internal/session/sessiontest"
	"github.com/specialistvlad/chatgraph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t   *testing.T
	ctx context.Context
	d   *dispatch.Dispatcher
	rec *sessiontest.Recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx, _ := testutil.LogContext(t)
	table, err := registry.Build(ctx, &Module{})
	require.NoError(t, err)
	d := dispatch.New(ctx, table)
	t.Cleanup(d.Close)
	return &harness{t: t, ctx: ctx, d: d, rec: sessiontest.New("u1", "start")}
}

// say runs one turn at the recorder's current route and returns the calls it
// made, background results included.
func (h *harness) say(content string) []string {
	h.t.Helper()
	before := len(h.rec.Strings())
	require.NoError(h.t, h.d.Dispatch(h.ctx, event.New("u1", h.rec.Route(), content), h.rec))
	require.NoError(h.t, h.d.Wait(h.ctx))
	return h.rec.Strings()[before:]
}

func TestModule_Registers(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	table, err := registry.Build(ctx, &Module{})
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "start.menu", "start.orders", "start.orders.lookup"}, table.Keys())
}

func TestFlow_OrderStatus(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, []string{"send(Hi! What can I do for you?)", "route(start.menu)"}, h.say("hi"))
	assert.Equal(t, []string{
		"route(start.orders)",
		"send(Type your order number.)",
		"route(start.orders.lookup)",
	}, h.say("1"))
	assert.Equal(t, []string{
		"send(Order numbers only have digits. Try again.)",
		"route(start.orders.lookup.lookup)",
	}, h.say("abc"))
	assert.Equal(t, []string{
		"send(Looking it up...)",
		"send(Order 12 is delivered.)",
		"route(start.menu)",
	}, h.say("12"))
}

func TestFlow_GreetingHasButtons(t *testing.T) {
	h := newHarness(t)
	h.say("hi")

	msgs := h.rec.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Welcome", msgs[0].Text.Title)
	require.Len(t, msgs[0].Buttons, 3)
	assert.Equal(t, "Talk to a person", msgs[0].Buttons[1].Title)
}

func TestFlow_MenuBranches(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "unknown option", input: "9", want: []string{"send(Please pick 1, 2 or 3.)"}},
		{name: "human", input: "2", want: []string{"send(Transferring you to a person.)", "human(support)"}},
		{name: "quit", input: "Quit", want: []string{"send(Bye!)", "end(solved)", "route(start)"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.say("hi")
			assert.Equal(t, tc.want, h.say(tc.input))
		})
	}
}

func TestFlow_GoBack(t *testing.T) {
	h := newHarness(t)
	h.say("hi")
	h.say("1")

	assert.Equal(t, []string{
		"route(start.orders)",
		"send(Type your order number.)",
		"route(start.orders.lookup)",
	}, h.say("back"))
}
