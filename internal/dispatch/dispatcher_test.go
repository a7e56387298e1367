package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/specialistvlad/chatgraph/internal/event"
	"github.com/specialistvlad/chatgraph/internal/handlers"
	"github.com/specialistvlad/chatgraph/internal/interceptor"
	"github.com/specialistvlad/chatgraph/internal/outcome"
	"github.com/specialistvlad/chatgraph/internal/registry"
	"github.com/specialistvlad/chatgraph/internal/route"
	"github.com/specialistvlad/chatgraph/internal/session/sessiontest"
	"github.com/specialistvlad/chatgraph/internal/testutil"
	"github.com/specialistvlad/chatgraph/internal/workerpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func returns(o outcome.Outcome) handlers.HandlerFunc {
	return func(context.Context, *handlers.Request) (outcome.Outcome, error) { return o, nil }
}

func newDispatcher(t *testing.T, ctx context.Context, tbl *registry.Table, opts ...Option) *Dispatcher {
	t.Helper()
	pool := workerpool.New(ctx, 4)
	t.Cleanup(pool.Close)
	d := New(ctx, tbl, append([]Option{WithPool(pool)}, opts...)...)
	t.Cleanup(d.Close)
	return d
}

func TestDispatch_TextThenMoveInOrder(t *testing.T) {
	// Arrange
	ctx, _ := testutil.LogContext(t)
	tbl := registry.New()
	tbl.Register("start", returns(outcome.Batch{outcome.Text{Body: "hello"}, outcome.Move{Path: "menu"}}))
	d := newDispatcher(t, ctx, tbl)
	s := sessiontest.New("user-1", "start")

	// Act
	err := d.Dispatch(ctx, event.New("user-1", "start", "hi"), s)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"send(hello)", "route(start.menu)"}, s.Strings())
}

func TestDispatch_RedirectReinvokesWithSameEvent(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	tbl := registry.New()
	tbl.Register("start", returns(outcome.Redirect{Path: "choice"}))
	var seen []string
	tbl.Register("start.choice", handlers.HandlerFunc(func(_ context.Context, req *handlers.Request) (outcome.Outcome, error) {
		seen = append(seen, req.Event.TurnID, req.Event.Content, req.Event.Route)
		return outcome.Text{Body: "done"}, nil
	}), handlers.WithEvent())
	d := newDispatcher(t, ctx, tbl)
	s := sessiontest.New("user-1", "start")
	ev := event.New("user-1", "start", "pick")

	err := d.Dispatch(ctx, ev, s)

	require.NoError(t, err)
	assert.Equal(t, []string{ev.TurnID, "pick", "start.choice"}, seen)
	assert.Equal(t, []string{"route(start.choice)", "send(done)"}, s.Strings())
}

func TestDispatch_RedirectScenarioSendsExactlyOneMessage(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	tbl := registry.New()
	tbl.Register("start", returns(outcome.Redirect{Path: "choice"}))
	tbl.Register("start.choice", returns(outcome.Text{Body: "done"}))
	d := newDispatcher(t, ctx, tbl)
	s := sessiontest.New("user-1", "start")

	err := d.Dispatch(ctx, event.New("user-1", "start", ""), s)

	require.NoError(t, err)
	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "done", msgs[0].Text.Detail)
}

func TestDispatch_BlockingHandlerDoesNotBlockOtherSessions(t *testing.T) {
	// Arrange
	ctx, _ := testutil.LogContext(t)
	sleeper := testutil.NewSleeper(300*time.Millisecond, "slow")
	tbl := registry.New()
	tbl.Register("start", returns(outcome.Redirect{Path: "slow"}))
	tbl.Register("slow", sleeper)
	tbl.Register("fast", returns(outcome.Text{Body: "fast"}))
	d := newDispatcher(t, ctx, tbl)
	slowSession := sessiontest.New("slow-user", "start")
	fastSession := sessiontest.New("fast-user", "start.fast")

	// Act
	var wg sync.WaitGroup
	wg.Add(1)
	var slowErr error
	go func() {
		defer wg.Done()
		slowErr = d.Dispatch(ctx, event.New("slow-user", "start.slow", ""), slowSession)
	}()
	time.Sleep(50 * time.Millisecond)
	start := time.Now()
	fastErr := d.Dispatch(ctx, event.New("fast-user", "start.fast", ""), fastSession)
	fastElapsed := time.Since(start)
	wg.Wait()

	// Assert
	require.NoError(t, fastErr)
	require.NoError(t, slowErr)
	assert.Less(t, fastElapsed, 200*time.Millisecond)
	assert.Equal(t, []string{"send(fast)"}, fastSession.Strings())
	rec, ok := sleeper.Record("slow-user")
	require.True(t, ok)
	assert.True(t, rec.End.After(start), "slow handler must still be running when the fast turn starts")
}

func TestDispatch_RouteNotFound(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	tbl := registry.New()
	tbl.Register("start", returns(outcome.Empty{}))
	d := newDispatcher(t, ctx, tbl)
	s := sessiontest.New("user-1", "start.nowhere")

	err := d.Dispatch(ctx, event.New("user-1", "start.nowhere", "x"), s)

	var nf *route.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "user-1", nf.SessionID)
	assert.Equal(t, "start.nowhere", nf.Path)
	assert.Empty(t, s.Calls())
}

func TestDispatch_LeafAddressing(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	tbl := registry.New()
	tbl.Register("start", returns(outcome.Empty{}))
	tbl.Register("start.menu.billing", returns(outcome.Text{Body: "billing"}))
	d := newDispatcher(t, ctx, tbl)
	s := sessiontest.New("user-1", "")

	err := d.Dispatch(ctx, event.New("user-1", "start.billing.billing", ""), s)

	require.NoError(t, err)
	assert.Equal(t, []string{"send(billing)"}, s.Strings())
}

func TestDispatch_EmptyLoopsInPlace(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	tbl := registry.New()
	tbl.Register("start", returns(outcome.Redirect{Path: "ask"}))
	tbl.Register("ask", handlers.Plain(func(context.Context, *handlers.Request) (any, error) {
		return nil, nil
	}))
	d := newDispatcher(t, ctx, tbl)
	s := sessiontest.New("user-1", "start.ask")

	err := d.Dispatch(ctx, event.New("user-1", "start.ask", "??"), s)

	require.NoError(t, err)
	assert.Equal(t, []string{"route(start.ask.ask)"}, s.Strings())
}

func TestDispatch_InterceptorShortCircuitsAndClearsContent(t *testing.T) {
	// Arrange
	ctx, _ := testutil.LogContext(t)
	tbl := registry.New()
	tbl.Register("start", returns(outcome.Empty{}))
	var contents []string
	tbl.Register("menu", handlers.HandlerFunc(func(_ context.Context, req *handlers.Request) (outcome.Outcome, error) {
		contents = append(contents, req.Content())
		return outcome.Text{Body: "menu"}, nil
	}), handlers.WithEvent())
	tbl.Register("billing", returns(outcome.Text{Body: "must not run"}))
	d := newDispatcher(t, ctx, tbl)
	s := sessiontest.New("user-1", "start.menu.billing")

	// Act
	err := d.Dispatch(ctx, event.New("user-1", "start.menu.billing", "voltar"), s)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"route(start.menu)", "send(menu)"}, s.Strings())
	assert.Equal(t, []string{""}, contents)
}

func TestDispatch_CustomInterceptors(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	tbl := registry.New()
	tbl.Register("start", returns(outcome.Text{Body: "start"}))
	l := interceptor.New()
	l.MustAdd("help", `^help$`, returns(outcome.Text{Body: "help text"}))
	d := newDispatcher(t, ctx, tbl, WithInterceptors(l))
	s := sessiontest.New("user-1", "start")

	require.NoError(t, d.Dispatch(ctx, event.New("user-1", "start", "help"), s))
	require.NoError(t, d.Dispatch(ctx, event.New("user-1", "start", "voltar"), s))

	assert.Equal(t, []string{"send(help text)", "send(start)"}, s.Strings())
}

func TestDispatch_InjectsOnlyDeclaredCapabilities(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	tbl := registry.New()
	var none, all handlers.Request
	tbl.Register("start", handlers.HandlerFunc(func(_ context.Context, req *handlers.Request) (outcome.Outcome, error) {
		none = *req
		return outcome.Redirect{Path: "all"}, nil
	}))
	tbl.Register("all", handlers.HandlerFunc(func(_ context.Context, req *handlers.Request) (outcome.Outcome, error) {
		all = *req
		return outcome.Text{Body: "ok"}, nil
	}), handlers.WithAll())
	d := newDispatcher(t, ctx, tbl)
	s := sessiontest.New("user-1", "start")

	require.NoError(t, d.Dispatch(ctx, event.New("user-1", "start", "hi"), s))

	assert.Nil(t, none.Event)
	assert.Nil(t, none.Route)
	assert.Nil(t, none.Session)
	require.NotNil(t, all.Event)
	require.NotNil(t, all.Route)
	assert.Equal(t, "start.all", all.Route.String())
	assert.Equal(t, s, all.Session)

	// The injected route validates Next against the table.
	_, err := all.Route.Next("missing")
	assert.ErrorIs(t, err, route.ErrNotFound)
}

func TestDispatch_HandlerErrorPropagates(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	boom := errors.New("database down")
	tbl := registry.New()
	tbl.Register("start", handlers.HandlerFunc(func(context.Context, *handlers.Request) (outcome.Outcome, error) {
		return nil, boom
	}), handlers.RunBlocking())
	d := newDispatcher(t, ctx, tbl)
	s := sessiontest.New("user-1", "start")

	err := d.Dispatch(ctx, event.New("user-1", "start", ""), s)

	assert.ErrorIs(t, err, boom)
	var he *HandlerError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "start", he.Handler)
	assert.Empty(t, s.Calls())
}

func TestDispatch_HandlerPanicBecomesError(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	tbl := registry.New()
	tbl.Register("start", handlers.HandlerFunc(func(context.Context, *handlers.Request) (outcome.Outcome, error) {
		panic("index out of range")
	}))
	d := newDispatcher(t, ctx, tbl)

	err := d.Dispatch(ctx, event.New("user-1", "start", ""), sessiontest.New("user-1", "start"))

	var pe *workerpool.PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "index out of range", pe.Value)
}

func TestDispatch_RedirectCycleIsBounded(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	tbl := registry.New()
	tbl.Register("start", returns(outcome.Redirect{Path: "start.a"}))
	tbl.Register("a", returns(outcome.Redirect{Path: "start.b"}))
	tbl.Register("b", returns(outcome.Redirect{Path: "start.a"}))
	d := newDispatcher(t, ctx, tbl, WithMaxRedirects(5))
	s := sessiontest.New("user-1", "start")

	err := d.Dispatch(ctx, event.New("user-1", "start", ""), s)

	var rl *RedirectLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 5, rl.Limit)
	assert.ErrorIs(t, err, ErrRedirectLimit)
	assert.Len(t, s.Calls(), 5)
}

func TestDispatch_BlankTargetFailsTurn(t *testing.T) {
	tests := []struct {
		name string
		out  outcome.Outcome
		kind string
	}{
		{name: "redirect", out: outcome.Redirect{Path: ""}, kind: "redirect"},
		{name: "move", out: outcome.Move{Path: "  "}, kind: "move"},
		{name: "move in batch", out: outcome.Seq("hi", outcome.Move{Path: "."}), kind: "move"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			ctx, _ := testutil.LogContext(t)
			var mu sync.Mutex
			calls := 0
			tbl := registry.New()
			tbl.Register("a", handlers.HandlerFunc(func(context.Context, *handlers.Request) (outcome.Outcome, error) {
				mu.Lock()
				calls++
				mu.Unlock()
				return tc.out, nil
			}))
			d := newDispatcher(t, ctx, tbl)
			s := sessiontest.New("user-1", "start.a")

			// Act
			err := d.Dispatch(ctx, event.New("user-1", "start.a", ""), s)

			// Assert
			var te *TargetError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tc.kind, te.Kind)
			assert.Equal(t, "start.a", te.Path)
			assert.ErrorIs(t, err, route.ErrEmptyTarget)
			assert.Equal(t, 1, calls)
			for _, c := range s.Strings() {
				assert.NotContains(t, c, "route(")
			}
		})
	}
}

func TestDispatch_InvalidOutcomeIsDropped(t *testing.T) {
	ctx, logs := testutil.LogContext(t)
	tbl := registry.New()
	tbl.Register("start", handlers.Plain(func(context.Context, *handlers.Request) (any, error) {
		return struct{ X int }{1}, nil
	}))
	d := newDispatcher(t, ctx, tbl)
	s := sessiontest.New("user-1", "start")

	err := d.Dispatch(ctx, event.New("user-1", "start", ""), s)

	require.NoError(t, err)
	assert.Empty(t, s.Calls())
	testutil.AssertLogged(t, logs, "Invalid handler outcome dropped.", "struct")
}

func TestDispatch_SessionFailureStopsBatch(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	tbl := registry.New()
	tbl.Register("start", returns(outcome.Seq("one", outcome.Move{Path: "next"})))
	d := newDispatcher(t, ctx, tbl)
	s := sessiontest.New("user-1", "start")
	s.FailOn = "send"

	err := d.Dispatch(ctx, event.New("user-1", "start", ""), s)

	assert.ErrorContains(t, err, "sending message")
	assert.Equal(t, []string{"send(one)"}, s.Strings())
}

func TestDispatch_ControlOutcomes(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	end, err := outcome.NewEndChat("", "resolved", "customer happy")
	require.NoError(t, err)
	tbl := registry.New()
	tbl.Register("start", returns(outcome.Batch{
		outcome.TransferToHuman{CampaignID: "c1", CampaignName: "sales"},
		outcome.NewTransferToMenu(" Billing ", "moving you"),
		end,
	}))
	d := newDispatcher(t, ctx, tbl)
	s := sessiontest.New("user-1", "start")

	require.NoError(t, d.Dispatch(ctx, event.New("user-1", "start", ""), s))

	assert.Equal(t, []string{"human(c1sales)", "menu(billing)", "end(resolved)"}, s.Strings())
}

func TestDispatch_EndChatWithoutTarget(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	tbl := registry.New()
	tbl.Register("start", returns(outcome.EndChat{}))
	d := newDispatcher(t, ctx, tbl)

	err := d.Dispatch(ctx, event.New("user-1", "start", ""), sessiontest.New("user-1", "start"))

	assert.ErrorIs(t, err, outcome.ErrEndChatTarget)
}

func TestDispatch_BackgroundResultIsResolved(t *testing.T) {
	// Arrange
	ctx, _ := testutil.LogContext(t)
	release := make(chan struct{})
	tbl := registry.New()
	tbl.Register("start", returns(outcome.Batch{
		outcome.Text{Body: "working on it"},
		outcome.Background{Name: "report", Task: func(context.Context) (outcome.Outcome, error) {
			<-release
			return outcome.Seq("report ready", outcome.Redirect{Path: "done"}), nil
		}},
	}))
	tbl.Register("done", returns(outcome.Text{Body: "anything else?"}))
	d := newDispatcher(t, ctx, tbl)
	s := sessiontest.New("user-1", "start")
	turnCtx, cancel := context.WithCancel(ctx)

	// Act
	err := d.Dispatch(turnCtx, event.New("user-1", "start", ""), s)
	cancel()
	require.NoError(t, err)
	assert.Equal(t, []string{"send(working on it)"}, s.Strings(), "the turn must not wait for the task")
	close(release)
	require.NoError(t, d.Wait(ctx))

	// Assert
	assert.Equal(t, []string{
		"send(working on it)",
		"send(report ready)",
		"route(start.done)",
		"send(anything else?)",
	}, s.Strings())
}

func TestDispatch_UndeclaredOutcomeWarns(t *testing.T) {
	ctx, logs := testutil.LogContext(t)
	tbl := registry.New()
	tbl.Register("start", returns(outcome.Text{Body: "hi"}), handlers.Returns(outcome.KindMove))
	d := newDispatcher(t, ctx, tbl)

	require.NoError(t, d.Dispatch(ctx, event.New("user-1", "start", ""), sessiontest.New("user-1", "start")))

	testutil.AssertLogged(t, logs, "Handler returned an undeclared outcome.", "kind=text")
}

func TestDispatch_LogsStateTransitions(t *testing.T) {
	ctx, logs := testutil.LogContext(t)
	tbl := registry.New()
	tbl.Register("start", returns(outcome.Text{Body: "hi"}))
	d := newDispatcher(t, ctx, tbl)
	ev := event.New("user-1", "start", "")

	require.NoError(t, d.Dispatch(ctx, ev, sessiontest.New("user-1", "start")))

	for _, to := range []string{"to=intercepting", "to=routing", "to=invoking", "to=resolving", "to=idle"} {
		testutil.AssertLogged(t, logs, "Dispatcher state changed.", to, "turn_id="+ev.TurnID)
	}
}
