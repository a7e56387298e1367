// Package dispatch drives one conversation turn: it matches interceptors,
// looks up the handler that owns the session's position, invokes it with the
// capabilities it declared and resolves the returned outcome into calls on the
// session collaborator.
package dispatch

import (
	"context"
	"runtime"

	"github.com/specialistvlad/chatgraph/internal/background"
	"github.com/specialistvlad/chatgraph/internal/ctxlog"
	"github.com/specialistvlad/chatgraph/internal/event"
	"github.com/specialistvlad/chatgraph/internal/handlers"
	"github.com/specialistvlad/chatgraph/internal/interceptor"
	"github.com/specialistvlad/chatgraph/internal/outcome"
	"github.com/specialistvlad/chatgraph/internal/registry"
	"github.com/specialistvlad/chatgraph/internal/route"
	"github.com/specialistvlad/chatgraph/internal/session"
	"github.com/specialistvlad/chatgraph/internal/workerpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxRedirects bounds the redirects followed within one turn.
const DefaultMaxRedirects = 32

const tracerName = "github.com/specialistvlad/chatgraph/internal/dispatch"

// Dispatcher routes inbound events to handlers. It is safe for concurrent use
// by any number of turns.
type Dispatcher struct {
	table        *registry.Table
	interceptors *interceptor.List
	pool         *workerpool.Pool
	ownsPool     bool
	runner       *background.Runner
	maxRedirects int
	tracer       trace.Tracer
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithInterceptors replaces the default go-back interceptor list.
func WithInterceptors(l *interceptor.List) Option {
	return func(d *Dispatcher) { d.interceptors = l }
}

// WithPool runs blocking handlers on p. The caller keeps ownership of p.
func WithPool(p *workerpool.Pool) Option {
	return func(d *Dispatcher) { d.pool = p }
}

// WithRunner supervises background tasks with r.
func WithRunner(r *background.Runner) Option {
	return func(d *Dispatcher) { d.runner = r }
}

// WithMaxRedirects sets the per-turn redirect bound. Values below one keep
// the default.
func WithMaxRedirects(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxRedirects = n
		}
	}
}

// WithTracer sets the tracer used for turn spans.
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) { d.tracer = t }
}

// New creates a dispatcher over a finished route table. Without WithPool it
// starts its own pool sized to the CPU count, released by Close.
func New(ctx context.Context, table *registry.Table, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		table:        table,
		interceptors: interceptor.Defaults(),
		maxRedirects: DefaultMaxRedirects,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.pool == nil {
		d.pool = workerpool.New(ctx, runtime.NumCPU())
		d.ownsPool = true
	}
	if d.runner == nil {
		d.runner = background.New()
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer(tracerName)
	}
	ctxlog.FromContext(ctx).Debug("Dispatcher created.",
		"routes", table.Len(), "interceptors", d.interceptors.Len(),
		"workers", d.pool.Size(), "max_redirects", d.maxRedirects)
	return d
}

// Dispatch runs one turn for ev against s. It returns after every outcome of
// the turn, including redirects, has been resolved. Background tasks spawned
// by the turn keep running; use Wait to drain them.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *event.Event, s session.Session) error {
	ev.EnsureTurnID()
	sessionID := ev.SessionID
	if sessionID == "" {
		sessionID = s.ID()
	}

	spawnCtx := ctx
	ctx, span := d.tracer.Start(ctx, "chatgraph.turn", trace.WithAttributes(
		attribute.String("chatgraph.turn_id", ev.TurnID),
		attribute.String("chatgraph.session_id", sessionID),
		attribute.String("chatgraph.route", ev.Route),
	))
	defer span.End()
	ctx, logger := ctxlog.With(ctx, "turn_id", ev.TurnID, "session_id", sessionID)

	t := &turn{
		d:         d,
		ev:        ev,
		sess:      s,
		sessionID: sessionID,
		content:   ev.Content,
		spawnCtx:  spawnCtx,
	}
	logger.Debug("Turn started.", "route", ev.Route, "content", ev.Content)
	err := t.cycle(ctx, route.Parse(ev.Route))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Debug("Turn failed.", "error", err)
		return err
	}
	span.SetAttributes(attribute.Int("chatgraph.redirects", t.redirects))
	logger.Debug("Turn finished.", "redirects", t.redirects)
	return nil
}

// Wait blocks until background tasks have finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	return d.runner.Wait(ctx)
}

// Close releases the worker pool when the dispatcher created it.
func (d *Dispatcher) Close() {
	if d.ownsPool {
		d.pool.Close()
	}
}

// turn is the per-event state shared by every cycle of one Dispatch call.
type turn struct {
	d         *Dispatcher
	ev        *event.Event
	sess      session.Session
	sessionID string
	// content is what interceptors and handlers see; it is cleared once an
	// interceptor has consumed it.
	content   string
	redirects int
	spawnCtx  context.Context
}

func (t *turn) transition(ctx context.Context, from, to State, current route.Path) State {
	ctxlog.FromContext(ctx).Debug("Dispatcher state changed.", "from", from.String(), "to", to.String(), "route", current.String())
	return to
}

// cycle runs Intercepting, Routing, Invoking and Resolving for the session
// positioned at current. Redirects re-enter cycle.
func (t *turn) cycle(ctx context.Context, current route.Path) error {
	state := t.transition(ctx, Idle, Intercepting, current)

	desc, intercepted := t.intercept(ctx)
	if !intercepted {
		state = t.transition(ctx, state, Routing, current)
		var key string
		var ok bool
		desc, key, ok = t.d.table.Resolve(current)
		if !ok {
			return &route.NotFoundError{SessionID: t.sessionID, Path: current.String()}
		}
		ctxlog.FromContext(ctx).Debug("Route resolved.", "route", current.String(), "handler", key)
	}

	state = t.transition(ctx, state, Invoking, current)
	out, err := t.invoke(ctx, desc, current)
	if err != nil {
		return &HandlerError{Handler: desc.Name, Path: current.String(), Err: err}
	}
	if intercepted {
		t.content = ""
	}

	state = t.transition(ctx, state, Resolving, current)
	if !desc.Declares(out.Kind()) {
		ctxlog.FromContext(ctx).Warn("Handler returned an undeclared outcome.",
			"handler", desc.Name, "kind", out.Kind().String())
	}
	if err := t.resolve(ctx, current, out); err != nil {
		return err
	}
	t.transition(ctx, state, Idle, current)
	return nil
}

func (t *turn) intercept(ctx context.Context) (*handlers.Descriptor, bool) {
	it, ok := t.d.interceptors.Match(t.content)
	if !ok {
		return nil, false
	}
	ctxlog.FromContext(ctx).Debug("Interceptor matched.", "interceptor", it.Name, "content", t.content)
	return it.Descriptor, true
}

// invoke builds the request from the declared capabilities and runs the
// handler inline or on the worker pool.
func (t *turn) invoke(ctx context.Context, desc *handlers.Descriptor, current route.Path) (outcome.Outcome, error) {
	req := &handlers.Request{}
	if desc.Capabilities.Has(handlers.CapEvent) {
		ev := *t.ev
		ev.Route = current.String()
		ev.Content = t.content
		req.Event = &ev
	}
	if desc.Capabilities.Has(handlers.CapRoute) {
		p := current.Within(t.d.table)
		req.Route = &p
	}
	if desc.Capabilities.Has(handlers.CapSession) {
		req.Session = t.sess
	}

	serve := func(ctx context.Context) (outcome.Outcome, error) {
		return desc.Handler.Serve(ctx, req)
	}
	var out outcome.Outcome
	var err error
	if desc.Mode == handlers.Blocking {
		ctxlog.FromContext(ctx).Debug("Invoking blocking handler on worker pool.", "handler", desc.Name)
		out, err = workerpool.Run(ctx, t.d.pool, serve)
	} else {
		out, err = workerpool.Guard(serve)(ctx)
	}
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = outcome.Empty{}
	}
	return out, nil
}

// redirect splices target onto current, persists the new route and runs a
// new cycle with the same event.
func (t *turn) redirect(ctx context.Context, current route.Path, target string) error {
	next, err := current.Splice(target)
	if err != nil {
		return &TargetError{Kind: "redirect", SessionID: t.sessionID, Path: current.String()}
	}
	t.transition(ctx, Resolving, Redirecting, next)
	t.redirects++
	if t.redirects > t.d.maxRedirects {
		return &RedirectLimitError{SessionID: t.sessionID, Path: next.String(), Limit: t.d.maxRedirects}
	}
	if err := t.sess.SetRoute(ctx, next.String()); err != nil {
		return err
	}
	return t.cycle(ctx, next)
}
