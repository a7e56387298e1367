// Package socketio consumes inbound chat events from a socket.io server and
// answers on the same connection. Session positions are kept in a
// session.Store, so payloads only need to carry the session id and content.
package socketio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/specialistvlad/chatgraph/internal/ctxlog"
	"github.com/specialistvlad/chatgraph/internal/event"
	"github.com/specialistvlad/chatgraph/internal/session"
	"github.com/zishang520/engine.io/v2/types"
	"golang.org/x/sync/semaphore"
)

// DefaultConnectTimeout bounds the initial handshake.
const DefaultConnectTimeout = 15 * time.Second

// Config describes the server, namespace and events to use.
type Config struct {
	URL       string
	Namespace string
	// Event is the inbound event name; ReplyEvent carries the answers and
	// defaults to Event.
	Event              string
	ReplyEvent         string
	ConnectTimeout     time.Duration
	InsecureSkipVerify bool
	// MaxInFlight bounds the events handled at once across all sessions.
	MaxInFlight int64
}

// Source is an event.Source fed by a socket.io connection. Events of one
// session are handled one at a time in arrival order; different sessions run
// concurrently up to MaxInFlight.
type Source struct {
	cfg   Config
	store session.Store
	sem   *semaphore.Weighted
	queue *sessionQueues
	wg    sync.WaitGroup
}

// New creates a source. store must not be nil.
func New(cfg Config, store session.Store) (*Source, error) {
	if store == nil {
		return nil, errors.New("socket.io source needs a session store")
	}
	if cfg.Event == "" {
		cfg.Event = "message"
	}
	if cfg.ReplyEvent == "" {
		cfg.ReplyEvent = cfg.Event
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "/"
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 64
	}
	return &Source{
		cfg:   cfg,
		store: store,
		sem:   semaphore.NewWeighted(cfg.MaxInFlight),
		queue: newSessionQueues(),
	}, nil
}

// Run connects and handles inbound events until ctx is cancelled. It waits
// for in-flight events before returning.
func (s *Source) Run(ctx context.Context, fn event.HandlerFunc) error {
	io, err := connect(ctx, s.cfg)
	if err != nil {
		return err
	}
	defer io.Disconnect()

	emit := func(name string, args ...any) { io.Emit(name, args...) }
	io.On(types.EventName(s.cfg.Event), func(data ...any) {
		if len(data) == 0 {
			ctxlog.FromContext(ctx).Warn("Received socket.io event without payload.", "event", s.cfg.Event)
			return
		}
		s.handle(ctx, data[0], emit, fn)
	})
	io.On(types.EventName("disconnect"), func(reason ...any) {
		ctxlog.FromContext(ctx).Warn("Disconnected from socket.io server.", "reason", fmt.Sprint(reason...))
	})

	ctxlog.FromContext(ctx).Info("Listening for socket.io events.", "event", s.cfg.Event, "reply_event", s.cfg.ReplyEvent)
	<-ctx.Done()
	s.wg.Wait()
	return nil
}

// handle decodes one payload and queues fn for it behind the earlier events
// of the same session. It blocks while MaxInFlight events are pending.
func (s *Source) handle(ctx context.Context, payload any, emit emitFunc, fn event.HandlerFunc) {
	logger := ctxlog.FromContext(ctx)
	raw, err := payloadBytes(payload)
	if err != nil {
		logger.Warn("Dropping socket.io payload.", "error", err)
		return
	}
	ev, err := DecodeEvent(raw)
	if err != nil {
		logger.Warn("Dropping socket.io payload.", "error", err)
		return
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		logger.Warn("Dropping socket.io event on shutdown.", "session_id", ev.SessionID)
		return
	}
	s.wg.Add(1)
	job := func() {
		defer s.wg.Done()
		defer s.sem.Release(1)

		if err := s.prepare(ctx, ev); err != nil {
			logger.Error("Failed to load session.", "session_id", ev.SessionID, "error", err)
			return
		}
		sess := newSession(ev, s.cfg.ReplyEvent, emit, s.store)
		if err := fn(ctx, ev, sess); err != nil {
			logger.Error("Event handling failed.", "session_id", ev.SessionID, "turn_id", ev.TurnID, "error", err)
		}
	}
	if s.queue.push(ev.SessionID, job) {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.queue.drain(ev.SessionID)
		}()
	}
}

// prepare fills in the stored route when the payload has none and records
// what the payload says about the session. A closed session restarts at the
// root.
func (s *Source) prepare(ctx context.Context, ev *event.Event) error {
	return s.store.Update(ctx, ev.SessionID, func(st *session.State) error {
		if st.Closed {
			st.Closed = false
			st.Route = "start"
		}
		if ev.Route == "" {
			ev.Route = st.Route
		} else {
			st.Route = ev.Route
		}
		if ev.CompanyID != "" {
			st.CompanyID = ev.CompanyID
		}
		if ev.Platform != "" {
			st.Platform = ev.Platform
		}
		if ev.Menu != "" {
			st.Menu = ev.Menu
		}
		for k, v := range ev.Observation {
			if st.Observation == nil {
				st.Observation = map[string]string{}
			}
			st.Observation[k] = v
		}
		if ev.Observation == nil {
			ev.Observation = st.Observation
		}
		return nil
	})
}

// Wait blocks until every handled event has finished.
func (s *Source) Wait() { s.wg.Wait() }

var _ event.Source = (*Source)(nil)
