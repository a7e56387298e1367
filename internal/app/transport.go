package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/chatgraph/internal/config"
	"github.com/specialistvlad/chatgraph/internal/ctxlog"
	"github.com/specialistvlad/chatgraph/internal/dispatch"
	"github.com/specialistvlad/chatgraph/internal/event"
	"github.com/specialistvlad/chatgraph/internal/inmemorystore"
	"github.com/specialistvlad/chatgraph/internal/session"
	"github.com/specialistvlad/chatgraph/internal/sessionstore"
	"github.com/specialistvlad/chatgraph/modules/console"
	"github.com/specialistvlad/chatgraph/modules/routerhttp"
	"github.com/specialistvlad/chatgraph/modules/socketio"
)

// openStore returns the session store named by target and its release function.
func openStore(ctx context.Context, target string) (session.Store, func(), error) {
	logger := ctxlog.FromContext(ctx)
	if target == "" || target == StoreMemory {
		logger.Debug("Using in-memory session store.")
		return inmemorystore.New(), func() {}, nil
	}
	s, err := sessionstore.Open(ctx, target)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open session store: %w", err)
	}
	logger.Info("Using SQLite session store.", "path", target)
	return s, func() {
		if err := s.Close(); err != nil {
			logger.Error("Failed to close session store.", "error", err)
		}
	}, nil
}

// newSource builds the configured event source.
func (a *App) newSource(store session.Store) (event.Source, error) {
	switch a.config.Transport {
	case TransportConsole:
		return console.NewSource(a.inR, a.outW, store), nil
	case TransportSocketIO:
		sio := a.bot.SocketIO
		if sio.URL == "" {
			return nil, fmt.Errorf("socketio transport needs socketio.url or %sSOCKETIO_URL", config.EnvPrefix)
		}
		return socketio.New(socketio.Config{
			URL:         sio.URL,
			Namespace:   sio.Namespace,
			Event:       sio.Event,
			MaxInFlight: int64(4 * a.workers()),
		}, store)
	}
	return nil, fmt.Errorf("unknown transport %q", a.config.Transport)
}

// handler returns the function sources hand events to. With a router
// configured, outbound actions go to the router service and routes are
// mirrored into the local store.
func (a *App) handler(d *dispatch.Dispatcher, store session.Store) (event.HandlerFunc, func(), error) {
	r := a.bot.Router
	if r.BaseURL == "" {
		return d.Dispatch, func() {}, nil
	}
	timeout, err := r.TimeoutDuration()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid router timeout: %w", err)
	}
	client, err := routerhttp.New(routerhttp.Config{
		BaseURL:  r.BaseURL,
		User:     r.User,
		Password: r.Password,
		Timeout:  timeout,
	})
	if err != nil {
		return nil, nil, err
	}
	a.logger.Info("Delivering through router service.", "base_url", r.BaseURL)

	fn := func(ctx context.Context, ev *event.Event, _ session.Session) error {
		return d.Dispatch(ctx, ev, &routedSession{Session: routerhttp.NewSession(client, ev), store: store})
	}
	return fn, func() { _ = client.Close() }, nil
}

// routedSession is a router session that also records routes locally, so
// transports that omit the route can resume from the store.
type routedSession struct {
	*routerhttp.Session
	store session.Store
}

func (s *routedSession) SetRoute(ctx context.Context, route string) error {
	if err := s.Session.SetRoute(ctx, route); err != nil {
		return err
	}
	return s.store.Update(ctx, s.ID(), func(st *session.State) error {
		st.Route = route
		return nil
	})
}
