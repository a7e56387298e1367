package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/specialistvlad/chatgraph/internal/event"
	"github.com/specialistvlad/chatgraph/internal/outcome"
	"github.com/specialistvlad/chatgraph/internal/route"
	"github.com/specialistvlad/chatgraph/internal/session"
)

// Request carries the capabilities a handler declared. Fields for capabilities
// the handler did not declare are left nil.
type Request struct {
	Event   *event.Event
	Route   *route.Path
	Session session.Session
}

// Content returns the event text, or "" when the event was not injected.
func (r *Request) Content() string {
	if r == nil || r.Event == nil {
		return ""
	}
	return r.Event.Content
}

// Handler is bound to one route and invoked once per matching turn.
type Handler interface {
	Serve(ctx context.Context, req *Request) (outcome.Outcome, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req *Request) (outcome.Outcome, error)

// Serve calls f.
func (f HandlerFunc) Serve(ctx context.Context, req *Request) (outcome.Outcome, error) {
	return f(ctx, req)
}

// Plain adapts a function returning plain Go values (strings, numbers, nil,
// messages, slices of those, or outcomes) through outcome.Of.
func Plain(fn func(ctx context.Context, req *Request) (any, error)) Handler {
	return HandlerFunc(func(ctx context.Context, req *Request) (outcome.Outcome, error) {
		v, err := fn(ctx, req)
		if err != nil {
			return nil, err
		}
		return outcome.Of(v), nil
	})
}

// Catalog holds handlers addressable by name, so that configuration files can
// refer to built-in actions (for example an interceptor with action = "back").
type Catalog struct {
	all map[string]*Descriptor
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{all: make(map[string]*Descriptor)}
}

// Add registers a named handler. Names are unique; a duplicate is a
// programming error.
func (c *Catalog) Add(name string, h Handler, opts ...Option) {
	if _, exists := c.all[name]; exists {
		panic(fmt.Sprintf("handler with name '%s' already registered", name))
	}
	slog.Debug("Registering named handler.", "name", name)
	c.all[name] = Describe(name, h, opts...)
}

// Get returns the descriptor for a named handler.
func (c *Catalog) Get(name string) (*Descriptor, bool) {
	d, ok := c.all[name]
	return d, ok
}

// Names lists registered names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.all))
	for n := range c.all {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
