// Package interceptor holds the ordered list of global handlers that are
// tried against a turn's content before normal route lookup.
package interceptor

import (
	"context"
	"fmt"
	"regexp"

	"github.com/specialistvlad/chatgraph/internal/ctxlog"
	"github.com/specialistvlad/chatgraph/internal/handlers"
	"github.com/specialistvlad/chatgraph/internal/outcome"
)

// GoBackPattern matches the built-in "go back" keywords.
const GoBackPattern = `(?i)^\s*(voltar|back)\s*$`

// Interceptor pairs a content pattern with a handler.
type Interceptor struct {
	Name       string
	Pattern    *regexp.Regexp
	Descriptor *handlers.Descriptor
}

// List is an ordered set of interceptors. The first match wins.
type List struct {
	items []Interceptor
}

// New returns an empty list.
func New() *List {
	return &List{}
}

// Defaults returns a list holding only the go-back interceptor.
func Defaults() *List {
	l := New()
	l.MustAdd("back", GoBackPattern, GoBack(), handlers.WithRoute())
	return l
}

// Add appends an interceptor. Patterns are Go regular expressions anchored
// at the start of the content, so "help" matches "help me" but not
// "I need help". Add a trailing $ to require a whole-content match.
func (l *List) Add(name, pattern string, h handlers.Handler, opts ...handlers.Option) error {
	re, err := regexp.Compile(`^(?:` + pattern + `)`)
	if err != nil {
		return fmt.Errorf("interceptor '%s': invalid pattern: %w", name, err)
	}
	l.items = append(l.items, Interceptor{
		Name:       name,
		Pattern:    re,
		Descriptor: handlers.Describe("interceptor."+name, h, opts...),
	})
	return nil
}

// MustAdd is Add for patterns known to compile.
func (l *List) MustAdd(name, pattern string, h handlers.Handler, opts ...handlers.Option) {
	if err := l.Add(name, pattern, h, opts...); err != nil {
		panic(err)
	}
}

// Match returns the first interceptor whose pattern matches content.
func (l *List) Match(content string) (*Interceptor, bool) {
	if l == nil {
		return nil, false
	}
	for i := range l.items {
		if l.items[i].Pattern.MatchString(content) {
			return &l.items[i], true
		}
	}
	return nil, false
}

// Len returns the number of interceptors.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.items)
}

// Names lists interceptor names in match order.
func (l *List) Names() []string {
	names := make([]string, 0, l.Len())
	if l == nil {
		return names
	}
	for _, it := range l.items {
		names = append(names, it.Name)
	}
	return names
}

// GoBack redirects the session to the route before the current one. It needs
// the route capability. At the root it fails with a route.NotFoundError.
func GoBack() handlers.Handler {
	return handlers.HandlerFunc(func(ctx context.Context, req *handlers.Request) (outcome.Outcome, error) {
		if req.Route == nil {
			return nil, fmt.Errorf("go back: route was not injected")
		}
		prev, err := req.Route.Previous()
		if err != nil {
			return nil, err
		}
		ctxlog.FromContext(ctx).Info("Going back.", "from", req.Route.String(), "to", prev.String())
		return outcome.Redirect{Path: prev.String()}, nil
	})
}

// Catalog returns the built-in actions that configuration can name.
func Catalog() *handlers.Catalog {
	c := handlers.NewCatalog()
	c.Add("back", GoBack(), handlers.WithRoute())
	return c
}
