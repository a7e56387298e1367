package config

import (
	"context"
	"fmt"

	"github.com/specialistvlad/chatgraph/internal/handlers"
	"github.com/specialistvlad/chatgraph/internal/interceptor"
	"github.com/specialistvlad/chatgraph/internal/outcome"
)

// BuildInterceptors turns the interceptor blocks into an ordered list. With
// no blocks the built-in defaults are returned. Action names are looked up
// in catalog.
func (c *Config) BuildInterceptors(catalog *handlers.Catalog) (*interceptor.List, error) {
	if len(c.Interceptors) == 0 {
		return interceptor.Defaults(), nil
	}
	l := interceptor.New()
	for _, it := range c.Interceptors {
		h, opts, err := it.handler(catalog)
		if err != nil {
			return nil, err
		}
		if err := l.Add(it.Name, it.Pattern, h, opts...); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (it *Interceptor) handler(catalog *handlers.Catalog) (handlers.Handler, []handlers.Option, error) {
	switch {
	case it.Action != "":
		d, ok := catalog.Get(it.Action)
		if !ok {
			return nil, nil, fmt.Errorf("interceptor %q: unknown action %q (known: %v)", it.Name, it.Action, catalog.Names())
		}
		opts := []handlers.Option{func(dst *handlers.Descriptor) {
			dst.Capabilities = d.Capabilities
			dst.Mode = d.Mode
		}}
		return d.Handler, opts, nil

	case it.Redirect != "":
		target := it.Redirect
		return handlers.HandlerFunc(func(context.Context, *handlers.Request) (outcome.Outcome, error) {
			return outcome.Redirect{Path: target}, nil
		}), nil, nil

	case hasExpr(it.Reply):
		o, err := EvalReply(it.Reply)
		if err != nil {
			return nil, nil, fmt.Errorf("interceptor %q: %w", it.Name, err)
		}
		return handlers.HandlerFunc(func(context.Context, *handlers.Request) (outcome.Outcome, error) {
			return o, nil
		}), nil, nil
	}
	return nil, nil, fmt.Errorf("interceptor %q: nothing to do on match", it.Name)
}
