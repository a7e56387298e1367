// Package handlers defines the handler contract and the descriptor built for
// every handler at registration time.
//
// A handler does not have its parameters inspected at runtime. Instead it
// declares the capabilities it wants, either through registration options or
// by implementing CapabilityDeclarer, and the dispatcher fills in only those
// fields of the Request.
package handlers

import (
	"fmt"
	"slices"
	"strings"

	"github.com/specialistvlad/chatgraph/internal/outcome"
)

// Capability is one injectable input.
type Capability uint8

const (
	// CapEvent injects the inbound event.
	CapEvent Capability = 1 << iota
	// CapRoute injects a route.Path anchored at the current path.
	CapRoute
	// CapSession injects the session collaborator.
	CapSession
)

// Has reports whether all bits of x are set.
func (c Capability) Has(x Capability) bool { return c&x == x }

func (c Capability) String() string {
	if c == 0 {
		return "none"
	}
	var parts []string
	if c.Has(CapEvent) {
		parts = append(parts, "event")
	}
	if c.Has(CapRoute) {
		parts = append(parts, "route")
	}
	if c.Has(CapSession) {
		parts = append(parts, "session")
	}
	return strings.Join(parts, "|")
}

// Mode selects where the dispatcher runs a handler.
type Mode int

const (
	// Inline handlers run on the dispatching goroutine. They must not block.
	Inline Mode = iota
	// Blocking handlers run on the worker pool and may perform blocking I/O.
	Blocking
)

func (m Mode) String() string {
	if m == Blocking {
		return "blocking"
	}
	return "inline"
}

// CapabilityDeclarer lets a handler type declare its inputs itself.
type CapabilityDeclarer interface {
	Capabilities() Capability
}

// ModeDeclarer lets a handler type declare its execution mode itself.
type ModeDeclarer interface {
	Mode() Mode
}

// Descriptor is the immutable, registration-time description of a handler.
type Descriptor struct {
	Name         string
	Handler      Handler
	Capabilities Capability
	Mode         Mode
	// Returns lists the outcome kinds the handler declared. Empty means any.
	Returns []outcome.Kind
}

// Option adjusts a descriptor during Describe.
type Option func(*Descriptor)

// WithEvent requests the inbound event.
func WithEvent() Option { return func(d *Descriptor) { d.Capabilities |= CapEvent } }

// WithRoute requests the current route.
func WithRoute() Option { return func(d *Descriptor) { d.Capabilities |= CapRoute } }

// WithSession requests the session collaborator.
func WithSession() Option { return func(d *Descriptor) { d.Capabilities |= CapSession } }

// WithAll requests every capability.
func WithAll() Option {
	return func(d *Descriptor) { d.Capabilities |= CapEvent | CapRoute | CapSession }
}

// RunBlocking marks the handler as blocking.
func RunBlocking() Option { return func(d *Descriptor) { d.Mode = Blocking } }

// Returns declares the outcome kinds the handler produces.
func Returns(kinds ...outcome.Kind) Option {
	return func(d *Descriptor) { d.Returns = append(d.Returns, kinds...) }
}

// Describe builds a descriptor. Declarer interfaces are consulted first and
// options are applied on top.
func Describe(name string, h Handler, opts ...Option) *Descriptor {
	if h == nil {
		panic(fmt.Sprintf("handler for '%s' is nil", name))
	}
	d := &Descriptor{Name: name, Handler: h}
	if cd, ok := h.(CapabilityDeclarer); ok {
		d.Capabilities = cd.Capabilities()
	}
	if md, ok := h.(ModeDeclarer); ok {
		d.Mode = md.Mode()
	}
	for _, opt := range opts {
		opt(d)
	}
	d.Returns = slices.Clone(d.Returns)
	return d
}

// Declares reports whether kind is within the declared return shape.
func (d *Descriptor) Declares(kind outcome.Kind) bool {
	if len(d.Returns) == 0 {
		return true
	}
	return slices.Contains(d.Returns, kind)
}

// Rebind returns a copy of d registered under another name.
func (d *Descriptor) Rebind(name string) *Descriptor {
	c := *d
	c.Name = name
	c.Returns = slices.Clone(d.Returns)
	return &c
}
