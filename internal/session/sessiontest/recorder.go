// Package sessiontest provides a recording session.Session for tests.
package sessiontest

import (
	"context"
	"fmt"
	"sync"

	"github.com/specialistvlad/chatgraph/internal/message"
	"github.com/specialistvlad/chatgraph/internal/outcome"
)

// Call is one recorded collaborator invocation.
type Call struct {
	Op  string
	Arg string
}

func (c Call) String() string { return c.Op + "(" + c.Arg + ")" }

// Recorder records every call in order and tracks the current route the way a
// real session store would.
type Recorder struct {
	mu       sync.Mutex
	id       string
	route    string
	calls    []Call
	messages []*message.Message

	// FailOn makes the named operation return an error.
	FailOn string
}

// New returns a recorder for session id positioned at route.
func New(id, route string) *Recorder {
	return &Recorder{id: id, route: route}
}

func (r *Recorder) ID() string { return r.id }

func (r *Recorder) record(op, arg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Op: op, Arg: arg})
	if r.FailOn == op {
		return fmt.Errorf("sessiontest: %s failed", op)
	}
	return nil
}

func (r *Recorder) Send(_ context.Context, msg *message.Message) error {
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()
	return r.record("send", msg.Text.Detail)
}

func (r *Recorder) SetRoute(_ context.Context, route string) error {
	r.mu.Lock()
	r.route = route
	r.mu.Unlock()
	return r.record("route", route)
}

func (r *Recorder) EndChat(_ context.Context, end outcome.EndChat) error {
	return r.record("end", end.ID+end.Name)
}

func (r *Recorder) TransferToHuman(_ context.Context, t outcome.TransferToHuman) error {
	return r.record("human", t.CampaignID+t.CampaignName)
}

func (r *Recorder) TransferToMenu(_ context.Context, t outcome.TransferToMenu) error {
	return r.record("menu", t.Menu)
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Strings renders the calls as "op(arg)".
func (r *Recorder) Strings() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

// Messages returns the sent messages.
func (r *Recorder) Messages() []*message.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*message.Message(nil), r.messages...)
}

// Route returns the last route set.
func (r *Recorder) Route() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.route
}
