package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/specialistvlad/chatgraph/internal/ctxlog"
	"github.com/specialistvlad/chatgraph/internal/event"
	"github.com/specialistvlad/chatgraph/internal/session"
)

// DefaultSessionID names the single console conversation.
const DefaultSessionID = "console"

// Source turns input lines into events of one session. Lines are handled one
// at a time, so each turn finishes before the next line is read.
type Source struct {
	SessionID string
	Platform  string
	Prompt    string

	in    io.Reader
	out   io.Writer
	store session.Store
}

// NewSource reads from in and writes answers to out.
func NewSource(in io.Reader, out io.Writer, store session.Store) *Source {
	return &Source{
		SessionID: DefaultSessionID,
		Platform:  "console",
		Prompt:    "> ",
		in:        in,
		out:       out,
		store:     store,
	}
}

// Run reads until EOF or ctx is cancelled. Handler errors are printed and
// the conversation continues.
func (s *Source) Run(ctx context.Context, fn event.HandlerFunc) error {
	logger := ctxlog.FromContext(ctx).With("session_id", s.SessionID)
	sess := NewSession(s.SessionID, s.out, s.store)

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	fmt.Fprintf(s.out, "chatgraph console, session %s. Ctrl-D to quit.\n", s.SessionID)
	for {
		fmt.Fprint(s.out, s.Prompt)
		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			return nil
		case line, ok = <-lines:
		}
		if !ok {
			fmt.Fprintln(s.out)
			select {
			case err := <-scanErr:
				if err != nil {
					return fmt.Errorf("reading input: %w", err)
				}
			default:
			}
			return nil
		}

		ev, err := s.event(ctx, strings.TrimSpace(line))
		if err != nil {
			return err
		}
		if err := fn(ctx, ev, sess); err != nil {
			logger.Warn("Turn failed.", "error", err)
			fmt.Fprintf(s.out, "!! %v\n", err)
		}
	}
}

// event builds the next event at the stored route. A closed session starts
// over at the root.
func (s *Source) event(ctx context.Context, content string) (*event.Event, error) {
	var route string
	err := s.store.Update(ctx, s.SessionID, func(st *session.State) error {
		if st.Closed {
			st.Closed = false
			st.Route = "start"
		}
		st.Platform = s.Platform
		route = st.Route
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	ev := event.New(s.SessionID, route, content)
	ev.Platform = s.Platform
	return ev, nil
}

var _ event.Source = (*Source)(nil)
