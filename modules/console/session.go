// Package console runs a conversation on a terminal: stdin lines become
// events of one session and outbound messages are written to an io.Writer.
package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/specialistvlad/chatgraph/internal/message"
	"github.com/specialistvlad/chatgraph/internal/outcome"
	"github.com/specialistvlad/chatgraph/internal/session"
)

// Session prints outbound messages and control actions and keeps the route
// in a session.Store.
type Session struct {
	id    string
	store session.Store

	mu  sync.Mutex
	out io.Writer
}

// NewSession creates a session writing to out.
func NewSession(id string, out io.Writer, store session.Store) *Session {
	return &Session{id: id, out: out, store: store}
}

func (s *Session) ID() string { return s.id }

func (s *Session) printf(format string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.out, format, args...)
	return err
}

// Send renders the message body, then one numbered line per button.
func (s *Session) Send(_ context.Context, msg *message.Message) error {
	if msg == nil {
		return fmt.Errorf("message is nil")
	}
	var b strings.Builder
	if msg.Text.Title != "" {
		fmt.Fprintf(&b, "bot: *%s*\n", msg.Text.Title)
	}
	if msg.Text.Detail != "" {
		fmt.Fprintf(&b, "bot: %s\n", msg.Text.Detail)
	}
	if msg.HasFile() {
		fmt.Fprintf(&b, "bot: [file %s]\n", firstNonEmpty(msg.File.Name, msg.File.URL, msg.File.ID))
	}
	for i, btn := range msg.Buttons {
		if btn.Type == message.URL {
			fmt.Fprintf(&b, "  %d) %s <%s>\n", i+1, btn.Title, btn.Detail)
			continue
		}
		fmt.Fprintf(&b, "  %d) %s\n", i+1, btn.Title)
	}
	return s.printf("%s", b.String())
}

func (s *Session) SetRoute(ctx context.Context, route string) error {
	if route == "" {
		return fmt.Errorf("route cannot be empty")
	}
	return s.store.Update(ctx, s.id, func(st *session.State) error {
		st.Route = route
		return nil
	})
}

func (s *Session) EndChat(ctx context.Context, end outcome.EndChat) error {
	if end.ID == "" && end.Name == "" {
		return outcome.ErrEndChatTarget
	}
	err := s.store.Update(ctx, s.id, func(st *session.State) error {
		st.Closed = true
		return nil
	})
	if err != nil {
		return err
	}
	return s.printf("-- chat ended (%s) --\n", firstNonEmpty(end.Name, end.ID))
}

func (s *Session) TransferToHuman(_ context.Context, t outcome.TransferToHuman) error {
	return s.printf("-- transferred to a human (%s) --\n", firstNonEmpty(t.CampaignName, t.CampaignID, "default queue"))
}

func (s *Session) TransferToMenu(ctx context.Context, t outcome.TransferToMenu) error {
	err := s.store.Update(ctx, s.id, func(st *session.State) error {
		st.Menu = t.Menu
		return nil
	})
	if err != nil {
		return err
	}
	return s.printf("-- transferred to menu %s --\n", t.Menu)
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ session.Session = (*Session)(nil)
