package socketio

import (
	"context"
	"fmt"

	"github.com/specialistvlad/chatgraph/internal/ctxlog"
	"github.com/specialistvlad/chatgraph/internal/event"
	"github.com/specialistvlad/chatgraph/internal/message"
	"github.com/specialistvlad/chatgraph/internal/outcome"
	"github.com/specialistvlad/chatgraph/internal/session"
)

// Outbound payload types emitted on the reply event.
const (
	TypeMessage         = "message"
	TypeRoute           = "route"
	TypeEndChat         = "end_chat"
	TypeTransferToHuman = "transfer_to_human"
	TypeTransferToMenu  = "transfer_to_menu"
)

// emitFunc sends one event over the socket.
type emitFunc func(name string, args ...any)

// Session answers over the socket the event arrived on and keeps the
// session position in a store, so the next payload may omit its route.
type Session struct {
	id        string
	companyID string
	turnID    string
	replyTo   string
	emit      emitFunc
	store     session.Store
}

func newSession(ev *event.Event, replyTo string, emit emitFunc, store session.Store) *Session {
	return &Session{
		id:        ev.SessionID,
		companyID: ev.CompanyID,
		turnID:    ev.TurnID,
		replyTo:   replyTo,
		emit:      emit,
		store:     store,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) payload(kind string, fields map[string]any) map[string]any {
	out := map[string]any{
		"type":       kind,
		"session_id": s.id,
		"turn_id":    s.turnID,
	}
	if s.companyID != "" {
		out["company_id"] = s.companyID
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func (s *Session) send(ctx context.Context, kind string, fields map[string]any) {
	ctxlog.FromContext(ctx).Debug("Emitting socket.io event.", "event", s.replyTo, "type", kind)
	s.emit(s.replyTo, s.payload(kind, fields))
}

func (s *Session) Send(ctx context.Context, msg *message.Message) error {
	if msg == nil {
		return fmt.Errorf("message is nil")
	}
	s.send(ctx, TypeMessage, map[string]any{"message": msg})
	return nil
}

func (s *Session) SetRoute(ctx context.Context, route string) error {
	if route == "" {
		return fmt.Errorf("route cannot be empty")
	}
	err := s.store.Update(ctx, s.id, func(st *session.State) error {
		st.Route = route
		if s.companyID != "" {
			st.CompanyID = s.companyID
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storing route: %w", err)
	}
	s.send(ctx, TypeRoute, map[string]any{"route": route})
	return nil
}

func (s *Session) EndChat(ctx context.Context, end outcome.EndChat) error {
	if end.ID == "" && end.Name == "" {
		return outcome.ErrEndChatTarget
	}
	err := s.store.Update(ctx, s.id, func(st *session.State) error {
		st.Closed = true
		st.Route = "start"
		return nil
	})
	if err != nil {
		return fmt.Errorf("closing session: %w", err)
	}
	s.send(ctx, TypeEndChat, map[string]any{
		"end_action": map[string]any{"id": end.ID, "name": end.Name, "observation": end.Observation},
	})
	return nil
}

func (s *Session) TransferToHuman(ctx context.Context, t outcome.TransferToHuman) error {
	s.send(ctx, TypeTransferToHuman, map[string]any{
		"campaign_id":   t.CampaignID,
		"campaign_name": t.CampaignName,
		"observation":   t.Observation,
	})
	return nil
}

func (s *Session) TransferToMenu(ctx context.Context, t outcome.TransferToMenu) error {
	err := s.store.Update(ctx, s.id, func(st *session.State) error {
		st.Menu = t.Menu
		return nil
	})
	if err != nil {
		return fmt.Errorf("storing menu: %w", err)
	}
	s.send(ctx, TypeTransferToMenu, map[string]any{"menu": t.Menu, "user_message": t.Message})
	return nil
}

var _ session.Session = (*Session)(nil)
