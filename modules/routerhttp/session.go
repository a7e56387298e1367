package routerhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/specialistvlad/chatgraph/internal/event"
	"github.com/specialistvlad/chatgraph/internal/message"
	"github.com/specialistvlad/chatgraph/internal/outcome"
	"github.com/specialistvlad/chatgraph/internal/session"
)

// Session is the router-backed collaborator for the conversation an event
// arrived on. It keeps the route it last stored so later messages in the same
// turn carry it.
type Session struct {
	client *Client

	mu    sync.Mutex
	state UserState
}

// NewSession binds ev's conversation to client.
func NewSession(client *Client, ev *event.Event) *Session {
	st := UserState{
		ChatID:    ChatID{UserID: ev.SessionID, CompanyID: ev.CompanyID},
		Platform:  ev.Platform,
		SessionID: ev.SessionID,
		Route:     ev.Route,
	}
	if ev.Menu != "" {
		st.Menu = &Menu{Name: ev.Menu}
	}
	if len(ev.Observation) > 0 {
		if raw, err := json.Marshal(ev.Observation); err == nil {
			st.Observation = string(raw)
		}
	}
	return &Session{client: client, state: st}
}

func (s *Session) snapshot() UserState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ID returns the user id of the conversation.
func (s *Session) ID() string { return s.snapshot().ChatID.UserID }

// Route returns the last route stored through this session.
func (s *Session) Route() string { return s.snapshot().Route }

func (s *Session) Send(ctx context.Context, msg *message.Message) error {
	return s.client.SendMessage(ctx, msg, s.snapshot())
}

func (s *Session) SetRoute(ctx context.Context, route string) error {
	if route == "" {
		return fmt.Errorf("route cannot be empty")
	}
	if err := s.client.SetRoute(ctx, s.snapshot().ChatID, route); err != nil {
		return err
	}
	s.mu.Lock()
	s.state.Route = route
	s.mu.Unlock()
	return nil
}

// EndChat resolves the end action by id or name and closes the conversation.
func (s *Session) EndChat(ctx context.Context, end outcome.EndChat) error {
	if end.ID == "" && end.Name == "" {
		return outcome.ErrEndChatTarget
	}
	action, err := s.client.GetEndAction(ctx, end.ID, end.Name)
	if err != nil {
		return fmt.Errorf("looking up end action: %w", err)
	}
	if end.Observation != "" {
		action.Observation = end.Observation
	}
	return s.client.EndChat(ctx, s.snapshot().ChatID, *action)
}

func (s *Session) TransferToHuman(ctx context.Context, t outcome.TransferToHuman) error {
	return s.client.TransferToHuman(ctx, s.snapshot().ChatID, t.CampaignID, t.CampaignName, t.Observation)
}

func (s *Session) TransferToMenu(ctx context.Context, t outcome.TransferToMenu) error {
	if err := s.client.TransferToMenu(ctx, s.snapshot().ChatID, t.Menu, t.Message); err != nil {
		return err
	}
	s.mu.Lock()
	s.state.Menu = &Menu{Name: t.Menu}
	s.mu.Unlock()
	return nil
}

var _ session.Session = (*Session)(nil)
