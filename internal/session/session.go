// Package session defines the collaborator the dispatcher talks back to while
// resolving a turn, and the session state record shared by the stores.
package session

import (
	"context"
	"errors"
	"maps"
	"time"

	"github.com/specialistvlad/chatgraph/internal/message"
	"github.com/specialistvlad/chatgraph/internal/outcome"
)

// Session is the per-event callback surface of the inbound event source. All
// methods may block on I/O; the dispatcher awaits each call before resolving
// the next outcome.
type Session interface {
	// ID is the stable session/user identifier.
	ID() string
	Send(ctx context.Context, msg *message.Message) error
	SetRoute(ctx context.Context, route string) error
	EndChat(ctx context.Context, end outcome.EndChat) error
	TransferToHuman(ctx context.Context, t outcome.TransferToHuman) error
	TransferToMenu(ctx context.Context, t outcome.TransferToMenu) error
}

// ErrNotFound is returned by stores for unknown sessions.
var ErrNotFound = errors.New("session not found")

// State is the persisted position of one session.
type State struct {
	SessionID   string
	CompanyID   string
	Platform    string
	Menu        string
	Route       string
	Observation map[string]string
	Closed      bool
	UpdatedAt   time.Time
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := *s
	c.Observation = maps.Clone(s.Observation)
	return &c
}

// Store persists session state. The in-memory and SQLite stores implement it.
type Store interface {
	Get(ctx context.Context, sessionID string) (*State, error)
	Put(ctx context.Context, st *State) error
	// Update applies fn to the stored state, or to a fresh root state when
	// the session is unknown, and persists the result atomically.
	Update(ctx context.Context, sessionID string, fn func(st *State) error) error
	Delete(ctx context.Context, sessionID string) error
}

// Load returns the stored state, or a fresh state at the root route when the
// session has never been seen.
func Load(ctx context.Context, store Store, sessionID string) (*State, error) {
	st, err := store.Get(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return NewState(sessionID), nil
	}
	return st, err
}

// NewState returns the state of a session that has never been seen.
func NewState(sessionID string) *State {
	return &State{SessionID: sessionID, Route: "start", Observation: map[string]string{}}
}

// SetObservation records one observation key on the session.
func SetObservation(ctx context.Context, store Store, sessionID, key, value string) error {
	return store.Update(ctx, sessionID, func(st *State) error {
		if st.Observation == nil {
			st.Observation = map[string]string{}
		}
		st.Observation[key] = value
		return nil
	})
}
