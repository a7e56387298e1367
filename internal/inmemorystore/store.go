// Package inmemorystore provides an ephemeral, thread-safe, in-memory
// implementation of the session.Store interface.
//
// # Purpose
//
// This package keeps the position of each conversation (route, menu,
// observations) for local runs, the console transport and tests. Nothing is
// persisted: restarting the process starts every session at the root again.
//
// # Concurrency Model
//
// States live in a sync.Map keyed by session id. Inbound events for different
// sessions are handled concurrently, each touching its own key, which is the
// access pattern sync.Map is built for. Read-modify-write through Update is
// serialized by a mutex so two writers on the same session cannot lose each
// other's changes.
//
// Values handed out by Get are deep copies; callers may modify them freely.
//
// # When to Use
//
// For sessions that must survive a restart use the SQLite-backed
// sessionstore package instead.
package inmemorystore

import (
	"context"
	"sync"
	"time"

	"github.com/specialistvlad/chatgraph/internal/session"
)

// Store is an in-memory implementation of session.Store.
type Store struct {
	states  sync.Map // Key: session id, Value: *session.State
	writeMu sync.Mutex
	now     func() time.Time
}

// New creates a new, empty in-memory session store.
func New() *Store {
	return &Store{now: func() time.Time { return time.Now().UTC() }}
}

// Get returns a copy of the stored state, or session.ErrNotFound.
func (s *Store) Get(_ context.Context, sessionID string) (*session.State, error) {
	v, ok := s.states.Load(sessionID)
	if !ok {
		return nil, session.ErrNotFound
	}
	return v.(*session.State).Clone(), nil
}

// Put stores a copy of st.
func (s *Store) Put(_ context.Context, st *session.State) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	c := st.Clone()
	c.UpdatedAt = s.now()
	s.states.Store(c.SessionID, c)
	return nil
}

// Update applies fn to the session's state and stores the result. An error
// from fn leaves the stored state untouched.
func (s *Store) Update(_ context.Context, sessionID string, fn func(st *session.State) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	st := session.NewState(sessionID)
	if v, ok := s.states.Load(sessionID); ok {
		st = v.(*session.State).Clone()
	}
	if err := fn(st); err != nil {
		return err
	}
	st.SessionID = sessionID
	st.UpdatedAt = s.now()
	s.states.Store(sessionID, st)
	return nil
}

// Delete forgets a session. Deleting an unknown session is not an error.
func (s *Store) Delete(_ context.Context, sessionID string) error {
	s.states.Delete(sessionID)
	return nil
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	n := 0
	s.states.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
