package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/specialistvlad/chatgraph/internal/handlers"
	"github.com/specialistvlad/chatgraph/internal/outcome"
)

// Sleeper is a blocking handler for concurrency tests. It sleeps, records
// when each session's invocation ran and replies with Reply.
type Sleeper struct {
	ExecutionTimes map[string]*ExecutionRecord
	Reply          string

	mu            sync.Mutex
	sleepDuration time.Duration
}

// NewSleeper creates a sleeper that blocks for d.
func NewSleeper(d time.Duration, reply string) *Sleeper {
	return &Sleeper{
		ExecutionTimes: make(map[string]*ExecutionRecord),
		Reply:          reply,
		sleepDuration:  d,
	}
}

// Serve implements handlers.Handler.
func (s *Sleeper) Serve(_ context.Context, req *handlers.Request) (outcome.Outcome, error) {
	start := time.Now()
	time.Sleep(s.sleepDuration)
	end := time.Now()

	id := ""
	if req.Session != nil {
		id = req.Session.ID()
	}
	s.mu.Lock()
	s.ExecutionTimes[id] = &ExecutionRecord{Start: start, End: end}
	s.mu.Unlock()
	return outcome.Text{Body: s.Reply}, nil
}

// Capabilities implements handlers.CapabilityDeclarer.
func (s *Sleeper) Capabilities() handlers.Capability { return handlers.CapSession }

// Mode implements handlers.ModeDeclarer.
func (s *Sleeper) Mode() handlers.Mode { return handlers.Blocking }

// Record returns the execution record for a session.
func (s *Sleeper) Record(sessionID string) (*ExecutionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.ExecutionTimes[sessionID]
	return r, ok
}
