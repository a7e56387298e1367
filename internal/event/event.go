// Package event describes inbound turns and the sources that produce them.
package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/chatgraph/internal/session"
)

// Event is one inbound user turn.
type Event struct {
	TurnID      string
	SessionID   string
	CompanyID   string
	Platform    string
	Route       string
	Menu        string
	Content     string
	Type        string
	Observation map[string]string
	ReceivedAt  time.Time
}

// New creates a text event for a session positioned at route.
func New(sessionID, route, content string) *Event {
	return &Event{
		TurnID:     uuid.NewString(),
		SessionID:  sessionID,
		Route:      route,
		Content:    content,
		Type:       "text",
		ReceivedAt: time.Now().UTC(),
	}
}

// EnsureTurnID assigns a turn id and receive time when the source left them empty.
func (e *Event) EnsureTurnID() {
	if e.TurnID == "" {
		e.TurnID = uuid.NewString()
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now().UTC()
	}
}

// HandlerFunc processes one event against the session it arrived on.
type HandlerFunc func(ctx context.Context, ev *Event, s session.Session) error

// Source produces events until ctx is cancelled or the underlying transport
// ends. Each event is handed to fn; the source decides how many run at once
// and what to do with the returned error.
type Source interface {
	Run(ctx context.Context, fn HandlerFunc) error
}
