package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	ev := New("u1", "start.menu", "hi")

	assert.NotEmpty(t, ev.TurnID)
	assert.Equal(t, "u1", ev.SessionID)
	assert.Equal(t, "start.menu", ev.Route)
	assert.Equal(t, "text", ev.Type)
	assert.False(t, ev.ReceivedAt.IsZero())
}

func TestEnsureTurnID(t *testing.T) {
	ev := &Event{SessionID: "u1"}
	ev.EnsureTurnID()
	assert.NotEmpty(t, ev.TurnID)
	assert.False(t, ev.ReceivedAt.IsZero())

	id := ev.TurnID
	ev.EnsureTurnID()
	assert.Equal(t, id, ev.TurnID)
}
