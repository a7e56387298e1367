package socketio

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/specialistvlad/chatgraph/internal/event"
	"github.com/tidwall/gjson"
)

// DecodeEvent parses one inbound payload. The session is identified by
// session_id, falling back to user_id or chat_id.user_id. Content is taken
// from content, then text, then message.text_message.detail.
func DecodeEvent(raw []byte) (*event.Event, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return nil, fmt.Errorf("payload must be a JSON object, got %s", doc.Type)
	}

	sessionID := first(doc, "session_id", "user_id", "chat_id.user_id")
	if sessionID == "" {
		return nil, fmt.Errorf("payload has no session_id")
	}
	ev := &event.Event{
		TurnID:     doc.Get("turn_id").String(),
		SessionID:  sessionID,
		CompanyID:  first(doc, "company_id", "chat_id.company_id"),
		Platform:   doc.Get("platform").String(),
		Route:      strings.TrimSpace(doc.Get("route").String()),
		Menu:       first(doc, "menu.name", "menu"),
		Content:    first(doc, "content", "text", "message.text_message.detail"),
		Type:       doc.Get("type").String(),
		ReceivedAt: time.Now().UTC(),
	}
	if ev.Type == "" {
		ev.Type = "text"
	}

	obs := doc.Get("observation")
	switch {
	case obs.IsObject():
		ev.Observation = stringMap(obs)
	case obs.Type == gjson.String && gjson.Valid(obs.Str):
		if parsed := gjson.Parse(obs.Str); parsed.IsObject() {
			ev.Observation = stringMap(parsed)
		}
	}
	return ev, nil
}

// payloadBytes turns one socket.io event argument into JSON.
func payloadBytes(arg any) ([]byte, error) {
	switch v := arg.(type) {
	case nil:
		return nil, fmt.Errorf("empty payload")
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(v)
	}
}

func first(doc gjson.Result, paths ...string) string {
	for _, p := range paths {
		r := doc.Get(p)
		if r.Exists() && r.Type != gjson.JSON && r.String() != "" {
			return r.String()
		}
	}
	return ""
}

func stringMap(obj gjson.Result) map[string]string {
	out := map[string]string{}
	obj.ForEach(func(k, v gjson.Result) bool {
		out[k.String()] = v.String()
		return true
	})
	return out
}
