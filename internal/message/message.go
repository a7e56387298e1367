// Package message holds the structured records a handler can send to a user.
package message

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ButtonType distinguishes buttons that post back into the dialog from buttons
// that open an external link.
type ButtonType string

const (
	Postback ButtonType = "postback"
	URL      ButtonType = "url"
)

// ParseButtonType accepts the wire values case-insensitively.
func ParseButtonType(s string) (ButtonType, error) {
	switch ButtonType(strings.ToLower(strings.TrimSpace(s))) {
	case Postback, "":
		return Postback, nil
	case URL:
		return URL, nil
	}
	return "", fmt.Errorf("invalid button type: %s", s)
}

// Text is the textual body of a message.
type Text struct {
	ID           string   `json:"id,omitempty"`
	Title        string   `json:"title,omitempty"`
	Detail       string   `json:"detail"`
	Caption      string   `json:"caption,omitempty"`
	MentionedIDs []string `json:"mentioned_ids,omitempty"`
}

// Button is an interactive option attached to a message.
type Button struct {
	Type   ButtonType `json:"type"`
	Title  string     `json:"title"`
	Detail string     `json:"detail,omitempty"`
}

// File references an attachment already known to the delivery side.
type File struct {
	ID       string `json:"id,omitempty"`
	URL      string `json:"url,omitempty"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// IsEmpty reports whether the file carries no identifying data.
func (f File) IsEmpty() bool {
	return f.ID == "" && f.URL == "" && f.Name == ""
}

// Extension returns the lower-cased extension of the file name, with the dot.
func (f File) Extension() string {
	return strings.ToLower(filepath.Ext(f.Name))
}

// Message is a complete outbound message.
type Message struct {
	Text          Text      `json:"text_message"`
	Buttons       []Button  `json:"buttons,omitempty"`
	DisplayButton *Button   `json:"display_button,omitempty"`
	File          *File     `json:"file,omitempty"`
	DateTime      time.Time `json:"date_time"`
}

// NewText wraps plain text into a minimal message.
func NewText(detail string) *Message {
	return &Message{Text: Text{Detail: detail}, DateTime: time.Now().UTC()}
}

// WithButtons appends postback buttons titled by the given labels.
func (m *Message) WithButtons(titles ...string) *Message {
	for _, t := range titles {
		m.Buttons = append(m.Buttons, Button{Type: Postback, Title: t})
	}
	return m
}

// HasButtons reports whether the message carries buttons.
func (m *Message) HasButtons() bool { return len(m.Buttons) > 0 }

// HasFile reports whether the message carries a non-empty attachment.
func (m *Message) HasFile() bool { return m.File != nil && !m.File.IsEmpty() }

// Preview returns a short, single-line form of the message for logs.
func (m *Message) Preview() string {
	s := m.Text.Detail
	if s == "" && m.HasFile() {
		s = "[file " + m.File.Name + "]"
	}
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 50 {
		s = s[:50] + "..."
	}
	return s
}
