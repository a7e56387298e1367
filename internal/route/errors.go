package route

import (
	"errors"
	"fmt"
)

// ErrNotFound matches every *NotFoundError through errors.Is.
var ErrNotFound = errors.New("route not found")

// ErrEmptyTarget is returned by Splice when the target has no segments.
var ErrEmptyTarget = errors.New("route target is empty")

// NotFoundError is returned when a path cannot be resolved, either by the
// dispatcher (no interceptor and no table entry) or by Next/Previous.
type NotFoundError struct {
	SessionID string
	Path      string
	Reason    string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("route not found: %s", e.Path)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.SessionID != "" {
		msg += fmt.Sprintf(" [session %s]", e.SessionID)
	}
	return msg
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
