package dispatch

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/chatgraph/internal/route"
)

// ErrRedirectLimit matches every *RedirectLimitError.
var ErrRedirectLimit = errors.New("redirect limit exceeded")

// RedirectLimitError is returned when one turn redirects more times than the
// dispatcher allows, which usually means two handlers redirect to each other.
type RedirectLimitError struct {
	SessionID string
	Path      string
	Limit     int
}

func (e *RedirectLimitError) Error() string {
	return fmt.Sprintf("redirect limit of %d exceeded at %s [session %s]", e.Limit, e.Path, e.SessionID)
}

// Is lets errors.Is(err, ErrRedirectLimit) match.
func (e *RedirectLimitError) Is(target error) bool {
	return target == ErrRedirectLimit
}

// TargetError is returned when a Move or Redirect outcome carries a blank
// target route. It matches route.ErrEmptyTarget.
type TargetError struct {
	Kind      string
	SessionID string
	Path      string
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("%s from %s has an empty target [session %s]", e.Kind, e.Path, e.SessionID)
}

// Is lets errors.Is(err, route.ErrEmptyTarget) match.
func (e *TargetError) Is(target error) bool {
	return target == route.ErrEmptyTarget
}

// HandlerError wraps an error returned (or a panic raised) by a handler.
type HandlerError struct {
	Handler string
	Path    string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s at %s: %v", e.Handler, e.Path, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }
