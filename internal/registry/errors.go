package registry

import (
	"errors"
	"fmt"
)

// ErrComposition is matched by every CompositionError.
var ErrComposition = errors.New("route composition failed")

// CompositionError reports a table that cannot be included.
type CompositionError struct {
	Prefix string
	Reason string
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("cannot include routes under '%s': %s", e.Prefix, e.Reason)
}

// Is makes errors.Is(err, ErrComposition) succeed.
func (e *CompositionError) Is(target error) bool {
	return target == ErrComposition
}
