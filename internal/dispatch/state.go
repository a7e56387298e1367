package dispatch

// State is a step of one dispatch cycle.
type State int

const (
	Idle State = iota
	Intercepting
	Routing
	Invoking
	Resolving
	Redirecting
)

var stateNames = [...]string{
	Idle:         "idle",
	Intercepting: "intercepting",
	Routing:      "routing",
	Invoking:     "invoking",
	Resolving:    "resolving",
	Redirecting:  "redirecting",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
