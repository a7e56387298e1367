package config

import (
	"time"

	"github.com/hashicorp/hcl/v2"
)

// Config is the merged, format-agnostic configuration.
type Config struct {
	Dispatcher   Dispatcher
	Interceptors []*Interceptor
	Router       Router
	SocketIO     SocketIO
	// LogLevel is only set from the environment; the CLI flag wins when given.
	LogLevel string
	// Files lists the HCL files that were loaded, in load order.
	Files []string
}

// Dispatcher tunes the dispatch engine.
type Dispatcher struct {
	Workers      int `hcl:"workers,optional"`
	MaxRedirects int `hcl:"max_redirects,optional"`
}

// Interceptor is one `interceptor "name" { ... }` block. Exactly one of
// Action, Reply or Redirect decides what a match does.
type Interceptor struct {
	Name     string         `hcl:"name,label"`
	Pattern  string         `hcl:"pattern"`
	Action   string         `hcl:"action,optional"`
	Redirect string         `hcl:"redirect,optional"`
	Reply    hcl.Expression `hcl:"reply,optional"`
}

// Router points at the HTTP chat router.
type Router struct {
	BaseURL  string `hcl:"base_url,optional"`
	Timeout  string `hcl:"timeout,optional"`
	User     string `hcl:"user,optional"`
	Password string `hcl:"password,optional"`
}

// TimeoutDuration parses Timeout, defaulting to 30 seconds.
func (r Router) TimeoutDuration() (time.Duration, error) {
	if r.Timeout == "" {
		return 30 * time.Second, nil
	}
	return time.ParseDuration(r.Timeout)
}

// SocketIO points at the realtime event feed.
type SocketIO struct {
	URL       string `hcl:"url,optional"`
	Namespace string `hcl:"namespace,optional"`
	Event     string `hcl:"event,optional"`
}

// hclFile is the decoding schema of one bot file.
type hclFile struct {
	Dispatcher   *Dispatcher    `hcl:"dispatcher,block"`
	Interceptors []*Interceptor `hcl:"interceptor,block"`
	Router       *Router        `hcl:"router,block"`
	SocketIO     *SocketIO      `hcl:"socketio,block"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Dispatcher: Dispatcher{Workers: 4, MaxRedirects: 32},
		SocketIO:   SocketIO{Namespace: "/", Event: "message"},
	}
}
