package app

import (
	"fmt"
	"strings"
)

// Transports an App can consume events from.
const (
	TransportConsole  = "console"
	TransportSocketIO = "socketio"
)

// StoreMemory selects the in-memory session store. Any other Store value is
// a SQLite database path.
const StoreMemory = "memory"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ConfigPath string // bot .hcl file or directory, optional
	EnvFile    string // .env file, optional

	LogFormat       string
	LogLevel        string // empty defers to CHATGRAPH_LOG_LEVEL, then "info"
	HealthcheckPort int
	// WorkerCount overrides dispatcher.workers when positive.
	WorkerCount int
	Transport   string
	Store       string
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))
	if cfg.Transport == "" {
		cfg.Transport = TransportConsole
	}
	switch cfg.Transport {
	case TransportConsole, TransportSocketIO:
	default:
		return nil, fmt.Errorf("unknown transport %q: must be '%s' or '%s'", cfg.Transport, TransportConsole, TransportSocketIO)
	}
	if strings.TrimSpace(cfg.Store) == "" {
		cfg.Store = StoreMemory
	}
	if cfg.WorkerCount < 0 {
		return nil, fmt.Errorf("workers must not be negative")
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("healthcheck port %d is out of range", cfg.HealthcheckPort)
	}
	return &cfg, nil
}
