package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CHATGRAPH_"

// envOverrides lists the environment variables that replace file values.
type envOverrides struct {
	RouterURL      string `env:"ROUTER_URL"`
	RouterUser     string `env:"ROUTER_USER"`
	RouterPassword string `env:"ROUTER_PASS"`
	RouterTimeout  string `env:"ROUTER_TIMEOUT"`
	Workers        int    `env:"WORKERS"`
	MaxRedirects   int    `env:"MAX_REDIRECTS"`
	SocketIOURL    string `env:"SOCKETIO_URL"`
	SocketIOEvent  string `env:"SOCKETIO_EVENT"`
	LogLevel       string `env:"LOG_LEVEL"`
}

func applyEnv(cfg *Config, environ map[string]string) error {
	var o envOverrides
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&o, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	setString(&cfg.Router.BaseURL, o.RouterURL)
	setString(&cfg.Router.User, o.RouterUser)
	setString(&cfg.Router.Password, o.RouterPassword)
	setString(&cfg.Router.Timeout, o.RouterTimeout)
	setString(&cfg.SocketIO.URL, o.SocketIOURL)
	setString(&cfg.SocketIO.Event, o.SocketIOEvent)
	setString(&cfg.LogLevel, o.LogLevel)
	if o.Workers != 0 {
		cfg.Dispatcher.Workers = o.Workers
	}
	if o.MaxRedirects != 0 {
		cfg.Dispatcher.MaxRedirects = o.MaxRedirects
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// LoadDotEnv loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are skipped.
// With no arguments it reads ".env" from the working directory.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}
