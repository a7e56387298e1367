package cli

import (
	"bytes"
	"testing"

	"github.com/specialistvlad/chatgraph/internal/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name     string
		args     []string
		want     *app.Config
		wantExit bool
		wantCode int
		wantMsg  string
	}{
		{
			name: "defaults",
			args: nil,
			want: &app.Config{EnvFile: ".env", LogFormat: "text", Transport: app.TransportConsole, Store: app.StoreMemory},
		},
		{
			name: "positional path and options",
			args: []string{"-transport", "socketio", "-store", "/tmp/s.db", "-workers", "8", "-log-level", "DEBUG", "-log-format", "json", "-healthcheck-port", "8080", "bots/"},
			want: &app.Config{
				ConfigPath: "bots/", EnvFile: ".env", LogFormat: "json", LogLevel: "debug",
				HealthcheckPort: 8080, WorkerCount: 8, Transport: app.TransportSocketIO, Store: "/tmp/s.db",
			},
		},
		{
			name: "config flag wins over shorthand",
			args: []string{"-config", "a.hcl", "-c", "b.hcl"},
			want: &app.Config{ConfigPath: "a.hcl", EnvFile: ".env", LogFormat: "text", Transport: app.TransportConsole, Store: app.StoreMemory},
		},
		{name: "help", args: []string{"-h"}, wantExit: true},
		{name: "unknown flag", args: []string{"-nope"}, wantCode: 2, wantMsg: "flag provided but not defined"},
		{name: "bad log format", args: []string{"-log-format", "xml"}, wantCode: 2, wantMsg: "invalid log-format"},
		{name: "bad log level", args: []string{"-log-level", "loud"}, wantCode: 2, wantMsg: "invalid log-level"},
		{name: "bad transport", args: []string{"-transport", "fax"}, wantCode: 2, wantMsg: "unknown transport"},
		{name: "two paths", args: []string{"a", "b"}, wantCode: 2, wantMsg: "too many arguments"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := &bytes.Buffer{}

			cfg, exit, err := Parse(tc.args, out)

			if tc.wantCode != 0 {
				var exitErr *ExitError
				require.ErrorAs(t, err, &exitErr)
				assert.Equal(t, tc.wantCode, exitErr.Code)
				assert.Contains(t, exitErr.Message, tc.wantMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantExit, exit)
			if tc.wantExit {
				assert.Contains(t, out.String(), "Usage:")
				return
			}
			assert.Equal(t, tc.want, cfg)
		})
	}
}
