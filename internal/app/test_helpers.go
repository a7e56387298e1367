package app

import (
	"os"
	"testing"

	"github.com/specialistvlad/chatgraph/internal/testutil"
	"github.com/stretchr/testify/require"
)

// SetupAppTest creates a new app instance for system testing. Transport
// output and logs are captured separately.
func SetupAppTest(t *testing.T, appConfig *Config, opts ...Option) (*App, *testutil.SafeBuffer, *testutil.SafeBuffer) {
	t.Helper()

	out := &testutil.SafeBuffer{}
	logs := &testutil.SafeBuffer{}
	appConfig.LogLevel = "debug"
	opts = append([]Option{WithLogWriter(logs)}, opts...)
	testApp, err := NewApp(out, appConfig, opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		if os.Getenv("CHATGRAPH_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
		}
	})

	return testApp, out, logs
}
