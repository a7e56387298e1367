package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertLogged checks that every fragment appears on a single log line.
func AssertLogged(t *testing.T, logs *SafeBuffer, fragments ...string) {
	t.Helper()
	for _, line := range strings.Split(logs.String(), "\n") {
		if containsAll(line, fragments) {
			return
		}
	}
	require.Failf(t, "log line not found", "no log line contains all of %q\n%s", fragments, logs.String())
}

func containsAll(line string, fragments []string) bool {
	for _, f := range fragments {
		if !strings.Contains(line, f) {
			return false
		}
	}
	return true
}
