package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertLogged checks that the captured log output contains a line with the
// given message and every key=value pair.
func AssertLogged(t *testing.T, logs *SafeBuffer, msg string, kv ...string) {
	t.Helper()

	for _, line := range strings.Split(logs.String(), "\n") {
		if !strings.Contains(line, msg) {
			continue
		}
		matched := true
		for _, pair := range kv {
			if !strings.Contains(line, pair) {
				matched = false
				break
			}
		}
		if matched {
			return
		}
	}
	require.Failf(t, "log line not found", "message %q with %v not found in:\n%s", msg, kv, logs.String())
}
