// Package testing prepares process environment for handler tests. Import it
// for side effects only.
package testing

import "os"

// defaults are applied only where the variable is unset, so a developer can
// still point a test run at a real upstream.
var defaults = map[string]string{
	"ROLEBOARD_TEST_MODE": "1",
	"API_URL":             "http://127.0.0.1:0/api",
	"SESSION_SECRET":      "test-session-secret",
	"CSRF_SECRET":         "test-csrf-secret",
}

func init() {
	for key, value := range defaults {
		if _, ok := os.LookupEnv(key); !ok {
			_ = os.Setenv(key, value)
		}
	}
}
