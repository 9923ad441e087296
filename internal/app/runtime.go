package app

import (
	"os"
	"strconv"
)

const testModeEnv = "ROLEBOARD_TEST_MODE"

// InTestMode reports whether ROLEBOARD_TEST_MODE is set to a true value.
// main exits early in that case instead of dialing Redis and binding a port.
func InTestMode() bool {
	on, err := strconv.ParseBool(os.Getenv(testModeEnv))
	return err == nil && on
}
