// Package guard switches the process into test mode when imported, so that
// binaries and wiring code skip network side effects under go test.
package guard

import (
	"os"
	"sync"
)

const testModeEnv = "HEARTHGUARD_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(testModeEnv) == "" {
			_ = os.Setenv(testModeEnv, "1")
		}
	})
}
