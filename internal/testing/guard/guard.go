// Package guard flags the process as a test run. Blank-import it from
// test files that would otherwise trigger runtime side effects.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("AGENTNET_TEST_MODE") == "" {
			_ = os.Setenv("AGENTNET_TEST_MODE", "1")
		}
	})
}
