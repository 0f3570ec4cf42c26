// Package testing puts the process into test mode when imported for side
// effects from _test.go files.
package testing

import (
	"os"
	"sync"
)

var once sync.Once

// defaults lets app.LoadConfig succeed in tests without a real environment.
var defaults = map[string]string{
	"STACKIT_TEST_MODE": "1",
	"CSRF_SECRET":       "test-csrf-secret",
}

func ensureTestMode() {
	once.Do(func() {
		for key, value := range defaults {
			if key == "STACKIT_TEST_MODE" || os.Getenv(key) == "" {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	ensureTestMode()
}
