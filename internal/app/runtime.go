package app

import (
	"os"
	"strconv"
	"sync"
)

const testModeEnv = "STACKIT_TEST_MODE"

// InTestMode reports whether STACKIT_TEST_MODE is set to a true value. The
// binaries then exit before dialing Postgres, Redis or the job queue. The
// variable is read once per process.
var InTestMode = sync.OnceValue(func() bool {
	on, _ := strconv.ParseBool(os.Getenv(testModeEnv))
	return on
})
