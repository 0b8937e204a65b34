package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("ODYSSEY_TEST_MODE", "1")
		if os.Getenv("DOCUMENT_STORAGE_DIR") == "" {
			_ = os.Setenv("DOCUMENT_STORAGE_DIR", os.TempDir())
		}
	})
}

func init() {
	ensureTestMode()
}

// TestMain forces test mode so binaries skip their runtime startup.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
