package testutil

import (
	"io"
	"log"
	"os"
	"testing"
)

// TestLogger returns a logger tagged with the calling test's name, so output
// interleaved from server goroutines can be attributed. The logger is
// silenced once the test ends; session and worker goroutines may outlive it.
func TestLogger(t *testing.T) *log.Logger {
	logger := log.New(os.Stdout, "["+t.Name()+"] ", log.Lmicroseconds)
	t.Cleanup(func() {
		logger.SetOutput(io.Discard)
	})
	return logger
}
