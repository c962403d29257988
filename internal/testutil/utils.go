// Package testutil carries helpers shared by the package test suites.
package testutil

import (
	"log"
	"os"
	"testing"
)

// TestLogger returns a logger prefixed with the running test's name so
// interleaved output from parallel suites stays attributable. Output is
// redirected to stderr once the test finishes.
func TestLogger(t *testing.T) *log.Logger {
	logger := log.New(os.Stdout, "["+t.Name()+"] ", log.LstdFlags)
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
	})
	return logger
}
