// Package testutil provides shared skip helpers and WAV assertions for
// tests.
//
// Each skip helper calls t.Skip with a clear human-readable reason when the
// named prerequisite is absent, so integration tests remain runnable in
// partial environments without failing noisily.
package testutil

import (
	"os"
	"os/exec"
	"testing"
)

// RequireChatterboxCLI skips the test if the chatterbox-tts binary is not
// found in PATH or at the path given by the CHATTERTTS_ENGINE_CLI_PATH
// environment variable.
func RequireChatterboxCLI(tb testing.TB) {
	tb.Helper()

	exe := os.Getenv("CHATTERTTS_ENGINE_CLI_PATH")
	if exe == "" {
		exe = "chatterbox-tts"
	}

	_, err := exec.LookPath(exe)
	if err != nil {
		tb.Skipf("chatterbox-tts binary not available (%q not in PATH); set CHATTERTTS_ENGINE_CLI_PATH to override", exe)
	}
}
