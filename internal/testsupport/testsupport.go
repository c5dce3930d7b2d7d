// Package testsupport provides shared fixtures for package tests: resolved
// configurations rooted in temp directories, stub binaries, and seeded
// session trees.
package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"printlapse/internal/config"
	"printlapse/internal/session"
)

// NewConfig writes a minimal valid configuration rooted in temp directories
// and loads it through the normal resolution path.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, _ := NewConfigFile(t)
	return cfg
}

// NewConfigFile is NewConfig but also returns the path of the written file,
// for tests that drive config resolution themselves.
func NewConfigFile(t *testing.T) (*config.Config, string) {
	t.Helper()
	base := t.TempDir()
	content := fmt.Sprintf(`[paths]
storage_root = %q
fallback_dir = %q
log_dir = %q
control_file = %q

[printer]
base_url = "http://127.0.0.1:9"
printer_uuid = "test-printer"
api_key = "test-key"

[upload]
camera_token = "test-token"
`,
		filepath.Join(base, "timelapse"),
		filepath.Join(base, "fallback"),
		filepath.Join(base, "logs"),
		filepath.Join(base, "timelapse_recording"),
	)
	path := filepath.Join(base, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("load test config: %v", err)
	}
	return cfg, path
}

// StubBinary writes an executable shell script into its own directory and
// returns the script path.
func StubBinary(t *testing.T, name, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return path
}

// SeedSession creates a session directory with the given number of frames
// and, when ready is set, a ready marker.
func SeedSession(t *testing.T, root, id string, frames int, ready bool) string {
	t.Helper()
	dir := filepath.Join(root, id)
	framesDir := filepath.Join(dir, session.FramesDirName)
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < frames; i++ {
		path := filepath.Join(framesDir, session.FrameName(i))
		if err := os.WriteFile(path, []byte("jpeg"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if ready {
		if err := os.WriteFile(filepath.Join(dir, session.ReadyMarker), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}
