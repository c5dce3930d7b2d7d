package session_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"printlapse/internal/services"
	"printlapse/internal/session"
)

func TestOpenRecordClose(t *testing.T) {
	root := t.TempDir()
	store := session.NewStore(root, nil)

	sess, err := store.Open("print_20240101_120000", false)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		index, err := store.RecordFrame(sess, []byte{byte(i)})
		if err != nil {
			t.Fatalf("RecordFrame %d failed: %v", i, err)
		}
		if index != i {
			t.Fatalf("frame index = %d, want %d", index, i)
		}
	}

	if _, err := os.Stat(filepath.Join(root, "print_20240101_120000", "frames", "frame_000002.jpg")); err != nil {
		t.Fatalf("frame file missing: %v", err)
	}

	if err := store.Close(sess); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	info := session.Describe(filepath.Join(root, "print_20240101_120000"))
	if info.Phase != session.PhaseAwaitingEncode {
		t.Fatalf("phase = %s, want awaiting_encode", info.Phase)
	}
	if info.FrameCount != 3 {
		t.Fatalf("frame count = %d, want 3", info.FrameCount)
	}
}

func TestOpenRejectsSecondActiveSession(t *testing.T) {
	store := session.NewStore(t.TempDir(), nil)

	if _, err := store.Open("first", false); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_, err := store.Open("second", false)
	if !errors.Is(err, services.ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}
}

func TestOpenAfterCloseSucceeds(t *testing.T) {
	store := session.NewStore(t.TempDir(), nil)

	first, err := store.Open("first", false)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.Close(first); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := store.Open("second", true); err != nil {
		t.Fatalf("Open after close failed: %v", err)
	}
}

func TestRecordFrameFailureDoesNotConsumeIndex(t *testing.T) {
	root := t.TempDir()
	store := session.NewStore(root, nil)
	sess, err := store.Open("sess", false)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := store.RecordFrame(sess, []byte("a")); err != nil {
		t.Fatalf("RecordFrame failed: %v", err)
	}

	// Remove the frames directory so the next write fails.
	if err := os.RemoveAll(sess.FramesDir); err != nil {
		t.Fatalf("remove frames dir: %v", err)
	}
	if _, err := store.RecordFrame(sess, []byte("b")); err == nil {
		t.Fatal("expected RecordFrame to fail without frames dir")
	}

	// Restore and confirm the failed attempt did not consume index 1.
	if err := os.MkdirAll(sess.FramesDir, 0o755); err != nil {
		t.Fatalf("recreate frames dir: %v", err)
	}
	index, err := store.RecordFrame(sess, []byte("b"))
	if err != nil {
		t.Fatalf("RecordFrame after recovery failed: %v", err)
	}
	if index != 1 {
		t.Fatalf("index = %d, want 1 (failed attempt must not consume an index)", index)
	}
}

func TestOpenResumesFrameNumbering(t *testing.T) {
	root := t.TempDir()
	store := session.NewStore(root, nil)
	sess, err := store.Open("resumable", false)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := store.RecordFrame(sess, []byte("x")); err != nil {
			t.Fatalf("RecordFrame failed: %v", err)
		}
	}
	store.Abandon(sess)

	resumed, err := store.Open("resumable", false)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	index, err := store.RecordFrame(resumed, []byte("y"))
	if err != nil {
		t.Fatalf("RecordFrame failed: %v", err)
	}
	if index != 5 {
		t.Fatalf("resumed index = %d, want 5", index)
	}
}

func TestReopenClearsReadyMarker(t *testing.T) {
	root := t.TempDir()
	store := session.NewStore(root, nil)

	sess, err := store.Open("bench_test", true)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := store.RecordFrame(sess, []byte("a")); err != nil {
		t.Fatalf("RecordFrame failed: %v", err)
	}
	if err := store.Close(sess); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := store.Open("bench_test", true)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if reopened.ID != "bench_test" {
		t.Fatalf("reopened ID = %q, want bench_test", reopened.ID)
	}

	// While the reopened session is capturing, the directory must not look
	// encodable to the worker.
	info := session.Describe(filepath.Join(root, "bench_test"))
	if info.Phase != session.PhaseCapturing {
		t.Fatalf("phase = %s, want capturing", info.Phase)
	}
	pending, err := session.Pending(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("reopened session listed as pending: %+v", pending)
	}

	// Closing again restores the ready marker.
	if err := store.Close(reopened); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if got := session.Describe(filepath.Join(root, "bench_test")).Phase; got != session.PhaseAwaitingEncode {
		t.Fatalf("phase after second close = %s, want awaiting_encode", got)
	}
}

func TestOpenDoesNotResumeCompletedSession(t *testing.T) {
	root := t.TempDir()
	store := session.NewStore(root, nil)

	done := filepath.Join(root, "bench_test")
	if err := os.MkdirAll(filepath.Join(done, "frames"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(done, session.CompleteMarker), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	sess, err := store.Open("bench_test", true)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if sess.ID != "bench_test_2" {
		t.Fatalf("session ID = %q, want bench_test_2", sess.ID)
	}
	if sess.Dir == done {
		t.Fatal("completed directory must not be reused")
	}
	if got := session.Describe(done).Phase; got != session.PhaseComplete {
		t.Fatalf("completed session phase = %s, want complete", got)
	}
}

func TestNewID(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	if got := session.NewID(now, ""); got != "print_20240301_093000" {
		t.Errorf("NewID without job = %q", got)
	}
	if got := session.NewID(now, "Benchy Boat v2.gcode"); got != "20240301_093000_Benchy_Boat_v2.gcode" {
		t.Errorf("NewID with job = %q", got)
	}
}

func TestSanitizeName(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"bench_test", "bench_test"},
		{"has spaces", "has_spaces"},
		{"slash/../evil", "slash_.._evil"},
		{"  trimmed  ", "trimmed"},
		{"ok-file.gcode", "ok-file.gcode"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := session.SanitizeName(tc.input); got != tc.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
