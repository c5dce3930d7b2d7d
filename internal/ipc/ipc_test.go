package ipc

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"printlapse/internal/daemon"
	"printlapse/internal/testsupport"
)

func startTestServer(t *testing.T) (*Client, *daemon.Daemon) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if err := os.MkdirAll(cfg.Paths.StorageRoot, 0o755); err != nil {
		t.Fatal(err)
	}
	testsupport.SeedSession(t, cfg.Paths.StorageRoot, "done", 4, true)

	d, err := daemon.New(cfg, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv, err := NewServer(ctx, cfg.Paths.SocketPath, d, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := Dial(cfg.Paths.SocketPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, d
}

func TestStatusRoundTrip(t *testing.T) {
	client, _ := startTestServer(t)

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Running {
		t.Fatal("daemon not started, status must report stopped")
	}
	if status.PID != os.Getpid() {
		t.Fatalf("PID = %d, want %d", status.PID, os.Getpid())
	}
	if status.PendingCount != 1 {
		t.Fatalf("pending count = %d, want 1", status.PendingCount)
	}
	if len(status.Dependencies) == 0 {
		t.Fatal("dependencies missing from status")
	}
}

func TestSessionsRoundTrip(t *testing.T) {
	client, _ := startTestServer(t)

	resp, err := client.Sessions()
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(resp.Sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(resp.Sessions))
	}
	sess := resp.Sessions[0]
	if sess.ID != "done" || sess.Phase != "awaiting_encode" || sess.FrameCount != 4 {
		t.Fatalf("unexpected session %+v", sess)
	}
}

func TestHistoryRoundTrip(t *testing.T) {
	client, _ := startTestServer(t)

	resp, err := client.History(10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(resp.Entries) != 0 {
		t.Fatalf("expected empty history, got %+v", resp.Entries)
	}
}

func TestSocketRemovedOnClose(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, err := daemon.New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	path := filepath.Join(filepath.Dir(cfg.Paths.SocketPath), "test.sock")
	srv, err := NewServer(ctx, path, d, nil)
	if err != nil {
		t.Fatal(err)
	}
	srv.Serve()
	srv.Close()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("socket not removed on close")
	}
}
