package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"printlapse/internal/session"
	"printlapse/internal/testsupport"
)

func TestStartStopLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("second Start must fail while running")
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("status must report running")
	}
	if status.StorageRoot != cfg.Paths.StorageRoot {
		t.Fatalf("storage root = %q, want %q", status.StorageRoot, cfg.Paths.StorageRoot)
	}
	if len(status.Dependencies) == 0 {
		t.Fatal("status must report dependency availability")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("status must report stopped")
	}
	// The lock is reusable after a clean stop.
	if err := d.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	d.Stop()
}

func TestSecondInstanceRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer first.Stop()

	second, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("second instance must fail to acquire the lock")
	}
}

func TestStartFinalizesOrphans(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := os.MkdirAll(cfg.Paths.StorageRoot, 0o755); err != nil {
		t.Fatal(err)
	}
	testsupport.SeedSession(t, cfg.Paths.StorageRoot, "orphan", 3, false)

	d, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	marker := filepath.Join(cfg.Paths.StorageRoot, "orphan", session.ReadyMarker)
	if _, err := os.Stat(marker); err != nil {
		t.Fatalf("orphan not finalized: %v", err)
	}
	if d.Status(ctx).PendingCount != 1 {
		t.Fatalf("pending count = %d, want 1", d.Status(ctx).PendingCount)
	}
}

func TestSessionsAndEncodeNow(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Video.Enabled = false
	if err := os.MkdirAll(cfg.Paths.StorageRoot, 0o755); err != nil {
		t.Fatal(err)
	}
	testsupport.SeedSession(t, cfg.Paths.StorageRoot, "a", 2, true)
	testsupport.SeedSession(t, cfg.Paths.StorageRoot, "b", 1, false)

	d, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	infos, err := d.Sessions(context.Background())
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("Sessions returned %d entries, want 2", len(infos))
	}

	// ffmpeg is stubbed out of PATH in CI; EncodeNow must surface the
	// pending session either way without panicking.
	if _, err := d.EncodeNow(context.Background()); err != nil {
		t.Fatalf("EncodeNow: %v", err)
	}
}
