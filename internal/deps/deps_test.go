package deps

import (
	"fmt"
	"os"
	"testing"

	"printlapse/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	missing := fmt.Sprintf("definitely-missing-%d", os.Getpid())
	statuses := CheckBinaries([]Requirement{
		{Name: "Shell", Command: "sh", Description: "always present"},
		{Name: "Ghost", Command: missing},
		{Name: "Blank", Command: "  "},
	})

	if len(statuses) != 3 {
		t.Fatalf("got %d statuses", len(statuses))
	}
	if !statuses[0].Available {
		t.Fatalf("sh should be available: %+v", statuses[0])
	}
	if statuses[0].Command == "sh" {
		t.Fatal("available command should be resolved to its path")
	}
	if statuses[1].Available || statuses[1].Detail == "" {
		t.Fatalf("missing binary misreported: %+v", statuses[1])
	}
	if statuses[2].Available || statuses[2].Detail != "command not configured" {
		t.Fatalf("blank command misreported: %+v", statuses[2])
	}
}

func TestRequirementsFollowConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Video.Enabled = false
	cfg.Storage.Remount = false

	byName := map[string]Requirement{}
	for _, req := range Requirements(&cfg) {
		byName[req.Name] = req
	}
	if byName["Camera"].Optional {
		t.Fatal("camera must always be required")
	}
	if !byName["FFmpeg"].Optional {
		t.Fatal("ffmpeg must be optional when video is disabled")
	}
	if !byName["mount"].Optional {
		t.Fatal("mount must be optional when remount is disabled")
	}

	cfg.Video.Enabled = true
	for _, req := range Requirements(&cfg) {
		if req.Name == "FFmpeg" && req.Optional {
			t.Fatal("ffmpeg must be required when video is enabled")
		}
	}
}

func TestMissingRequired(t *testing.T) {
	statuses := []Status{
		{Name: "A", Available: true},
		{Name: "B", Available: false, Optional: true},
		{Name: "C", Available: false},
	}
	missing := MissingRequired(statuses)
	if len(missing) != 1 || missing[0] != "C" {
		t.Fatalf("MissingRequired = %v", missing)
	}
}
