package main

import (
	"bytes"
	"strings"
	"testing"

	"printlapse/internal/ipc"
)

func TestRenderStatusRunning(t *testing.T) {
	var buf bytes.Buffer
	renderStatus(&buf, &ipc.StatusResponse{
		Running:         true,
		PID:             1234,
		PrinterState:    "printing",
		PrinterProgress: 42.5,
		JobName:         "benchy.gcode",
		SessionID:       "20260101_120000_benchy",
		Frames:          85,
		IntervalSeconds: 30,
		StorageRoot:     "/mnt/timelapse",
		StorageHealthy:  true,
		StorageFreeMB:   8192,
		PendingCount:    2,
		Dependencies: []ipc.DependencyStatus{
			{Name: "FFmpeg", Available: true, Command: "/usr/bin/ffmpeg"},
			{Name: "Camera", Available: false, Detail: `binary "rpicam-still" not found`},
		},
	})

	out := buf.String()
	for _, want := range []string{
		"running (pid 1234)",
		"printing 42.5% benchy.gcode",
		"20260101_120000_benchy (automatic)",
		"every 30s",
		"8192 MB free",
		"/usr/bin/ffmpeg",
		`binary "rpicam-still" not found`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, ansiGreen) {
		t.Error("non-terminal output must not be colorized")
	}
}

func TestRenderStatusStoppedAndBurst(t *testing.T) {
	var buf bytes.Buffer
	renderStatus(&buf, &ipc.StatusResponse{
		PrinterState:    "idle",
		SessionID:       "bench_test",
		SessionManual:   true,
		Burst:           true,
		IntervalSeconds: 5,
	})

	out := buf.String()
	for _, want := range []string{"stopped", "bench_test (manual)", "post-print burst"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderStatusLineShape(t *testing.T) {
	line := renderStatusLine("State", statusOK, "running", false)
	if !strings.Contains(line, "State:") || !strings.Contains(line, "[OK] running") {
		t.Fatalf("unexpected line %q", line)
	}
	colored := renderStatusLine("State", statusError, "down", true)
	if !strings.HasPrefix(colored, ansiRed) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("colorized line missing ANSI wrapping: %q", colored)
	}
}
