package main

import (
	"bytes"
	"os"
	"testing"

	"printlapse/internal/testsupport"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestStartWritesControlFile(t *testing.T) {
	cfg, configPath := testsupport.NewConfigFile(t)
	control := cfg.Paths.ControlFile

	out, err := runCLI(t, "--config", configPath, "start", "bench test!")
	if err != nil {
		t.Fatalf("start: %v\n%s", err, out)
	}
	data, err := os.ReadFile(control)
	if err != nil {
		t.Fatalf("control file not written: %v", err)
	}
	if got := string(data); got != "bench_test_\n" {
		t.Fatalf("control file content %q", got)
	}
}

func TestStartWithoutNameWritesEmptySentinel(t *testing.T) {
	cfg, configPath := testsupport.NewConfigFile(t)
	control := cfg.Paths.ControlFile

	if out, err := runCLI(t, "--config", configPath, "start"); err != nil {
		t.Fatalf("start: %v\n%s", err, out)
	}
	data, err := os.ReadFile(control)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != "\n" {
		t.Fatalf("control file content %q", got)
	}
}

func TestStopRemovesControlFile(t *testing.T) {
	cfg, configPath := testsupport.NewConfigFile(t)
	control := cfg.Paths.ControlFile
	if err := os.WriteFile(control, []byte("bench\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if out, err := runCLI(t, "--config", configPath, "stop"); err != nil {
		t.Fatalf("stop: %v\n%s", err, out)
	}
	if _, err := os.Stat(control); !os.IsNotExist(err) {
		t.Fatal("control file not removed")
	}

	// Stopping again is a no-op, not an error.
	out, err := runCLI(t, "--config", configPath, "stop")
	if err != nil {
		t.Fatalf("second stop: %v\n%s", err, out)
	}
}

func TestSessionsFallsBackToDiskScan(t *testing.T) {
	_, configPath := testsupport.NewConfigFile(t)

	out, err := runCLI(t, "--config", configPath, "sessions")
	if err != nil {
		t.Fatalf("sessions: %v\n%s", err, out)
	}
	if out == "" {
		t.Fatal("expected output from sessions command")
	}
}
