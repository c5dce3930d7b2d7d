package printer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"printlapse/internal/config"
	"printlapse/internal/services"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*HTTPClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewHTTPClient(config.Printer{
		BaseURL:       server.URL,
		PrinterUUID:   "uuid-1",
		APIKey:        "key-1",
		StatusTimeout: 5,
	})
	return client, server
}

func TestStatusParsesPrintingJob(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/printers/uuid-1/status" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-1" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"job":{"id":42,"state":"PRINTING","display_name":"benchy.gcode","progress":37.5}}`))
	})

	status, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.State != StatePrinting {
		t.Errorf("state = %s, want printing", status.State)
	}
	if status.Progress != 37.5 {
		t.Errorf("progress = %v, want 37.5", status.Progress)
	}
	if status.JobID != 42 || status.JobName != "benchy.gcode" {
		t.Errorf("job fields = %d %q", status.JobID, status.JobName)
	}
}

func TestStatusPrinterStateOverridesJobState(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"job":{"id":7,"state":"PRINTING","progress":99.0},"printer":{"state":"ERROR"}}`))
	})

	status, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.State != StateError {
		t.Errorf("state = %s, want error", status.State)
	}
}

func TestStatusNon200IsTransient(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream busted", http.StatusBadGateway)
	})

	_, err := client.Status(context.Background())
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestClassifyState(t *testing.T) {
	cases := map[string]State{
		"PRINTING":   StatePrinting,
		"printing":   StatePrinting,
		"PAUSED":     StatePaused,
		"ATTENTION":  StatePaused,
		"BUSY":       StatePaused,
		"ERROR":      StateError,
		"IDLE":       StateIdle,
		"FINISHED":   StateIdle,
		"SOME_NEW":   StateIdle,
		"  STOPPED ": StateIdle,
	}
	for raw, want := range cases {
		if got := classifyState(raw); got != want {
			t.Errorf("classifyState(%q) = %s, want %s", raw, got, want)
		}
	}
}

type failingClient struct {
	calls int
	fail  int
}

func (f *failingClient) Status(ctx context.Context) (Status, error) {
	f.calls++
	if f.calls <= f.fail {
		return Status{}, services.Wrap(services.ErrTransient, "printer", "status", "down", nil)
	}
	return Status{State: StatePrinting, Progress: 10}, nil
}

func TestMonitorBackoffCapped(t *testing.T) {
	client := &failingClient{fail: 10}
	monitor := NewMonitor(client, slog.New(slog.NewTextHandler(io.Discard, nil)), 30*time.Second, 300*time.Second)

	var delays []time.Duration
	for i := 0; i < 6; i++ {
		status := monitor.Poll(context.Background())
		if status.State != StateUnreachable {
			t.Fatalf("poll %d: state = %s, want unreachable", i, status.State)
		}
		delays = append(delays, monitor.Delay())
	}

	want := []time.Duration{30, 60, 120, 240, 300, 300}
	for i, d := range delays {
		if d != want[i]*time.Second {
			t.Errorf("delay after failure %d = %s, want %s", i+1, d, want[i]*time.Second)
		}
	}
}

func TestMonitorRecoversAfterSuccess(t *testing.T) {
	client := &failingClient{fail: 5}
	monitor := NewMonitor(client, slog.New(slog.NewTextHandler(io.Discard, nil)), 30*time.Second, 300*time.Second)

	for i := 0; i < 5; i++ {
		monitor.Poll(context.Background())
	}
	if monitor.ConsecutiveFailures() != 5 {
		t.Fatalf("failures = %d, want 5", monitor.ConsecutiveFailures())
	}

	status := monitor.Poll(context.Background())
	if status.State != StatePrinting {
		t.Fatalf("state = %s, want printing", status.State)
	}
	if monitor.ConsecutiveFailures() != 0 {
		t.Fatalf("failures not reset: %d", monitor.ConsecutiveFailures())
	}
	if monitor.Delay() != 30*time.Second {
		t.Fatalf("delay = %s, want base 30s", monitor.Delay())
	}
}
