package capture

import (
	"testing"
	"time"

	"printlapse/internal/printer"
)

func testSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		CaptureInterval:    30 * time.Second,
		FinishingThreshold: 98,
		FinishingInterval:  5 * time.Second,
		PostPrintFrames:    24,
		PostPrintInterval:  5 * time.Second,
		StopDebounce:       3,
		OfflineGrace:       3 * time.Minute,
	}
}

func printing(progress float64) printer.Status {
	return printer.Status{State: printer.StatePrinting, Progress: progress, JobID: 41}
}

func TestSchedulerStartsOnPrinting(t *testing.T) {
	s := NewScheduler(testSchedulerConfig())
	now := time.Unix(1000, 0)

	if dec := s.Observe(now, printer.Status{State: printer.StateIdle}); dec.Start {
		t.Fatal("idle printer must not start a session")
	}
	dec := s.Observe(now, printing(10))
	if !dec.Start {
		t.Fatal("printing must start a session")
	}
}

func TestSchedulerCadenceTightensAtThreshold(t *testing.T) {
	s := NewScheduler(testSchedulerConfig())
	now := time.Unix(1000, 0)
	s.SessionOpened(now, 41, false)

	// Normal cadence: due immediately, then 30s apart.
	if dec := s.Observe(now, printing(50)); !dec.Capture {
		t.Fatal("first frame should be due immediately")
	}
	s.FrameCaptured(now, true)
	if dec := s.Observe(now.Add(29*time.Second), printing(50)); dec.Capture {
		t.Fatal("frame due before interval elapsed")
	}
	now = now.Add(30 * time.Second)
	if dec := s.Observe(now, printing(97)); !dec.Capture {
		t.Fatal("frame overdue at normal cadence")
	}
	s.FrameCaptured(now, true)

	// Crossing the threshold pulls the next due time in.
	if dec := s.Observe(now.Add(time.Second), printing(98)); dec.Capture {
		t.Fatal("tightened cadence still owes 5s spacing")
	}
	if !s.Finishing() {
		t.Fatal("threshold crossing must enter finishing mode")
	}
	now = now.Add(5 * time.Second)
	if dec := s.Observe(now, printing(98.5)); !dec.Capture {
		t.Fatal("frame due at finishing cadence")
	}
	s.FrameCaptured(now, true)

	// One-way: a progress dip must not restore the slow cadence.
	if dec := s.Observe(now.Add(6*time.Second), printing(97)); !dec.Capture {
		t.Fatal("cadence reverted after progress dip")
	}
	if got, want := s.Interval(), 5*time.Second; got != want {
		t.Fatalf("Interval() = %v, want %v", got, want)
	}
}

func TestSchedulerPostPrintBurst(t *testing.T) {
	cfg := testSchedulerConfig()
	s := NewScheduler(cfg)
	now := time.Unix(1000, 0)
	s.SessionOpened(now, 41, false)
	s.FrameCaptured(now, true)

	// Progress at 100 while still printing triggers the burst directly.
	now = now.Add(time.Second)
	dec := s.Observe(now, printing(100))
	if !dec.Capture || !s.InBurst() {
		t.Fatalf("expected immediate burst capture, got %+v", dec)
	}

	captured := 0
	for i := 0; i < 200; i++ {
		if dec.Capture {
			s.FrameCaptured(now, true)
			captured++
		}
		if dec.Finalize {
			break
		}
		now = now.Add(5 * time.Second)
		dec = s.Observe(now, printer.Status{State: printer.StateIdle})
	}
	if captured != cfg.PostPrintFrames {
		t.Fatalf("burst captured %d frames, want %d", captured, cfg.PostPrintFrames)
	}
	if !dec.Finalize {
		t.Fatal("burst must end in finalization")
	}
	if dec := s.Observe(now.Add(time.Second), printer.Status{State: printer.StateIdle}); !dec.Finalize {
		t.Fatal("finalize must repeat until the session closes")
	}
}

func TestSchedulerBurstSpacing(t *testing.T) {
	s := NewScheduler(testSchedulerConfig())
	now := time.Unix(1000, 0)
	s.SessionOpened(now, 41, false)
	s.FrameCaptured(now, true)

	dec := s.Observe(now, printing(100))
	if !dec.Capture {
		t.Fatal("first burst frame due immediately")
	}
	s.FrameCaptured(now, true)

	if dec := s.Observe(now.Add(4*time.Second), printer.Status{State: printer.StateIdle}); dec.Capture {
		t.Fatal("burst frame due before spacing elapsed")
	}
	if dec := s.Observe(now.Add(5*time.Second), printer.Status{State: printer.StateIdle}); !dec.Capture {
		t.Fatal("burst frame overdue at 5s spacing")
	}
}

func TestSchedulerStopDebounce(t *testing.T) {
	s := NewScheduler(testSchedulerConfig())
	now := time.Unix(1000, 0)
	s.SessionOpened(now, 41, false)
	s.FrameCaptured(now, true)

	idle := printer.Status{State: printer.StateIdle}
	for i := 0; i < 2; i++ {
		now = now.Add(30 * time.Second)
		if dec := s.Observe(now, idle); dec.Finalize || s.InBurst() {
			t.Fatalf("poll %d: transient idle reading ended the session", i+1)
		}
	}

	// A printing reading in between resets the count.
	now = now.Add(30 * time.Second)
	if dec := s.Observe(now, printing(60)); dec.Finalize {
		t.Fatal("printing reading must reset the debounce")
	}
	for i := 0; i < 2; i++ {
		now = now.Add(30 * time.Second)
		if dec := s.Observe(now, idle); dec.Finalize || s.InBurst() {
			t.Fatal("debounce count survived the reset")
		}
	}
	now = now.Add(30 * time.Second)
	if dec := s.Observe(now, idle); !s.InBurst() || !dec.Capture {
		t.Fatalf("third consecutive idle must enter the burst, got %+v", dec)
	}
}

func TestSchedulerFinishingSkipsDebounce(t *testing.T) {
	s := NewScheduler(testSchedulerConfig())
	now := time.Unix(1000, 0)
	s.SessionOpened(now, 41, false)
	s.Observe(now, printing(99))
	s.FrameCaptured(now, true)

	now = now.Add(5 * time.Second)
	if dec := s.Observe(now, printer.Status{State: printer.StateIdle}); !s.InBurst() || !dec.Capture {
		t.Fatalf("idle in finishing mode must start the burst immediately, got %+v", dec)
	}
}

func TestSchedulerOfflineGrace(t *testing.T) {
	s := NewScheduler(testSchedulerConfig())
	now := time.Unix(1000, 0)
	s.SessionOpened(now, 41, false)
	s.FrameCaptured(now, true)

	down := printer.Status{State: printer.StateUnreachable}
	for i := 0; i < 5; i++ {
		now = now.Add(30 * time.Second)
		if dec := s.Observe(now, down); dec.Finalize {
			t.Fatalf("finalized %v into the grace period", now.Sub(time.Unix(1000, 0)))
		}
	}

	// Recovery inside the grace period clears the clock.
	now = now.Add(30 * time.Second)
	s.Observe(now, printing(70))
	s.FrameCaptured(now, true)

	first := now.Add(30 * time.Second)
	if dec := s.Observe(first, down); dec.Finalize {
		t.Fatal("grace clock must restart after recovery")
	}
	if dec := s.Observe(first.Add(3*time.Minute-time.Second), down); dec.Finalize {
		t.Fatal("finalized one second early")
	}
	if dec := s.Observe(first.Add(3*time.Minute), down); !dec.Finalize {
		t.Fatal("grace period expiry must finalize the session")
	}
}

func TestSchedulerErrorStateUsesGrace(t *testing.T) {
	s := NewScheduler(testSchedulerConfig())
	now := time.Unix(1000, 0)
	s.SessionOpened(now, 41, false)
	s.FrameCaptured(now, true)

	errSt := printer.Status{State: printer.StateError}
	if dec := s.Observe(now.Add(time.Minute), errSt); dec.Finalize {
		t.Fatal("error state inside grace must hold the session open")
	}
	if dec := s.Observe(now.Add(5*time.Minute), errSt); !dec.Finalize {
		t.Fatal("error state beyond grace must finalize")
	}
}

func TestSchedulerJobChangeFinalizes(t *testing.T) {
	s := NewScheduler(testSchedulerConfig())
	now := time.Unix(1000, 0)
	s.SessionOpened(now, 41, false)
	s.FrameCaptured(now, true)

	next := printer.Status{State: printer.StatePrinting, Progress: 1, JobID: 42}
	dec := s.Observe(now.Add(30*time.Second), next)
	if !dec.Finalize {
		t.Fatal("job ID change must finalize the current session")
	}

	// After the close, the new job starts its own session.
	s.SessionClosed()
	if dec := s.Observe(now.Add(31*time.Second), next); !dec.Start {
		t.Fatal("new job must start a fresh session")
	}
}

func TestSchedulerPausedHoldsSession(t *testing.T) {
	s := NewScheduler(testSchedulerConfig())
	now := time.Unix(1000, 0)
	s.SessionOpened(now, 41, false)
	s.FrameCaptured(now, true)

	paused := printer.Status{State: printer.StatePaused}
	for i := 0; i < 10; i++ {
		now = now.Add(30 * time.Second)
		dec := s.Observe(now, paused)
		if dec.Finalize {
			t.Fatal("paused printer must not end the session")
		}
		if dec.Capture {
			t.Fatal("paused printer must not capture frames")
		}
	}
}

func TestSchedulerFailedCaptureKeepsSchedule(t *testing.T) {
	s := NewScheduler(testSchedulerConfig())
	now := time.Unix(1000, 0)
	s.SessionOpened(now, 41, false)

	if dec := s.Observe(now, printing(10)); !dec.Capture {
		t.Fatal("first frame due")
	}
	s.FrameCaptured(now, false)
	if dec := s.Observe(now.Add(time.Second), printing(10)); dec.Capture {
		t.Fatal("failed attempt must not be retried ahead of schedule")
	}
	if dec := s.Observe(now.Add(30*time.Second), printing(10)); !dec.Capture {
		t.Fatal("schedule must continue after a failed attempt")
	}
}

func TestSchedulerBurstAbortsAfterRepeatedFailures(t *testing.T) {
	s := NewScheduler(testSchedulerConfig())
	now := time.Unix(1000, 0)
	s.SessionOpened(now, 41, false)
	s.FrameCaptured(now, true)

	dec := s.Observe(now, printing(100))
	for i := 0; i < maxBurstFailures; i++ {
		if !dec.Capture {
			t.Fatalf("attempt %d: expected capture, got %+v", i, dec)
		}
		s.FrameCaptured(now, false)
		now = now.Add(5 * time.Second)
		dec = s.Observe(now, printer.Status{State: printer.StateIdle})
	}
	if !dec.Finalize {
		t.Fatal("burst must abort after repeated capture failures")
	}
}

func TestSchedulerManualMode(t *testing.T) {
	s := NewScheduler(testSchedulerConfig())
	now := time.Unix(1000, 0)
	s.SessionOpened(now, 0, true)

	// Manual sessions ignore printer state entirely.
	if dec := s.Observe(now, printer.Status{State: printer.StateIdle}); !dec.Capture {
		t.Fatal("manual session must capture while the printer is idle")
	}
	s.FrameCaptured(now, true)

	down := printer.Status{State: printer.StateUnreachable}
	if dec := s.Observe(now.Add(10*time.Minute), down); dec.Finalize {
		t.Fatal("manual session must not finalize on printer loss")
	}
	if dec := s.Observe(now.Add(30*time.Second), down); !dec.Capture {
		t.Fatal("manual session captures at the normal cadence")
	}
}

func TestSchedulerZeroBurstFinalizesDirectly(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.PostPrintFrames = 0
	s := NewScheduler(cfg)
	now := time.Unix(1000, 0)
	s.SessionOpened(now, 41, false)
	s.FrameCaptured(now, true)

	s.Observe(now.Add(time.Second), printing(99))
	dec := s.Observe(now.Add(6*time.Second), printer.Status{State: printer.StateIdle})
	if !dec.Finalize || s.InBurst() {
		t.Fatalf("zero burst frames must finalize without a burst, got %+v", dec)
	}
}
