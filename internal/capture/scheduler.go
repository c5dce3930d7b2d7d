package capture

import (
	"time"

	"printlapse/internal/printer"
)

// SchedulerConfig holds the cadence knobs the scheduler operates on.
type SchedulerConfig struct {
	CaptureInterval    time.Duration
	FinishingThreshold float64
	FinishingInterval  time.Duration
	PostPrintFrames    int
	PostPrintInterval  time.Duration
	StopDebounce       int
	OfflineGrace       time.Duration
}

// Decision is the scheduler's verdict for one observation. At most one of
// Start and Finalize is set; Capture may accompany neither.
type Decision struct {
	Start    bool
	Capture  bool
	Finalize bool
	Reason   string
}

// maxBurstFailures aborts a post-print burst that cannot capture at all, so
// a dead camera does not hold the session open forever.
const maxBurstFailures = 10

// Scheduler decides when a session starts, when frames are due, and when the
// session ends. It owns nextCaptureDueAt while the session is capturing and
// holds no filesystem state; the capture loop applies its decisions.
type Scheduler struct {
	cfg SchedulerConfig

	active bool
	manual bool
	jobID  int64

	finishing     bool
	burst         bool
	burstLeft     int
	burstFailures int
	notPrinting   int
	offlineSince  time.Time
	nextDue       time.Time
}

// NewScheduler constructs a scheduler from resolved cadence configuration.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.StopDebounce < 1 {
		cfg.StopDebounce = 1
	}
	return &Scheduler{cfg: cfg}
}

// SessionOpened tells the scheduler a session is now capturing. The first
// frame is due immediately.
func (s *Scheduler) SessionOpened(now time.Time, jobID int64, manual bool) {
	s.active = true
	s.manual = manual
	s.jobID = jobID
	s.finishing = false
	s.burst = false
	s.burstLeft = 0
	s.burstFailures = 0
	s.notPrinting = 0
	s.offlineSince = time.Time{}
	s.nextDue = now
}

// SessionClosed resets all per-session scheduling state.
func (s *Scheduler) SessionClosed() {
	s.active = false
	s.manual = false
	s.jobID = 0
	s.finishing = false
	s.burst = false
	s.burstLeft = 0
	s.burstFailures = 0
	s.notPrinting = 0
	s.offlineSince = time.Time{}
	s.nextDue = time.Time{}
}

// FrameCaptured records the outcome of a capture attempt. The next due time
// advances either way: a failed attempt is skipped, never rescheduled early,
// and never consumes a frame index.
func (s *Scheduler) FrameCaptured(now time.Time, ok bool) {
	if s.burst {
		if ok {
			s.burstLeft--
			s.burstFailures = 0
		} else {
			s.burstFailures++
		}
		s.nextDue = now.Add(s.cfg.PostPrintInterval)
		return
	}
	s.nextDue = now.Add(s.Interval())
}

// Interval returns the cadence currently in effect.
func (s *Scheduler) Interval() time.Duration {
	switch {
	case s.burst:
		return s.cfg.PostPrintInterval
	case s.finishing:
		return s.cfg.FinishingInterval
	default:
		return s.cfg.CaptureInterval
	}
}

// Finishing reports whether the tightened end-of-print cadence is in effect.
func (s *Scheduler) Finishing() bool { return s.finishing }

// InBurst reports whether the post-print burst is running.
func (s *Scheduler) InBurst() bool { return s.burst }

// NextDue returns when the next frame is due; zero when no session is active.
func (s *Scheduler) NextDue() time.Time { return s.nextDue }

// Observe evaluates one printer status against the current scheduling state.
func (s *Scheduler) Observe(now time.Time, st printer.Status) Decision {
	if !s.active {
		if st.Printing() {
			return Decision{Start: true, Reason: "print detected"}
		}
		return Decision{}
	}

	if s.manual {
		// Manual sessions capture regardless of printer state and end only
		// when the operator removes the sentinel.
		return Decision{Capture: now.Compare(s.nextDue) >= 0}
	}

	if s.burst {
		return s.observeBurst(now)
	}

	switch st.State {
	case printer.StateError, printer.StateUnreachable:
		if s.offlineSince.IsZero() {
			s.offlineSince = now
		}
		if now.Sub(s.offlineSince) >= s.cfg.OfflineGrace {
			return Decision{Finalize: true, Reason: "printer offline beyond grace period"}
		}
		return Decision{}
	}
	s.offlineSince = time.Time{}

	switch st.State {
	case printer.StatePrinting:
		s.notPrinting = 0
		if s.jobID != 0 && st.JobID != 0 && st.JobID != s.jobID {
			return Decision{Finalize: true, Reason: "print job changed"}
		}
		if s.jobID == 0 {
			s.jobID = st.JobID
		}
		if st.Progress >= 100 {
			return s.enterBurst(now, "progress reached 100%")
		}
		if !s.finishing && st.Progress >= s.cfg.FinishingThreshold {
			// One-way tightening: reported progress dipping back below the
			// threshold must not restore the slower cadence.
			s.finishing = true
			if due := now.Add(s.cfg.FinishingInterval); due.Before(s.nextDue) {
				s.nextDue = due
			}
		}
		return Decision{Capture: now.Compare(s.nextDue) >= 0}

	case printer.StatePaused:
		// Job still active: hold the session open without capturing.
		s.notPrinting = 0
		return Decision{}

	default: // idle
		s.notPrinting++
		if s.finishing || s.notPrinting >= s.cfg.StopDebounce {
			return s.enterBurst(now, "print ended")
		}
		return Decision{}
	}
}

func (s *Scheduler) enterBurst(now time.Time, reason string) Decision {
	if s.cfg.PostPrintFrames <= 0 {
		return Decision{Finalize: true, Reason: reason}
	}
	s.burst = true
	s.burstLeft = s.cfg.PostPrintFrames
	s.burstFailures = 0
	s.nextDue = now
	return s.observeBurst(now)
}

func (s *Scheduler) observeBurst(now time.Time) Decision {
	if s.burstLeft <= 0 {
		return Decision{Finalize: true, Reason: "post-print burst complete"}
	}
	if s.burstFailures >= maxBurstFailures {
		return Decision{Finalize: true, Reason: "post-print burst aborted after repeated capture failures"}
	}
	// The burst runs unconditionally once print end is detected; trailing
	// frames of the settled final layer are the point.
	return Decision{Capture: now.Compare(s.nextDue) >= 0}
}
