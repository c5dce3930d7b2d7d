package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"printlapse/internal/camera"
	"printlapse/internal/logging"
	"printlapse/internal/printer"
	"printlapse/internal/session"
)

// minWake bounds how tightly the loop spins when a capture is already due.
const minWake = 250 * time.Millisecond

// Snapshot is a point-in-time view of the capture loop for status reporting.
type Snapshot struct {
	Printer     printer.Status
	SessionID   string
	Manual      bool
	Frames      int
	Interval    time.Duration
	Finishing   bool
	Burst       bool
	LastFrame   string
	LastCapture time.Time
}

// Loop drives the capture side of the daemon: it polls the printer, reads the
// operator control file, and applies the scheduler's decisions to the session
// store and camera.
type Loop struct {
	logger      *slog.Logger
	monitor     *printer.Monitor
	sched       *Scheduler
	store       *session.Store
	cam         camera.Camera
	controlPath string

	now func() time.Time

	mu   sync.Mutex
	snap Snapshot
}

// NewLoop constructs a capture loop.
func NewLoop(logger *slog.Logger, monitor *printer.Monitor, sched *Scheduler, store *session.Store, cam camera.Camera, controlPath string) *Loop {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Loop{
		logger:      logger.With(logging.String(logging.FieldComponent, "capture")),
		monitor:     monitor,
		sched:       sched,
		store:       store,
		cam:         cam,
		controlPath: controlPath,
		now:         time.Now,
	}
}

// Snapshot returns the loop's latest observed state.
func (l *Loop) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap
}

// Run executes the capture loop until the context is canceled.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("capture loop started",
		logging.Duration("capture_interval", l.sched.cfg.CaptureInterval),
		logging.Duration("finishing_interval", l.sched.cfg.FinishingInterval),
		logging.Float64("finishing_threshold", l.sched.cfg.FinishingThreshold),
	)

	var status printer.Status
	var nextPoll time.Time
	for {
		now := l.now()
		if now.Compare(nextPoll) >= 0 {
			status = l.monitor.Poll(ctx)
			nextPoll = now.Add(l.monitor.Delay())
		}

		l.step(ctx, now, status)
		l.publish(status)

		wake := nextPoll.Sub(now)
		if due := l.sched.NextDue(); !due.IsZero() {
			if d := due.Sub(now); d < wake {
				wake = d
			}
		}
		if wake < minWake {
			wake = minWake
		}

		select {
		case <-ctx.Done():
			if sess := l.store.Active(); sess != nil {
				// Leave the directory for orphan finalization on restart.
				l.store.Abandon(sess)
			}
			l.logger.Info("capture loop stopped")
			return ctx.Err()
		case <-time.After(wake):
		}
	}
}

// step applies one tick: reconcile the manual sentinel, then let the
// scheduler decide what the automatic lifecycle needs.
func (l *Loop) step(ctx context.Context, now time.Time, status printer.Status) {
	l.reconcileManual(now)

	dec := l.sched.Observe(now, status)
	if dec.Finalize {
		l.finalize(dec.Reason)
		return
	}
	if dec.Start {
		id := session.NewID(now, status.JobName)
		sess, err := l.store.Open(id, false)
		if err != nil {
			l.logger.Error("open session", logging.Error(err))
			return
		}
		l.sched.SessionOpened(now, status.JobID, false)
		l.logger.Info("timelapse started",
			logging.String(logging.FieldSession, sess.ID),
			logging.String("job", status.JobName),
		)
		dec = l.sched.Observe(now, status)
	}
	if dec.Capture {
		l.capture(ctx, now)
	}
}

// reconcileManual aligns the active session with the control file: presence
// opens (or switches to) a manual session, absence closes one.
func (l *Loop) reconcileManual(now time.Time) {
	name, present, err := ReadControl(l.controlPath)
	if err != nil {
		l.logger.Warn("read control file", logging.Error(err))
		return
	}

	active := l.store.Active()
	if !present {
		if active != nil && active.Manual {
			l.finalize("control file removed")
		}
		return
	}

	want := session.SanitizeName(name)
	if active != nil {
		if active.Manual && (want == "" || want == active.ID) {
			return
		}
		l.finalize("manual session requested")
		if l.store.Active() != nil {
			return
		}
	}
	if want == "" {
		want = "manual_" + now.Format("20060102_150405")
	}
	sess, err := l.store.Open(want, true)
	if err != nil {
		l.logger.Error("open manual session", logging.Error(err))
		return
	}
	l.sched.SessionOpened(now, 0, true)
	l.logger.Info("manual session started", logging.String(logging.FieldSession, sess.ID))
}

// finalize closes the active session. On marker write failure the session
// stays active so the next tick retries.
func (l *Loop) finalize(reason string) {
	sess := l.store.Active()
	if sess == nil {
		return
	}
	if err := l.store.Close(sess); err != nil {
		l.logger.Error("finalize session",
			logging.String(logging.FieldSession, sess.ID),
			logging.Error(err),
		)
		return
	}
	l.sched.SessionClosed()
	l.logger.Info("timelapse finalized",
		logging.String(logging.FieldSession, sess.ID),
		logging.Int("frames", sess.FrameCount()),
		logging.String("reason", reason),
	)
}

// capture takes one frame. A failed attempt is logged and skipped; the frame
// index is consumed only when the write lands.
func (l *Loop) capture(ctx context.Context, now time.Time) {
	sess := l.store.Active()
	if sess == nil {
		return
	}
	image, err := l.cam.Capture(ctx)
	if err != nil {
		l.logger.Warn("capture failed",
			logging.String(logging.FieldSession, sess.ID),
			logging.Error(err),
		)
		l.sched.FrameCaptured(now, false)
		return
	}
	index, err := l.store.RecordFrame(sess, image)
	if err != nil {
		l.logger.Error("record frame",
			logging.String(logging.FieldSession, sess.ID),
			logging.Error(err),
		)
		l.sched.FrameCaptured(now, false)
		return
	}
	l.sched.FrameCaptured(now, true)

	l.mu.Lock()
	l.snap.LastFrame = sess.FramePath(index)
	l.snap.LastCapture = now
	l.mu.Unlock()

	l.logger.Debug("frame captured",
		logging.String(logging.FieldSession, sess.ID),
		logging.Int(logging.FieldFrame, index),
		logging.Duration("interval", l.sched.Interval()),
	)
}

func (l *Loop) publish(status printer.Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snap.Printer = status
	l.snap.Interval = l.sched.Interval()
	l.snap.Finishing = l.sched.Finishing()
	l.snap.Burst = l.sched.InBurst()
	if sess := l.store.Active(); sess != nil {
		l.snap.SessionID = sess.ID
		l.snap.Manual = sess.Manual
		l.snap.Frames = sess.FrameCount()
	} else {
		l.snap.SessionID = ""
		l.snap.Manual = false
		l.snap.Frames = 0
	}
}
