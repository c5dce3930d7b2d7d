package encoding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"printlapse/internal/fileutil"
	"printlapse/internal/logging"
	"printlapse/internal/services"
	"printlapse/internal/session"
)

// Record describes one finished encode attempt for history storage.
type Record struct {
	SessionID string
	Frames    int
	VideoPath string
	VideoSize int64
	Duration  time.Duration
	Err       string
	At        time.Time
}

// Recorder receives encode outcomes. Implementations must not block the
// worker for long; failures to record are the implementation's to log.
type Recorder interface {
	RecordEncode(rec Record)
}

// Worker scans the storage root for sessions awaiting encode and renders each
// one. All coordination with the capture loop happens through marker files;
// the flock on the session's lock file is released by the kernel if the
// process dies, so a crashed worker never wedges a session.
type Worker struct {
	logger       *slog.Logger
	root         string
	enc          *Encoder
	recorder     Recorder
	scanInterval time.Duration

	attempts map[string]int
	skip     map[string]struct{}
	now      func() time.Time
}

// NewWorker constructs a Worker. recorder may be nil.
func NewWorker(logger *slog.Logger, root string, enc *Encoder, recorder Recorder, scanInterval time.Duration) *Worker {
	if logger == nil {
		logger = logging.NewNop()
	}
	if scanInterval <= 0 {
		scanInterval = time.Minute
	}
	return &Worker{
		logger:       logger.With(logging.String(logging.FieldComponent, "encoding")),
		root:         root,
		enc:          enc,
		recorder:     recorder,
		scanInterval: scanInterval,
		attempts:     make(map[string]int),
		skip:         make(map[string]struct{}),
		now:          time.Now,
	}
}

// Run executes the scan loop until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("encoding worker started",
		logging.Duration("scan_interval", w.scanInterval),
	)
	for {
		if n, err := w.ScanOnce(ctx); err != nil {
			w.logger.Error("scan storage root", logging.Error(err))
		} else if n > 0 {
			w.logger.Info("scan complete", logging.Int("encoded", n))
		}

		select {
		case <-ctx.Done():
			w.logger.Info("encoding worker stopped")
			return ctx.Err()
		case <-time.After(w.scanInterval):
		}
	}
}

// ScanOnce walks the storage root and encodes every session awaiting encode.
// It returns the number of sessions successfully encoded this pass.
func (w *Worker) ScanOnce(ctx context.Context) (int, error) {
	pending, err := session.Pending(w.root)
	if err != nil {
		return 0, err
	}
	encoded := 0
	for _, info := range pending {
		if ctx.Err() != nil {
			return encoded, ctx.Err()
		}
		if _, ok := w.skip[info.ID]; ok {
			continue
		}
		if err := w.encodeSession(ctx, info); err != nil {
			w.attempts[info.ID]++
			if errors.Is(err, services.ErrConfiguration) {
				// A session that can never encode (no frames) is skipped for
				// the rest of this process; retrying changes nothing.
				w.skip[info.ID] = struct{}{}
			}
			w.logger.Error("encode session",
				logging.String(logging.FieldSession, info.ID),
				logging.Int("attempt", w.attempts[info.ID]),
				logging.Error(err),
			)
			continue
		}
		delete(w.attempts, info.ID)
		encoded++
	}
	return encoded, nil
}

// encodeSession renders one session under its encoding lock. The lock file is
// advisory and left in place; only the flock on it matters, and a stale file
// from a dead process carries no lock.
func (w *Worker) encodeSession(ctx context.Context, info session.Info) error {
	lock := flock.New(filepath.Join(info.Dir, session.LockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return services.Wrap(services.ErrTransient, "encoding", "lock", "acquire encoding lock", err)
	}
	if !locked {
		w.logger.Debug("session locked by another encoder",
			logging.String(logging.FieldSession, info.ID),
		)
		return nil
	}
	defer lock.Unlock()

	// Re-derive the phase under the lock; another process may have finished
	// this session between the scan and the lock.
	current := session.Describe(info.Dir)
	if current.Phase == session.PhaseComplete {
		w.logger.Debug("session already encoded",
			logging.String(logging.FieldSession, info.ID),
			logging.String(logging.FieldPhase, string(current.Phase)),
		)
		return nil
	}

	frames := current.FrameCount
	if frames == 0 {
		w.appendLog(info, "encode skipped: no frames")
		w.record(Record{SessionID: info.ID, Err: "no frames", At: w.now()})
		return services.Wrap(services.ErrConfiguration, "encoding", "encode", "session has no frames", nil)
	}

	framesDir := filepath.Join(info.Dir, session.FramesDirName)
	videoPath := filepath.Join(info.Dir, session.VideoName(info.ID))
	tmpPath := videoPath + ".tmp"

	// A previous attempt may have died mid-write. Partial output is not
	// trusted; the full frame set is re-encoded from scratch.
	for _, stale := range []string{videoPath, tmpPath} {
		if err := os.Remove(stale); err == nil {
			w.logger.Warn("discarded partial video",
				logging.String(logging.FieldSession, info.ID),
				logging.String("path", stale),
			)
		}
	}

	w.logger.Info("encoding session",
		logging.String(logging.FieldSession, info.ID),
		logging.Int("frames", frames),
	)
	w.appendLog(info, fmt.Sprintf("encode started: %d frames", frames))

	start := w.now()
	if err := w.enc.Encode(ctx, framesDir, tmpPath); err != nil {
		os.Remove(tmpPath)
		w.appendLog(info, fmt.Sprintf("encode failed: %v", err))
		w.record(Record{
			SessionID: info.ID,
			Frames:    frames,
			Duration:  w.now().Sub(start),
			Err:       err.Error(),
			At:        w.now(),
		})
		return err
	}

	if err := os.Rename(tmpPath, videoPath); err != nil {
		os.Remove(tmpPath)
		return services.Wrap(services.ErrTransient, "encoding", "encode", "publish video", err)
	}

	var size int64
	if st, err := os.Stat(videoPath); err == nil {
		size = st.Size()
	}

	if err := fileutil.TouchAtomic(filepath.Join(info.Dir, session.CompleteMarker)); err != nil {
		// The video itself is in place; the next scan re-encodes and
		// rewrites the marker.
		return services.Wrap(services.ErrTransient, "encoding", "encode", "write complete marker", err)
	}

	took := w.now().Sub(start)
	w.appendLog(info, fmt.Sprintf("encode complete: %s (%d bytes) in %s",
		session.VideoName(info.ID), size, took.Round(time.Millisecond)))
	w.record(Record{
		SessionID: info.ID,
		Frames:    frames,
		VideoPath: videoPath,
		VideoSize: size,
		Duration:  took,
		At:        w.now(),
	})

	w.logger.Info("session encoded",
		logging.String(logging.FieldSession, info.ID),
		logging.Int("frames", frames),
		logging.Int64("video_bytes", size),
		logging.Duration("took", took),
	)
	return nil
}

// appendLog writes a timestamped line to the session's encode log. The log is
// diagnostic; failures to write it never fail the encode.
func (w *Worker) appendLog(info session.Info, msg string) {
	line := fmt.Sprintf("%s %s", w.now().Format(time.RFC3339), msg)
	if err := fileutil.AppendLine(filepath.Join(info.Dir, session.EncodeLogName), line); err != nil {
		w.logger.Warn("append encode log",
			logging.String(logging.FieldSession, info.ID),
			logging.Error(err),
		)
	}
}

func (w *Worker) record(rec Record) {
	if w.recorder == nil {
		return
	}
	w.recorder.RecordEncode(rec)
}
