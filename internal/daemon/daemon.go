package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"printlapse/internal/camera"
	"printlapse/internal/capture"
	"printlapse/internal/config"
	"printlapse/internal/deps"
	"printlapse/internal/encoding"
	"printlapse/internal/history"
	"printlapse/internal/logging"
	"printlapse/internal/printer"
	"printlapse/internal/session"
	"printlapse/internal/storagecheck"
	"printlapse/internal/uploader"
)

// Daemon composes the capture loop, encoding worker, storage checker, and
// snapshot uploader into a single lifecycle with flock-based locking to
// prevent multiple instances.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	store   *session.Store
	loop    *capture.Loop
	worker  *encoding.Worker
	checker *storagecheck.Checker
	upl     *uploader.Uploader
	hist    *history.Store

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Capture      capture.Snapshot
	Storage      storagecheck.Status
	StorageRoot  string
	PendingCount int
	LockPath     string
	Dependencies []deps.Status
}

// New constructs a daemon with initialized components. The storage root is
// chosen here: the configured root when healthy, otherwise the local
// fallback.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With(logging.String(logging.FieldRunID, uuid.NewString()))
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	checker := storagecheck.New(storagecheck.Options{
		Root:      cfg.Paths.StorageRoot,
		Fallback:  cfg.Paths.FallbackDir,
		MinFreeMB: int64(cfg.Storage.MinFreeMB),
		Timeout:   time.Duration(cfg.Storage.HealthTimeout) * time.Second,
		Interval:  time.Duration(cfg.Storage.HealthInterval) * time.Second,
		Remount:   cfg.Storage.Remount,
	}, logger)
	root := checker.EffectiveRoot(context.Background())
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	store := session.NewStore(root, logger)

	monitor := printer.NewMonitor(
		printer.NewHTTPClient(cfg.Printer),
		logger,
		time.Duration(cfg.Printer.PollInterval)*time.Second,
		time.Duration(cfg.Printer.BackoffMax)*time.Second,
	)
	sched := capture.NewScheduler(capture.SchedulerConfig{
		CaptureInterval:    time.Duration(cfg.Timelapse.CaptureInterval) * time.Second,
		FinishingThreshold: float64(cfg.Timelapse.FinishingThreshold),
		FinishingInterval:  time.Duration(cfg.Timelapse.FinishingInterval) * time.Second,
		PostPrintFrames:    cfg.Timelapse.PostPrintFrames,
		PostPrintInterval:  time.Duration(cfg.Timelapse.PostPrintInterval) * time.Second,
		StopDebounce:       cfg.Printer.StopDebounce,
		OfflineGrace:       time.Duration(cfg.Printer.OfflineGrace) * time.Second,
	})
	loop := capture.NewLoop(logger, monitor, sched, store, camera.NewCLI(cfg.Camera), cfg.Paths.ControlFile)

	hist, err := history.Open(filepath.Join(cfg.Paths.LogDir, "history.db"), logger)
	if err != nil {
		// History is best-effort; the daemon runs without it.
		logger.Warn("open history store", logging.Error(err))
		hist = nil
	}
	var recorder encoding.Recorder
	if hist != nil {
		recorder = hist
	}

	encoder := encoding.NewEncoder(encoding.EncoderConfig{
		Binary:    cfg.FFmpegBinary(),
		FrameRate: cfg.Video.FrameRate,
		Rotation:  cfg.Video.Rotation,
		CRF:       cfg.Video.CRF,
		Preset:    cfg.Video.Preset,
		Timeout:   time.Duration(cfg.Video.EncodeTimeout) * time.Second,
		Niceness:  cfg.Video.Niceness,
	}, logger)
	worker := encoding.NewWorker(logger, root, encoder, recorder,
		time.Duration(cfg.Video.ScanInterval)*time.Second)

	d := &Daemon{
		cfg:      cfg,
		logger:   logger.With(logging.String(logging.FieldComponent, "daemon")),
		store:    store,
		loop:     loop,
		worker:   worker,
		checker:  checker,
		hist:     hist,
		lockPath: filepath.Join(cfg.Paths.LogDir, "printlapsed.lock"),
	}
	d.lock = flock.New(d.lockPath)

	if cfg.Upload.Enabled {
		d.upl = uploader.New(cfg.Upload, func() (string, time.Time) {
			snap := loop.Snapshot()
			return snap.LastFrame, snap.LastCapture
		}, logger)
	}
	return d, nil
}

// Start acquires the daemon lock, finalizes orphaned sessions, and launches
// the background loops.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another printlapse daemon instance is already running")
	}

	if err := d.store.FinalizeOrphans(); err != nil {
		d.logger.Warn("finalize orphaned sessions", logging.Error(err))
	}

	statuses := deps.CheckBinaries(deps.Requirements(d.cfg))
	if missing := deps.MissingRequired(statuses); len(missing) > 0 {
		d.logger.Warn("required dependencies missing",
			logging.Any("names", missing),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.spawn(runCtx, "capture", d.loop.Run)
	if d.cfg.Video.Enabled {
		d.spawn(runCtx, "encoding", d.worker.Run)
	}
	d.spawn(runCtx, "storage", d.checker.Run)
	if d.upl != nil {
		d.spawn(runCtx, "uploader", d.upl.Run)
	}

	d.running.Store(true)
	d.logger.Info("printlapse daemon started",
		logging.String("storage_root", d.store.Root()),
		logging.String("lock", d.lockPath),
		logging.Bool("video", d.cfg.Video.Enabled),
		logging.Bool("upload", d.upl != nil),
	)
	return nil
}

func (d *Daemon) spawn(ctx context.Context, name string, run func(context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("background loop exited",
				logging.String("loop", name),
				logging.Error(err),
			)
		}
	}()
}

// Stop halts background loops and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("printlapse daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.hist != nil {
		return d.hist.Close()
	}
	return nil
}

// Status reports current daemon state for IPC consumers.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Capture:      d.loop.Snapshot(),
		Storage:      d.checker.Status(),
		StorageRoot:  d.store.Root(),
		LockPath:     d.lockPath,
		Dependencies: deps.CheckBinaries(deps.Requirements(d.cfg)),
	}
	if pending, err := session.Pending(d.store.Root()); err == nil {
		status.PendingCount = len(pending)
	}
	return status
}

// Sessions lists every session directory under the storage root.
func (d *Daemon) Sessions(ctx context.Context) ([]session.Info, error) {
	return session.Scan(d.store.Root())
}

// History returns recent encode outcomes, newest first.
func (d *Daemon) History(ctx context.Context, limit int) ([]history.Entry, error) {
	if d.hist == nil {
		return nil, errors.New("history store unavailable")
	}
	return d.hist.Recent(ctx, limit)
}

// EncodeNow runs one encoding scan immediately instead of waiting for the
// next scheduled pass.
func (d *Daemon) EncodeNow(ctx context.Context) (int, error) {
	return d.worker.ScanOnce(ctx)
}
