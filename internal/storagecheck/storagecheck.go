package storagecheck

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"printlapse/internal/logging"
	"printlapse/internal/services"
)

// probeName is the throwaway file written to prove the mount accepts writes.
const probeName = ".storage_health"

// commandContext is replaced in tests to stub the mount binary.
var commandContext = exec.CommandContext

// Options configures a Checker.
type Options struct {
	Root      string
	Fallback  string
	MinFreeMB int64
	Timeout   time.Duration
	Interval  time.Duration
	Remount   bool
}

// Status is the result of the most recent health check.
type Status struct {
	Healthy   bool
	FreeMB    int64
	CheckedAt time.Time
	Err       string
}

// Checker verifies that the storage root is writable and has headroom. A NAS
// mount that went away hangs plain writes, so every probe is bounded by a
// timeout.
type Checker struct {
	logger *slog.Logger
	opts   Options

	mu   sync.Mutex
	last Status
}

// New constructs a Checker.
func New(opts Options, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	return &Checker{
		logger: logger.With(logging.String(logging.FieldComponent, "storage")),
		opts:   opts,
	}
}

// Status returns the most recent check result.
func (c *Checker) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Check probes the storage root once and records the result.
func (c *Checker) Check(ctx context.Context) error {
	status := Status{CheckedAt: time.Now()}
	err := c.probe(ctx)
	if err == nil {
		status.FreeMB, err = FreeMB(c.opts.Root)
		if err == nil && c.opts.MinFreeMB > 0 && status.FreeMB < c.opts.MinFreeMB {
			err = services.Wrap(services.ErrTransient, "storage", "check",
				fmt.Sprintf("%d MB free, need %d MB", status.FreeMB, c.opts.MinFreeMB), nil)
		}
	}
	if err != nil {
		status.Err = err.Error()
	}
	status.Healthy = err == nil

	c.mu.Lock()
	c.last = status
	c.mu.Unlock()
	return err
}

// probe writes and removes a small file under the root, bounded by the
// configured timeout so a dead mount cannot wedge the caller.
func (c *Checker) probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		path := filepath.Join(c.opts.Root, probeName)
		if err := os.WriteFile(path, []byte("ok\n"), 0o644); err != nil {
			done <- err
			return
		}
		done <- os.Remove(path)
	}()

	select {
	case err := <-done:
		if err != nil {
			return services.Wrap(services.ErrTransient, "storage", "probe", "write probe", err)
		}
		return nil
	case <-ctx.Done():
		return services.Wrap(services.ErrTimeout, "storage", "probe",
			fmt.Sprintf("storage root unresponsive after %s", c.opts.Timeout), ctx.Err())
	}
}

// FreeMB reports the space available to unprivileged writers on the
// filesystem containing path.
func FreeMB(path string) (int64, error) {
	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return 0, services.Wrap(services.ErrTransient, "storage", "statfs", path, err)
	}
	return int64(fs.Bavail) * fs.Bsize / (1 << 20), nil
}

// EffectiveRoot picks the session storage root for this run: the configured
// root when it passes a health check, otherwise the local fallback.
func (c *Checker) EffectiveRoot(ctx context.Context) string {
	if err := c.Check(ctx); err == nil {
		return c.opts.Root
	} else if c.opts.Fallback != "" {
		c.logger.Warn("storage root unhealthy, using fallback",
			logging.String("root", c.opts.Root),
			logging.String("fallback", c.opts.Fallback),
			logging.Error(err),
		)
		return c.opts.Fallback
	}
	return c.opts.Root
}

// Run re-checks storage on the configured interval, attempting a remount
// when enabled and the root is unhealthy.
func (c *Checker) Run(ctx context.Context) error {
	for {
		if err := c.Check(ctx); err != nil {
			c.logger.Warn("storage health check failed", logging.Error(err))
			if c.opts.Remount {
				c.remount(ctx)
			}
		} else {
			c.logger.Debug("storage healthy",
				logging.Int64("free_mb", c.Status().FreeMB),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.opts.Interval):
		}
	}
}

// remount asks the OS to remount the storage root from fstab. Requires the
// daemon's user to have mount rights on the target.
func (c *Checker) remount(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	out, err := commandContext(ctx, "mount", c.opts.Root).CombinedOutput()
	if err != nil {
		c.logger.Warn("remount failed",
			logging.String("root", c.opts.Root),
			logging.String("output", string(out)),
			logging.Error(err),
		)
		return
	}
	c.logger.Info("storage remounted", logging.String("root", c.opts.Root))
}
