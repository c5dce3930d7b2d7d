// Package uploader pushes the most recent captured frame to the Prusa
// Connect camera endpoint so remote monitoring shows a live view of the
// print. Upload failures never affect capture or encoding.
package uploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"printlapse/internal/config"
	"printlapse/internal/logging"
	"printlapse/internal/services"
)

// FrameSource reports the latest captured frame and when it was taken. An
// empty path means nothing has been captured yet.
type FrameSource func() (path string, at time.Time)

// Uploader periodically PUTs the newest frame to a camera snapshot endpoint.
type Uploader struct {
	logger      *slog.Logger
	client      *http.Client
	url         string
	token       string
	fingerprint string
	interval    time.Duration
	source      FrameSource

	failures int
	lastSent time.Time
}

// New constructs an Uploader from resolved configuration. When no
// fingerprint is configured a random one identifies this camera for the
// lifetime of the process.
func New(cfg config.Upload, source FrameSource, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = logging.NewNop()
	}
	fingerprint := cfg.Fingerprint
	if fingerprint == "" {
		fingerprint = uuid.NewString()
	}
	interval := time.Duration(cfg.Interval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Uploader{
		logger:      logger.With(logging.String(logging.FieldComponent, "uploader")),
		client:      &http.Client{Timeout: timeout},
		url:         cfg.URL,
		token:       cfg.CameraToken,
		fingerprint: fingerprint,
		interval:    interval,
		source:      source,
	}
}

// Run uploads on the configured interval until the context is canceled.
// Consecutive failures stretch the interval so an offline service is not
// hammered.
func (u *Uploader) Run(ctx context.Context) error {
	u.logger.Info("snapshot uploader started",
		logging.Duration("interval", u.interval),
		logging.String("fingerprint", u.fingerprint),
	)
	for {
		if err := u.uploadOnce(ctx); err != nil {
			u.failures++
			u.logger.Warn("snapshot upload failed",
				logging.Int("consecutive_failures", u.failures),
				logging.Error(err),
			)
		} else {
			u.failures = 0
		}

		select {
		case <-ctx.Done():
			u.logger.Info("snapshot uploader stopped")
			return ctx.Err()
		case <-time.After(u.delay()):
		}
	}
}

// delay is the base interval, doubled per consecutive failure up to 10x.
func (u *Uploader) delay() time.Duration {
	delay := u.interval
	max := 10 * u.interval
	for i := 0; i < u.failures; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	return delay
}

// uploadOnce sends the latest frame if one exists and is newer than the last
// upload. A stale frame means no print is running; skipping it keeps the
// remote view honest.
func (u *Uploader) uploadOnce(ctx context.Context) error {
	path, at := u.source()
	if path == "" || !at.After(u.lastSent) {
		return nil
	}

	image, err := os.ReadFile(path)
	if err != nil {
		return services.Wrap(services.ErrTransient, "uploader", "upload", "read frame", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.url, bytes.NewReader(image))
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "uploader", "upload", "build request", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Token", u.token)
	req.Header.Set("Fingerprint", u.fingerprint)

	resp, err := u.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "uploader", "upload", "send snapshot", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return services.Wrap(services.ErrTransient, "uploader", "upload",
			fmt.Sprintf("unexpected status %s", resp.Status), nil)
	}

	u.lastSent = at
	u.logger.Debug("snapshot uploaded",
		logging.String("frame", path),
		logging.Int("bytes", len(image)),
	)
	return nil
}
