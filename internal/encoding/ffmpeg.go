package encoding

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"printlapse/internal/logging"
	"printlapse/internal/services"
)

// commandContext is replaced in tests to stub the encoder binary.
var commandContext = exec.CommandContext

// EncoderConfig holds the ffmpeg parameters for one deployment.
type EncoderConfig struct {
	Binary    string
	FrameRate int
	Rotation  int
	CRF       int
	Preset    string
	Timeout   time.Duration
	Niceness  int
}

// Encoder runs ffmpeg over a session's frame sequence. The output is written
// wherever the caller points it; atomicity is the caller's concern.
type Encoder struct {
	cfg    EncoderConfig
	logger *slog.Logger
}

// NewEncoder constructs an Encoder.
func NewEncoder(cfg EncoderConfig, logger *slog.Logger) *Encoder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Encoder{
		cfg:    cfg,
		logger: logger.With(logging.String(logging.FieldComponent, "encoder")),
	}
}

// Encode renders the frame sequence in framesDir into outPath. The run is
// bounded by the configured timeout and deprioritized below capture work.
func (e *Encoder) Encode(ctx context.Context, framesDir, outPath string) error {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	args := e.buildArgs(framesDir, outPath)
	cmd := commandContext(ctx, e.cfg.Binary, args...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrExternalTool, "encoder", "encode", "start ffmpeg", err)
	}
	if e.cfg.Niceness > 0 {
		if err := unix.Setpriority(unix.PRIO_PROCESS, cmd.Process.Pid, e.cfg.Niceness); err != nil {
			e.logger.Debug("set encoder niceness", logging.Error(err))
		}
	}

	err := cmd.Wait()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "encoder", "encode",
				fmt.Sprintf("ffmpeg exceeded %s", e.cfg.Timeout), ctx.Err())
		}
		return services.Wrap(services.ErrExternalTool, "encoder", "encode",
			fmt.Sprintf("ffmpeg failed: %s", outputTail(output.Bytes())), err)
	}
	return nil
}

// buildArgs assembles the ffmpeg invocation. Two threads and +faststart keep
// the encode usable on a Pi and the result streamable.
func (e *Encoder) buildArgs(framesDir, outPath string) []string {
	args := []string{
		"-y",
		"-framerate", strconv.Itoa(e.cfg.FrameRate),
		"-i", filepath.Join(framesDir, "frame_%06d.jpg"),
	}
	if filter := rotationFilter(e.cfg.Rotation); filter != "" {
		args = append(args, "-vf", filter)
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", e.cfg.Preset,
		"-crf", strconv.Itoa(e.cfg.CRF),
		"-pix_fmt", "yuv420p",
		"-threads", "2",
		"-movflags", "+faststart",
		"-f", "mp4",
		outPath,
	)
	return args
}

// rotationFilter maps a rotation in degrees onto an ffmpeg filter chain.
func rotationFilter(degrees int) string {
	switch ((degrees % 360) + 360) % 360 {
	case 90:
		return "transpose=1"
	case 180:
		return "transpose=1,transpose=1"
	case 270:
		return "transpose=2"
	default:
		return ""
	}
}

// outputTail keeps error messages bounded; ffmpeg puts the useful part last.
func outputTail(out []byte) string {
	const limit = 2048
	out = bytes.TrimSpace(out)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return string(out)
}

// Available reports whether the encoder binary can be found.
func (e *Encoder) Available() bool {
	_, err := exec.LookPath(e.cfg.Binary)
	return err == nil
}
