package camera

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"printlapse/internal/config"
	"printlapse/internal/services"
)

var commandContext = exec.CommandContext

// Camera captures still images.
type Camera interface {
	Capture(ctx context.Context) ([]byte, error)
}

// CLI wraps the rpicam-still command-line capture tool.
type CLI struct {
	binary  string
	width   int
	height  int
	quality int
	timeout time.Duration
}

// NewCLI constructs a camera from configuration.
func NewCLI(cfg config.Camera) *CLI {
	timeout := time.Duration(cfg.CaptureTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	binary := cfg.Binary
	if binary == "" {
		binary = "rpicam-still"
	}
	return &CLI{
		binary:  binary,
		width:   cfg.Width,
		height:  cfg.Height,
		quality: cfg.Quality,
		timeout: timeout,
	}
}

// Available reports whether the capture binary is on PATH.
func (c *CLI) Available() bool {
	_, err := exec.LookPath(c.binary)
	return err == nil
}

// Capture takes one still image and returns its bytes. The call is bounded by
// the configured capture timeout; a timeout or non-zero exit is a failure of
// this single attempt only.
func (c *CLI) Capture(ctx context.Context) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	tmp, err := os.CreateTemp("", "printlapse-snap-*.jpg")
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "camera", "capture", "create temp file", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	args := []string{
		"-v", "0",
		"--immediate",
		"--nopreview",
		"--width", strconv.Itoa(c.width),
		"--height", strconv.Itoa(c.height),
		"-q", strconv.Itoa(c.quality),
		"-o", tmpPath,
	}
	cmd := commandContext(runCtx, c.binary, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, "camera", "capture",
				fmt.Sprintf("%s exceeded %s", filepath.Base(c.binary), c.timeout), nil)
		}
		return nil, services.Wrap(services.ErrExternalTool, "camera", "capture",
			fmt.Sprintf("%s failed: %s", filepath.Base(c.binary), firstLine(output)), err)
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "camera", "capture", "read snapshot", err)
	}
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, "camera", "capture", "empty snapshot", nil)
	}
	return data, nil
}

func firstLine(output []byte) string {
	for i, b := range output {
		if b == '\n' {
			return string(output[:i])
		}
	}
	return string(output)
}

var _ Camera = (*CLI)(nil)
