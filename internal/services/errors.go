package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for failure classification. Components wrap failures with
// one of these so callers can decide between retry, skip, and reject without
// inspecting message text.
var (
	// ErrTransient covers storage or network unavailability; retried with backoff.
	ErrTransient = errors.New("transient failure")
	// ErrExternalTool covers non-zero exits from rpicam-still, ffmpeg, or mount.
	ErrExternalTool = errors.New("external tool error")
	// ErrTimeout covers a bounded external call exceeding its deadline.
	ErrTimeout = errors.New("timeout")
	// ErrSessionActive rejects opening a second capturing session.
	ErrSessionActive = errors.New("session already active")
	// ErrConfiguration covers invalid or missing configuration values.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker. The marker should be one of the exported
// sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether an error should be retried in place rather than
// surfaced as a skipped unit of work.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
