package logging

import (
	"log/slog"
	"time"
)

// Standardized structured logging keys shared across components.
const (
	// FieldComponent identifies the emitting loop or subsystem.
	FieldComponent = "component"
	// FieldSession is the session identifier (directory name) a record concerns.
	FieldSession = "session"
	// FieldPhase is the session lifecycle phase derived from markers.
	FieldPhase = "phase"
	// FieldFrame is a zero-based frame index.
	FieldFrame = "frame"
	// FieldRunID correlates records from one daemon process lifetime.
	FieldRunID = "run_id"
)

type Attr = slog.Attr

func Any(key string, value any) Attr { return slog.Any(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Float64(key string, value float64) Attr { return slog.Float64(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}
