package main

import (
	"os"
	"path/filepath"
	"testing"

	"printlapse/internal/testsupport"
)

func TestNewLoggerWritesLogFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	logger, err := newLogger(cfg)
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}

	logger.Info("startup check")

	logPath := filepath.Join(cfg.Paths.LogDir, "printlapsed.log")
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected log record in file")
	}
}

func TestNewLoggerRejectsUnknownFormat(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Logging.Format = "xml"

	if _, err := newLogger(cfg); err == nil {
		t.Fatal("expected error for unsupported log format")
	}
}
