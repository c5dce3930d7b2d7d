package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePrinter()
	c.normalizeCamera()
	c.normalizeTimelapse()
	c.normalizeVideo()
	c.normalizeUpload()
	c.normalizeStorage()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StorageRoot, err = expandPath(c.Paths.StorageRoot); err != nil {
		return fmt.Errorf("paths.storage_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.FallbackDir) == "" {
		c.Paths.FallbackDir = defaultFallbackDir
	}
	if c.Paths.FallbackDir, err = expandPath(c.Paths.FallbackDir); err != nil {
		return fmt.Errorf("paths.fallback_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ControlFile) == "" {
		c.Paths.ControlFile = defaultControlFile
	}
	if c.Paths.ControlFile, err = expandPath(c.Paths.ControlFile); err != nil {
		return fmt.Errorf("paths.control_file: %w", err)
	}
	if strings.TrimSpace(c.Paths.SocketPath) == "" {
		c.Paths.SocketPath = filepath.Join(c.Paths.LogDir, "printlapsed.sock")
	} else if c.Paths.SocketPath, err = expandPath(c.Paths.SocketPath); err != nil {
		return fmt.Errorf("paths.socket_path: %w", err)
	}
	return nil
}

func (c *Config) normalizePrinter() {
	c.Printer.BaseURL = strings.TrimRight(strings.TrimSpace(c.Printer.BaseURL), "/")
	if c.Printer.BaseURL == "" {
		c.Printer.BaseURL = defaultPrinterBaseURL
	}
	c.Printer.PrinterUUID = strings.TrimSpace(c.Printer.PrinterUUID)
	c.Printer.APIKey = strings.TrimSpace(c.Printer.APIKey)
	if c.Printer.StatusTimeout <= 0 {
		c.Printer.StatusTimeout = defaultStatusTimeout
	}
	if c.Printer.PollInterval <= 0 {
		c.Printer.PollInterval = defaultPollInterval
	}
	if c.Printer.BackoffMax < c.Printer.PollInterval {
		c.Printer.BackoffMax = defaultBackoffMax
	}
	if c.Printer.StopDebounce <= 0 {
		c.Printer.StopDebounce = defaultStopDebounce
	}
	if c.Printer.OfflineGrace <= 0 {
		c.Printer.OfflineGrace = defaultOfflineGrace
	}
}

func (c *Config) normalizeCamera() {
	if strings.TrimSpace(c.Camera.Binary) == "" {
		c.Camera.Binary = defaultCameraBinary
	}
	if c.Camera.Width <= 0 {
		c.Camera.Width = defaultCameraWidth
	}
	if c.Camera.Height <= 0 {
		c.Camera.Height = defaultCameraHeight
	}
	if c.Camera.Quality <= 0 || c.Camera.Quality > 100 {
		c.Camera.Quality = defaultCameraQuality
	}
	if c.Camera.CaptureTimeout <= 0 {
		c.Camera.CaptureTimeout = defaultCaptureTimeout
	}
}

func (c *Config) normalizeTimelapse() {
	if c.Timelapse.CaptureInterval <= 0 {
		c.Timelapse.CaptureInterval = defaultCaptureInterval
	}
	if c.Timelapse.FinishingThreshold < 0 {
		c.Timelapse.FinishingThreshold = 0
	}
	if c.Timelapse.FinishingThreshold > 100 {
		c.Timelapse.FinishingThreshold = 100
	}
	if c.Timelapse.FinishingInterval < 1 {
		c.Timelapse.FinishingInterval = defaultFinishingInterval
	}
	if c.Timelapse.PostPrintFrames < 0 {
		c.Timelapse.PostPrintFrames = 0
	}
	if c.Timelapse.PostPrintInterval < 1 {
		c.Timelapse.PostPrintInterval = defaultPostPrintInterval
	}
}

func (c *Config) normalizeVideo() {
	if c.Video.FrameRate < 1 || c.Video.FrameRate > 60 {
		c.Video.FrameRate = defaultFrameRate
	}
	switch c.Video.Rotation {
	case 0, 90, 180, 270:
	default:
		c.Video.Rotation = defaultRotation
	}
	if c.Video.CRF < 0 || c.Video.CRF > 51 {
		c.Video.CRF = defaultCRF
	}
	if !validPreset(c.Video.Preset) {
		c.Video.Preset = defaultPreset
	}
	if c.Video.EncodeTimeout <= 0 {
		c.Video.EncodeTimeout = defaultEncodeTimeout
	}
	if c.Video.Niceness < 0 || c.Video.Niceness > 19 {
		c.Video.Niceness = defaultNiceness
	}
	if c.Video.ScanInterval <= 0 {
		c.Video.ScanInterval = defaultScanInterval
	}
}

func (c *Config) normalizeUpload() {
	c.Upload.URL = strings.TrimSpace(c.Upload.URL)
	if c.Upload.URL == "" {
		c.Upload.URL = defaultUploadURL
	}
	c.Upload.CameraToken = strings.TrimSpace(c.Upload.CameraToken)
	c.Upload.Fingerprint = strings.TrimSpace(c.Upload.Fingerprint)
	if c.Upload.Interval <= 0 {
		c.Upload.Interval = defaultUploadInterval
	}
	if c.Upload.RequestTimeout <= 0 {
		c.Upload.RequestTimeout = defaultUploadTimeout
	}
}

func (c *Config) normalizeStorage() {
	if c.Storage.MinFreeMB <= 0 {
		c.Storage.MinFreeMB = defaultMinFreeMB
	}
	if c.Storage.HealthInterval <= 0 {
		c.Storage.HealthInterval = defaultHealthInterval
	}
	if c.Storage.HealthTimeout <= 0 {
		c.Storage.HealthTimeout = defaultHealthTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func validPreset(preset string) bool {
	switch strings.TrimSpace(preset) {
	case "ultrafast", "superfast", "veryfast", "faster", "fast", "medium", "slow", "slower", "veryslow":
		return true
	}
	return false
}
