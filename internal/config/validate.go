package config

import (
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validatePrinter(); err != nil {
		return err
	}
	if err := c.validateTimelapse(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StorageRoot) == "" {
		return fmt.Errorf("paths.storage_root is required")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return fmt.Errorf("paths.log_dir is required")
	}
	return nil
}

func (c *Config) validatePrinter() error {
	if c.Printer.PrinterUUID == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/printlapse/config.toml"
		}
		return fmt.Errorf("printer.printer_uuid is required (set it in %s)", defaultPath)
	}
	if c.Printer.APIKey == "" {
		return fmt.Errorf("printer.api_key is required")
	}
	return nil
}

func (c *Config) validateTimelapse() error {
	if c.Timelapse.FinishingInterval > c.Timelapse.CaptureInterval {
		return fmt.Errorf("timelapse.finishing_interval (%d) must not exceed timelapse.capture_interval (%d)",
			c.Timelapse.FinishingInterval, c.Timelapse.CaptureInterval)
	}
	return nil
}

func (c *Config) validateUpload() error {
	if c.Upload.Enabled && c.Upload.CameraToken == "" {
		return fmt.Errorf("upload.camera_token is required when upload.enabled is true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
