package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and control file configuration.
type Paths struct {
	StorageRoot string `toml:"storage_root"`
	FallbackDir string `toml:"fallback_dir"`
	LogDir      string `toml:"log_dir"`
	ControlFile string `toml:"control_file"`
	SocketPath  string `toml:"socket_path"`
}

// Printer contains configuration for the printer status API.
type Printer struct {
	BaseURL       string `toml:"base_url"`
	PrinterUUID   string `toml:"printer_uuid"`
	APIKey        string `toml:"api_key"`
	StatusTimeout int    `toml:"status_timeout"`
	PollInterval  int    `toml:"poll_interval"`
	BackoffMax    int    `toml:"backoff_max"`
	StopDebounce  int    `toml:"stop_debounce"`
	OfflineGrace  int    `toml:"offline_grace"`
}

// Camera contains configuration for still-image capture.
type Camera struct {
	Binary         string `toml:"binary"`
	Width          int    `toml:"width"`
	Height         int    `toml:"height"`
	Quality        int    `toml:"quality"`
	CaptureTimeout int    `toml:"capture_timeout"`
}

// Timelapse contains frame cadence configuration.
type Timelapse struct {
	CaptureInterval    int `toml:"capture_interval"`
	FinishingThreshold int `toml:"finishing_threshold"`
	FinishingInterval  int `toml:"finishing_interval"`
	PostPrintFrames    int `toml:"post_print_frames"`
	PostPrintInterval  int `toml:"post_print_interval"`
}

// Video contains encoding configuration passed through to ffmpeg.
type Video struct {
	Enabled       bool   `toml:"enabled"`
	FrameRate     int    `toml:"frame_rate"`
	Rotation      int    `toml:"rotation"`
	CRF           int    `toml:"crf"`
	Preset        string `toml:"preset"`
	EncodeTimeout int    `toml:"encode_timeout"`
	Niceness      int    `toml:"niceness"`
	ScanInterval  int    `toml:"scan_interval"`
}

// Upload contains configuration for the remote snapshot uploader.
type Upload struct {
	Enabled        bool   `toml:"enabled"`
	URL            string `toml:"url"`
	CameraToken    string `toml:"camera_token"`
	Fingerprint    string `toml:"fingerprint"`
	Interval       int    `toml:"interval"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Storage contains storage health configuration.
type Storage struct {
	MinFreeMB      int  `toml:"min_free_mb"`
	HealthInterval int  `toml:"health_interval"`
	HealthTimeout  int  `toml:"health_timeout"`
	Remount        bool `toml:"remount"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for printlapse.
//
// Sections by subsystem:
//   - Paths: session storage tree, local fallback, logs, control file
//   - Printer: status API endpoint, credentials, polling cadence
//   - Camera: capture binary, resolution, quality
//   - Timelapse: frame cadence and post-print burst
//   - Video: ffmpeg parameters and worker scan interval
//   - Upload: remote monitoring snapshot push
//   - Storage: mount health checks and free-space floor
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Printer   Printer   `toml:"printer"`
	Camera    Camera    `toml:"camera"`
	Timelapse Timelapse `toml:"timelapse"`
	Video     Video     `toml:"video"`
	Upload    Upload    `toml:"upload"`
	Storage   Storage   `toml:"storage"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/printlapse/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a file was found at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("printlapse.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// StorageRoot is created on a best-effort basis so the daemon can start when
// network storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.FallbackDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.StorageRoot) != "" {
		// Best-effort so config load survives offline storage.
		_ = os.MkdirAll(c.Paths.StorageRoot, 0o755)
	}
	return nil
}

// CameraBinary returns the capture executable name.
func (c *Config) CameraBinary() string {
	if strings.TrimSpace(c.Camera.Binary) != "" {
		return c.Camera.Binary
	}
	return "rpicam-still"
}

// FFmpegBinary returns the encoder executable name.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
