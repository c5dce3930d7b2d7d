package config

const (
	defaultStorageRoot        = "/mnt/nas/printer-footage"
	defaultFallbackDir        = "~/.local/share/printlapse/fallback"
	defaultLogDir             = "~/.local/share/printlapse/logs"
	defaultControlFile        = "~/.printlapse_recording"
	defaultPrinterBaseURL     = "https://connect.prusa3d.com/api/v1"
	defaultStatusTimeout      = 15
	defaultPollInterval       = 30
	defaultBackoffMax         = 300
	defaultStopDebounce       = 3
	defaultOfflineGrace       = 180
	defaultCameraBinary       = "rpicam-still"
	defaultCameraWidth        = 1704
	defaultCameraHeight       = 1278
	defaultCameraQuality      = 85
	defaultCaptureTimeout     = 30
	defaultCaptureInterval    = 30
	defaultFinishingThreshold = 98
	defaultFinishingInterval  = 5
	defaultPostPrintFrames    = 24
	defaultPostPrintInterval  = 5
	defaultFrameRate          = 15
	defaultRotation           = 180
	defaultCRF                = 18
	defaultPreset             = "veryfast"
	defaultEncodeTimeout      = 3600
	defaultNiceness           = 15
	defaultScanInterval       = 60
	defaultUploadURL          = "https://webcam.connect.prusa3d.com/c/snapshot"
	defaultUploadInterval     = 12
	defaultUploadTimeout      = 30
	defaultMinFreeMB          = 2048
	defaultHealthInterval     = 300
	defaultHealthTimeout      = 5
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StorageRoot: defaultStorageRoot,
			FallbackDir: defaultFallbackDir,
			LogDir:      defaultLogDir,
			ControlFile: defaultControlFile,
		},
		Printer: Printer{
			BaseURL:       defaultPrinterBaseURL,
			StatusTimeout: defaultStatusTimeout,
			PollInterval:  defaultPollInterval,
			BackoffMax:    defaultBackoffMax,
			StopDebounce:  defaultStopDebounce,
			OfflineGrace:  defaultOfflineGrace,
		},
		Camera: Camera{
			Binary:         defaultCameraBinary,
			Width:          defaultCameraWidth,
			Height:         defaultCameraHeight,
			Quality:        defaultCameraQuality,
			CaptureTimeout: defaultCaptureTimeout,
		},
		Timelapse: Timelapse{
			CaptureInterval:    defaultCaptureInterval,
			FinishingThreshold: defaultFinishingThreshold,
			FinishingInterval:  defaultFinishingInterval,
			PostPrintFrames:    defaultPostPrintFrames,
			PostPrintInterval:  defaultPostPrintInterval,
		},
		Video: Video{
			Enabled:       true,
			FrameRate:     defaultFrameRate,
			Rotation:      defaultRotation,
			CRF:           defaultCRF,
			Preset:        defaultPreset,
			EncodeTimeout: defaultEncodeTimeout,
			Niceness:      defaultNiceness,
			ScanInterval:  defaultScanInterval,
		},
		Upload: Upload{
			URL:            defaultUploadURL,
			Interval:       defaultUploadInterval,
			RequestTimeout: defaultUploadTimeout,
		},
		Storage: Storage{
			MinFreeMB:      defaultMinFreeMB,
			HealthInterval: defaultHealthInterval,
			HealthTimeout:  defaultHealthTimeout,
			Remount:        true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
