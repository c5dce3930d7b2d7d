package ipc

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// DependencyStatus describes availability of an external binary.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail"`
}

// StatusResponse represents combined daemon state for CLI display.
type StatusResponse struct {
	Running         bool               `json:"running"`
	PID             int                `json:"pid"`
	PrinterState    string             `json:"printer_state"`
	PrinterProgress float64            `json:"printer_progress"`
	JobName         string             `json:"job_name"`
	SessionID       string             `json:"session_id"`
	SessionManual   bool               `json:"session_manual"`
	Frames          int                `json:"frames"`
	IntervalSeconds float64            `json:"interval_seconds"`
	Finishing       bool               `json:"finishing"`
	Burst           bool               `json:"burst"`
	StorageRoot     string             `json:"storage_root"`
	StorageHealthy  bool               `json:"storage_healthy"`
	StorageFreeMB   int64              `json:"storage_free_mb"`
	StorageError    string             `json:"storage_error"`
	PendingCount    int                `json:"pending_count"`
	LockPath        string             `json:"lock_path"`
	Dependencies    []DependencyStatus `json:"dependencies"`
}

// SessionsRequest lists session directories.
type SessionsRequest struct{}

// SessionInfo mirrors one scanned session directory.
type SessionInfo struct {
	ID         string `json:"id"`
	Phase      string `json:"phase"`
	FrameCount int    `json:"frame_count"`
	VideoBytes int64  `json:"video_bytes"`
	Dir        string `json:"dir"`
}

// SessionsResponse contains scanned sessions sorted by ID.
type SessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// HistoryRequest fetches recent encode outcomes.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// HistoryEntry is one recorded encode attempt.
type HistoryEntry struct {
	SessionID  string `json:"session_id"`
	Title      string `json:"title"`
	Frames     int    `json:"frames"`
	VideoPath  string `json:"video_path"`
	VideoBytes int64  `json:"video_bytes"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error"`
	CreatedAt  string `json:"created_at"`
}

// HistoryResponse contains encode history, newest first.
type HistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
}

// EncodeRequest triggers an immediate encoding scan.
type EncodeRequest struct{}

// EncodeResponse reports how many sessions the scan encoded.
type EncodeResponse struct {
	Encoded int `json:"encoded"`
}
