// Package deps reports the availability of the external tools printlapse
// shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"printlapse/internal/config"
)

// Requirement defines an external binary printlapse relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements derives the dependency list from configuration. The encoder
// is optional when video creation is disabled, the mount helper when
// remounting is.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "Camera",
			Command:     cfg.CameraBinary(),
			Description: "Captures timelapse frames",
		},
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Encodes frame sets into videos",
			Optional:    !cfg.Video.Enabled,
		},
		{
			Name:        "mount",
			Command:     "mount",
			Description: "Remounts unhealthy storage",
			Optional:    !cfg.Storage.Remount,
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if resolved, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		} else {
			status.Command = resolved
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the names of unavailable non-optional dependencies.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status.Name)
		}
	}
	return missing
}
