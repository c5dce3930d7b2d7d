package printer

import "strings"

// State classifies the printer's reported condition.
type State string

const (
	StateIdle        State = "idle"
	StatePrinting    State = "printing"
	StatePaused      State = "paused"
	StateError       State = "error"
	StateUnreachable State = "unreachable"
)

// Status is one poll's view of the printer. Progress is meaningful only while
// the printer reports StatePrinting.
type Status struct {
	State    State
	Progress float64
	JobID    int64
	JobName  string
	RawState string
}

// Printing reports whether frames should be captured for this status.
func (s Status) Printing() bool {
	return s.State == StatePrinting
}

// classifyState maps Prusa Connect state strings onto the State enum.
// Unknown values are treated as idle rather than error so a firmware update
// adding a new state cannot force-close sessions.
func classifyState(raw string) State {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PRINTING":
		return StatePrinting
	case "PAUSED", "ATTENTION", "BUSY":
		return StatePaused
	case "ERROR":
		return StateError
	default:
		return StateIdle
	}
}
