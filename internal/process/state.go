package process

import "time"

// State represents the current state of a managed process.
type State string

// Process states.
const (
	StateIdle     State = "idle"     // Not running
	StateStarting State = "starting" // Being started
	StateRunning  State = "running"  // Active
	StateStopping State = "stopping" // Being stopped
	StateError    State = "error"    // Failed to start/crashed
)

// Info contains information about a managed process.
type Info struct {
	ID           string    `json:"id"`
	State        State     `json:"state"`
	PID          int       `json:"pid,omitempty"`
	StartedAt    time.Time `json:"started_at,omitzero"`
	RestartCount int       `json:"restart_count"`
	LastExitCode int       `json:"last_exit_code"`
}

// StateChangeFunc is called on every state transition.
type StateChangeFunc func(id string, oldState, newState State)
