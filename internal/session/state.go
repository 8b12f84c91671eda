package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/sugoi/internal/protocol"
)

// State is the lifecycle state of the session.
type State int

const (
	StateDetached State = iota
	StateAttaching
	StateAttached
	StateDetaching
)

func (s State) String() string {
	switch s {
	case StateDetached:
		return "detached"
	case StateAttaching:
		return "attaching"
	case StateAttached:
		return "attached"
	case StateDetaching:
		return "detaching"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	// ErrAlreadyAttached is returned by Attach while a session exists.
	ErrAlreadyAttached = errors.New("already attached")
	// ErrNotAttached is returned by operations that need an attached session.
	ErrNotAttached = errors.New("not attached")
	// ErrWrite is returned when a command cannot be written to the engine.
	ErrWrite = errors.New("engine write failed")
	// ErrUnknownHook is returned when selecting a hook that was never discovered.
	ErrUnknownHook = errors.New("unknown hook")
	// ErrEngineExited is reported when the engine closed its output on its own.
	ErrEngineExited = errors.New("engine exited")
	// ErrInvalidPID is returned by Attach for a non-positive pid.
	ErrInvalidPID = errors.New("invalid pid")
)

// AttachError is returned when the engine could not be started or addressed.
type AttachError struct {
	PID     int
	Variant protocol.Variant
	Err     error
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("attach to %d with engine %s: %v", e.PID, e.Variant, e.Err)
}

func (e *AttachError) Unwrap() error { return e.Err }

// Status is a snapshot of the session.
type Status struct {
	State        State            `json:"state"`
	SessionID    string           `json:"session_id,omitempty"`
	PID          int              `json:"pid,omitempty"`
	Engine       protocol.Variant `json:"engine,omitempty"`
	SelectedHook string           `json:"selected_hook,omitempty"`
	Since        time.Time        `json:"since,omitempty"`
	Hooks        int              `json:"hooks"`
	// AutoSelecting is set while a remembered hook is still being looked for.
	AutoSelecting bool `json:"auto_selecting"`
}
