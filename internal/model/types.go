package model

import (
	"fmt"
	"strconv"
	"strings"
)

// LaunchPhase represents the lifecycle state of a single launcher invocation.
// The phase transitions are strictly ordered:
//
//	Idle → Cleaning → Allocating → Starting → Running → ShuttingDown → Terminated
//
// There is exactly one LaunchPhase sequence per process; the launcher never
// moves backwards. A fatal precondition failure aborts while still Idle.
type LaunchPhase string

const (
	// PhaseIdle is the initial state before any work has started.
	PhaseIdle LaunchPhase = "idle"

	// PhaseCleaning indicates the stale-instance sweep is in progress:
	// occupants of the candidate port list are being reaped.
	PhaseCleaning LaunchPhase = "cleaning"

	// PhaseAllocating indicates the free-port scan is in progress.
	PhaseAllocating LaunchPhase = "allocating"

	// PhaseStarting indicates the cleanup guard is armed and the served
	// process is being spawned on the allocated port.
	PhaseStarting LaunchPhase = "starting"

	// PhaseRunning indicates the child process has been spawned. Entry into
	// Running is optimistic; there is no health check on the child.
	PhaseRunning LaunchPhase = "running"

	// PhaseShuttingDown indicates the child has exited or a termination
	// signal was received, and cleanup is about to run.
	PhaseShuttingDown LaunchPhase = "shutting-down"

	// PhaseTerminated is the final state: cleanup has run and the launcher
	// is propagating its exit code.
	PhaseTerminated LaunchPhase = "terminated"
)

// String returns the string representation of the phase,
// satisfying fmt.Stringer for log and error output.
func (p LaunchPhase) String() string {
	return string(p)
}

// IsValid checks whether the phase is one of the predefined states.
func (p LaunchPhase) IsValid() bool {
	switch p {
	case PhaseIdle, PhaseCleaning, PhaseAllocating, PhaseStarting,
		PhaseRunning, PhaseShuttingDown, PhaseTerminated:
		return true
	default:
		return false
	}
}

// phaseOrder maps each phase to its position in the lifecycle sequence.
// Used by CanTransitionTo to enforce forward-only transitions.
var phaseOrder = map[LaunchPhase]int{
	PhaseIdle:         0,
	PhaseCleaning:     1,
	PhaseAllocating:   2,
	PhaseStarting:     3,
	PhaseRunning:      4,
	PhaseShuttingDown: 5,
	PhaseTerminated:   6,
}

// CanTransitionTo reports whether next is a legal successor of the current
// phase. Legal transitions are the single forward step in the lifecycle
// sequence, plus a jump from any phase at Starting or later directly to
// ShuttingDown (an interrupt can arrive at any point once the guard is armed).
func (p LaunchPhase) CanTransitionTo(next LaunchPhase) bool {
	cur, ok := phaseOrder[p]
	if !ok {
		return false
	}
	nxt, ok := phaseOrder[next]
	if !ok {
		return false
	}
	if nxt == cur+1 {
		return true
	}
	// Signal-driven shutdown short-circuits Starting/Running.
	return next == PhaseShuttingDown && cur >= phaseOrder[PhaseStarting]
}

// PortCandidate is a point-in-time snapshot of a single port's occupancy.
// It is recomputed on every probe and never persisted; the OS port table
// can change the moment after it is observed.
type PortCandidate struct {
	// Port is the TCP port number (1-65535).
	Port int `json:"port"`

	// OccupantPIDs lists the process IDs observed listening on the port.
	// Empty means no occupant was observed, which, when no diagnostic
	// tool is available, is a fail-open assumption rather than a fact.
	OccupantPIDs []int `json:"occupantPids,omitempty"`
}

// Occupied reports whether at least one occupant was observed.
func (c PortCandidate) Occupied() bool {
	return len(c.OccupantPIDs) > 0
}

// String returns a human-readable representation, e.g. "8501 (pids: 4200)"
// or "8502 (free)".
func (c PortCandidate) String() string {
	if !c.Occupied() {
		return fmt.Sprintf("%d (free)", c.Port)
	}
	pids := make([]string, len(c.OccupantPIDs))
	for i, pid := range c.OccupantPIDs {
		pids[i] = strconv.Itoa(pid)
	}
	return fmt.Sprintf("%d (pids: %s)", c.Port, strings.Join(pids, ", "))
}

// ValidatePort checks that a port number is within the valid TCP range.
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port %d out of range (1-65535)", port)
	}
	return nil
}

// TerminationOutcome records the result of a single termination attempt.
// It exists only to report whether escalation to the forceful signal was
// needed; it is not retained anywhere.
type TerminationOutcome struct {
	// Succeeded is true when the target is gone after the attempt. A target
	// that had already exited counts as success.
	Succeeded bool `json:"succeeded"`

	// Escalated is true when the target survived the graceful signal and
	// the forceful signal was sent.
	Escalated bool `json:"escalated"`
}

// ServerOptions holds the recognized configuration toggles passed to the
// served process at spawn time. Each toggle is independent; the launcher
// renders them to flags without validating combinations.
type ServerOptions struct {
	// Port is the TCP port the server binds to.
	Port int `json:"port"`

	// Headless suppresses the server's browser auto-open behavior.
	Headless bool `json:"headless"`

	// AutoReload makes the server rerun the app when its source changes.
	AutoReload bool `json:"autoReload"`

	// EnableCORS controls the server's cross-origin request handling.
	EnableCORS bool `json:"enableCors"`

	// EnableXSRFProtection controls the server's CSRF token checks.
	EnableXSRFProtection bool `json:"enableXsrfProtection"`

	// DisableTelemetry opts out of the server's usage statistics upload.
	DisableTelemetry bool `json:"disableTelemetry"`
}

// Args renders the options as Streamlit server flags, in a fixed order so
// the spawned command line is deterministic.
func (o ServerOptions) Args() []string {
	args := []string{
		"--server.port", strconv.Itoa(o.Port),
		"--server.headless", strconv.FormatBool(o.Headless),
		"--server.runOnSave", strconv.FormatBool(o.AutoReload),
		"--server.enableCORS", strconv.FormatBool(o.EnableCORS),
		"--server.enableXsrfProtection", strconv.FormatBool(o.EnableXSRFProtection),
	}
	if o.DisableTelemetry {
		args = append(args, "--browser.gatherUsageStats", "false")
	}
	return args
}

// ExitCode defines the launcher's process exit codes.
type ExitCode int

const (
	// ExitSuccess indicates a graceful shutdown.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates a fatal failure: a missing interpreter or
	// entry file, or an unrecoverable child-process launch failure.
	ExitGeneralError ExitCode = 1
)

// CLIError is an error that carries an exit code, letting the CLI layer
// translate domain failures into the process exit status.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
