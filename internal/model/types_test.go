package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLaunchPhase_ForwardTransitions walks the whole lifecycle in order and
// verifies each single step is legal.
func TestLaunchPhase_ForwardTransitions(t *testing.T) {
	sequence := []LaunchPhase{
		PhaseIdle, PhaseCleaning, PhaseAllocating, PhaseStarting,
		PhaseRunning, PhaseShuttingDown, PhaseTerminated,
	}
	for i := 0; i < len(sequence)-1; i++ {
		assert.True(t, sequence[i].CanTransitionTo(sequence[i+1]),
			"%s → %s must be legal", sequence[i], sequence[i+1])
	}
}

// TestLaunchPhase_NoBackwardTransitions verifies the machine never moves
// backwards and never skips forward past the next phase (except for the
// signal shortcut into ShuttingDown).
func TestLaunchPhase_NoBackwardTransitions(t *testing.T) {
	assert.False(t, PhaseRunning.CanTransitionTo(PhaseCleaning))
	assert.False(t, PhaseTerminated.CanTransitionTo(PhaseIdle))
	assert.False(t, PhaseIdle.CanTransitionTo(PhaseAllocating), "skipping Cleaning is illegal")
	assert.False(t, PhaseIdle.CanTransitionTo(PhaseShuttingDown),
		"the signal shortcut only applies once the guard can be armed")
	assert.False(t, PhaseCleaning.CanTransitionTo(PhaseShuttingDown))
}

// TestLaunchPhase_SignalShortcut verifies an interrupt can short-circuit
// into ShuttingDown from Starting or Running.
func TestLaunchPhase_SignalShortcut(t *testing.T) {
	assert.True(t, PhaseStarting.CanTransitionTo(PhaseShuttingDown))
	assert.True(t, PhaseRunning.CanTransitionTo(PhaseShuttingDown))
}

// TestLaunchPhase_IsValid covers the enum guard.
func TestLaunchPhase_IsValid(t *testing.T) {
	assert.True(t, PhaseCleaning.IsValid())
	assert.False(t, LaunchPhase("rebooting").IsValid())
	assert.False(t, LaunchPhase("rebooting").CanTransitionTo(PhaseCleaning))
}

// TestPortCandidate_String covers both renderings.
func TestPortCandidate_String(t *testing.T) {
	free := PortCandidate{Port: 8502}
	held := PortCandidate{Port: 8501, OccupantPIDs: []int{4200, 4300}}

	assert.Equal(t, "8502 (free)", free.String())
	assert.False(t, free.Occupied())
	assert.Equal(t, "8501 (pids: 4200, 4300)", held.String())
	assert.True(t, held.Occupied())
}

// TestValidatePort covers the range check boundaries.
func TestValidatePort(t *testing.T) {
	assert.NoError(t, ValidatePort(1))
	assert.NoError(t, ValidatePort(65535))
	assert.Error(t, ValidatePort(0))
	assert.Error(t, ValidatePort(65536))
}

// TestServerOptions_Args verifies deterministic flag rendering, including
// the telemetry opt-out being emitted only when requested.
func TestServerOptions_Args(t *testing.T) {
	opts := ServerOptions{
		Port:             8504,
		Headless:         true,
		AutoReload:       true,
		DisableTelemetry: true,
	}

	assert.Equal(t, []string{
		"--server.port", "8504",
		"--server.headless", "true",
		"--server.runOnSave", "true",
		"--server.enableCORS", "false",
		"--server.enableXsrfProtection", "false",
		"--browser.gatherUsageStats", "false",
	}, opts.Args())

	noOptOut := ServerOptions{Port: 8501}
	assert.NotContains(t, noOptOut.Args(), "--browser.gatherUsageStats")
}

// TestCLIError covers message formatting and unwrapping.
func TestCLIError(t *testing.T) {
	underlying := errors.New("no such file")
	err := WrapCLIError(ExitGeneralError, "entry file missing", underlying)

	require.EqualError(t, err, "entry file missing: no such file")
	assert.Equal(t, ExitGeneralError, err.Code)
	assert.ErrorIs(t, err, underlying)

	bare := NewCLIError(ExitGeneralError, "interpreter missing")
	assert.EqualError(t, bare, "interpreter missing")
	assert.Nil(t, bare.Unwrap())
}
