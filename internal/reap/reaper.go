package reap

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/mmr-tortoise/berth/internal/logging"
	"github.com/mmr-tortoise/berth/internal/model"
)

// ErrProcessGone is returned by Signaller implementations when the target
// process does not exist. The Reaper treats it as immediate success.
var ErrProcessGone = errors.New("process does not exist")

const (
	// defaultGrace is how long a target gets to exit after the graceful
	// signal before the forceful kill is sent.
	defaultGrace = 1 * time.Second

	// defaultPoll is the liveness re-check interval within the grace
	// period. The grace wait is a poll loop with a deadline rather than a
	// single fixed sleep, so a cooperative target is detected early; the
	// upper bound is still defaultGrace.
	defaultPoll = 50 * time.Millisecond

	// killConfirmWait bounds the post-kill liveness confirmation. The
	// forceful signal is not interceptable, so the target should vanish
	// almost immediately; this only covers kernel teardown latency.
	killConfirmWait = 250 * time.Millisecond
)

// Signaller abstracts OS process signalling. The production implementation
// is platform-specific (see signal_unix.go / signal_windows.go); tests
// substitute a fake process table.
type Signaller interface {
	// Terminate sends the graceful-termination signal.
	// Must return ErrProcessGone if the target does not exist.
	Terminate(pid int) error

	// Kill sends the forceful, non-interceptable kill signal.
	// Must return ErrProcessGone if the target does not exist.
	Kill(pid int) error

	// Alive reports whether the process exists. A process that exists but
	// cannot be signalled (permission denied) counts as alive.
	Alive(pid int) bool

	// KillPattern force-kills every process whose command line matches the
	// pattern. Best-effort; a pattern with no matches is not an error.
	KillPattern(pattern string) error
}

// Reaper terminates processes with TERM → bounded wait → KILL escalation.
type Reaper struct {
	sig   Signaller
	grace time.Duration
	poll  time.Duration
	log   zerolog.Logger
}

// New creates a Reaper using the platform signaller and default timing.
func New() *Reaper {
	return NewWithSignaller(newPlatformSignaller(), defaultGrace, defaultPoll)
}

// NewWithSignaller creates a Reaper with explicit signaller and timing.
// Tests use this to avoid real signals and real clock-length waits.
func NewWithSignaller(sig Signaller, grace, poll time.Duration) *Reaper {
	return &Reaper{
		sig:   sig,
		grace: grace,
		poll:  poll,
		log:   logging.Component("reaper"),
	}
}

// Terminate reaps a single process:
//
//  1. Send the graceful signal. "No such process" is immediate success:
//     the target already exited, which is the outcome we wanted.
//  2. Poll liveness until the grace deadline.
//  3. If still alive, send the forceful kill and confirm.
//
// Terminate never returns an error. All delivery failures are swallowed
// because the caller proceeds regardless; the outcome records whether the
// target is gone and whether escalation was needed.
func (r *Reaper) Terminate(pid int) model.TerminationOutcome {
	err := r.sig.Terminate(pid)
	if err == ErrProcessGone {
		r.log.Debug().Int("pid", pid).Msg("already exited")
		return model.TerminationOutcome{Succeeded: true}
	}
	if err != nil {
		// Delivery failed (typically permission denied). The target may
		// still exit on its own; fall through to the liveness wait.
		r.log.Debug().Int("pid", pid).Err(err).Msg("graceful signal not delivered")
	}

	if r.waitGone(pid, r.grace) {
		r.log.Debug().Int("pid", pid).Msg("exited within grace period")
		return model.TerminationOutcome{Succeeded: true}
	}

	// Grace period expired. Escalate.
	r.log.Info().Int("pid", pid).Msg("survived graceful signal, escalating")
	if err := r.sig.Kill(pid); err != nil && err != ErrProcessGone {
		r.log.Warn().Int("pid", pid).Err(err).Msg("forceful kill not delivered")
	}

	gone := r.waitGone(pid, killConfirmWait)
	if !gone {
		r.log.Warn().Int("pid", pid).Msg("still alive after forceful kill")
	}
	return model.TerminationOutcome{Succeeded: gone, Escalated: true}
}

// TerminateAll reaps every PID in the list and reports whether any attempt
// required escalation. Used by the launcher's sweep and the exit guard.
func (r *Reaper) TerminateAll(pids []int) (escalated bool) {
	for _, pid := range pids {
		if r.Terminate(pid).Escalated {
			escalated = true
		}
	}
	return escalated
}

// KillPattern force-kills processes matching the command-line pattern.
// This covers children not bound to the tracked port, such as a supervisor
// wrapper around the served process. Failures are logged and ignored.
func (r *Reaper) KillPattern(pattern string) {
	if err := r.sig.KillPattern(pattern); err != nil {
		r.log.Debug().Str("pattern", pattern).Err(err).Msg("pattern kill failed")
	}
}

// waitGone polls liveness every r.poll until the process is gone or the
// deadline passes. Returns true if the process disappeared in time.
func (r *Reaper) waitGone(pid int, bound time.Duration) bool {
	deadline := time.Now().Add(bound)
	for {
		if !r.sig.Alive(pid) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(r.poll)
	}
}
