package launch

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/mmr-tortoise/berth/internal/config"
	"github.com/mmr-tortoise/berth/internal/docker"
	"github.com/mmr-tortoise/berth/internal/guard"
	"github.com/mmr-tortoise/berth/internal/logging"
	"github.com/mmr-tortoise/berth/internal/model"
	"github.com/mmr-tortoise/berth/internal/port"
	"github.com/mmr-tortoise/berth/internal/probe"
	"github.com/mmr-tortoise/berth/internal/reap"
)

// settleDelay is the pause between the cleanup sweep and port allocation,
// giving the OS time to release sockets held by the reaped processes.
// A freshly killed listener can linger in the port table briefly.
const settleDelay = 2 * time.Second

// Launcher drives one launch of the served process. There is exactly one
// Launcher per invocation; it is created Idle and ends Terminated.
type Launcher struct {
	cfg config.Config

	prober    *probe.Prober
	reaper    *reap.Reaper
	allocator *port.Allocator

	phase model.LaunchPhase
	log   zerolog.Logger
}

// New creates an Idle Launcher for the given configuration.
func New(cfg config.Config) *Launcher {
	prober := probe.NewProber()
	return &Launcher{
		cfg:       cfg,
		prober:    prober,
		reaper:    reap.New(),
		allocator: port.NewAllocator(prober),
		phase:     model.PhaseIdle,
		log:       logging.Component("launcher"),
	}
}

// Phase returns the current lifecycle phase.
func (l *Launcher) Phase() model.LaunchPhase {
	return l.phase
}

// transition advances the phase, enforcing the legal transition graph.
// An illegal transition is a programming error; it is logged loudly and
// applied anyway rather than crashing mid-launch.
func (l *Launcher) transition(next model.LaunchPhase) {
	if !l.phase.CanTransitionTo(next) {
		l.log.Error().Stringer("from", l.phase).Stringer("to", next).
			Msg("illegal phase transition")
	}
	l.log.Debug().Stringer("from", l.phase).Stringer("to", next).Msg("phase change")
	l.phase = next
}

// Run executes the launch end to end and returns the error to translate
// into the process exit code. Nil means graceful shutdown (exit 0).
func (l *Launcher) Run(ctx context.Context) error {
	interpreter, err := l.preflight()
	if err != nil {
		return err
	}

	// Cleaning: proactively clear stale instances from prior runs off the
	// whole candidate list, regardless of which port ends up being used.
	l.transition(model.PhaseCleaning)

	var reconciler *docker.Reconciler
	if l.cfg.Docker {
		reconciler = docker.NewReconciler(ctx)
		defer reconciler.Close()
	}
	l.sweep(ctx, reconciler)

	select {
	case <-time.After(settleDelay):
	case <-ctx.Done():
		return nil
	}

	// Allocating: pick the first free port in range. Exhaustion falls back
	// to the base port; the launch proceeds anyway with a visible warning,
	// preserving the historical behavior.
	l.transition(model.PhaseAllocating)
	chosen, exhausted := l.allocator.Allocate(l.cfg.BasePort, l.cfg.MaxAttempts)
	if exhausted {
		l.log.Warn().Int("port", chosen).
			Msg("all candidate ports busy; proceeding on fallback port")
	} else {
		l.log.Info().Int("port", chosen).Msg("port allocated")
	}

	// Starting: arm the guard before spawning so no signal window exists
	// where the child could be orphaned.
	l.transition(model.PhaseStarting)
	g := guard.New(chosen, l.cfg.EffectivePatterns(), l.prober, l.reaper, reconciler)
	g.Arm()

	runErr := l.runChild(ctx, g, interpreter, chosen)

	l.transition(model.PhaseShuttingDown)
	g.Run()
	g.Disarm()
	l.transition(model.PhaseTerminated)

	return runErr
}

// preflight verifies the fatal preconditions while still Idle: the
// interpreter must be on PATH and the entry file must exist. It returns
// the resolved interpreter name.
func (l *Launcher) preflight() (string, error) {
	interpreter := l.cfg.Interpreter
	if _, err := exec.LookPath(interpreter); err != nil {
		// python3 installs sometimes expose only "python"; accept it
		// before declaring the interpreter missing.
		if interpreter == "python3" {
			if _, err2 := exec.LookPath("python"); err2 == nil {
				l.log.Debug().Msg("python3 not found, using python")
				return "python", nil
			}
		}
		return "", model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("interpreter %q not found on PATH; install it or set \"interpreter\" in the config", interpreter),
			err)
	}

	if _, err := os.Stat(l.cfg.AppFile); err != nil {
		wd, _ := os.Getwd()
		return "", model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("entry file %q not found in %s", l.cfg.AppFile, wd),
			err)
	}

	return interpreter, nil
}

// sweep reaps the occupants of every candidate port and applies the broad
// pattern kill, clearing stale served-process instances from prior runs.
// All failures here are non-fatal. It returns the pre-reap occupancy
// snapshots of the ports that had occupants.
func (l *Launcher) sweep(ctx context.Context, reconciler *docker.Reconciler) []model.PortCandidate {
	var reaped []model.PortCandidate
	for _, p := range l.cfg.SweepPorts {
		candidate := l.prober.Snapshot(p)
		if candidate.Occupied() {
			l.log.Info().Stringer("port", candidate).Msg("reaping stale occupant")
			l.reaper.TerminateAll(candidate.OccupantPIDs)
			reaped = append(reaped, candidate)
		}
		if reconciler.Active() {
			reconciler.StopByPort(ctx, p)
		}
	}
	for _, pattern := range l.cfg.EffectivePatterns() {
		l.reaper.KillPattern(pattern)
	}
	return reaped
}

// Clean runs the stale-instance sweep on its own, without launching
// anything. Used by the `clean` subcommand. It returns the occupancy
// snapshots (taken before reaping) of the candidate ports that were held.
func (l *Launcher) Clean(ctx context.Context) []model.PortCandidate {
	l.transition(model.PhaseCleaning)

	var reconciler *docker.Reconciler
	if l.cfg.Docker {
		reconciler = docker.NewReconciler(ctx)
		defer reconciler.Close()
	}
	return l.sweep(ctx, reconciler)
}

// runChild spawns the served process and blocks until it exits or a
// termination signal arrives. With Watch enabled, an entry-file change
// restarts the child and the loop continues.
func (l *Launcher) runChild(ctx context.Context, g *guard.Guard, interpreter string, chosen int) error {
	logFile, err := os.OpenFile(l.cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("cannot open log file %q", l.cfg.LogFile), err)
	}
	defer logFile.Close()

	var watcher *entryWatcher
	if l.cfg.Watch {
		watcher, err = newEntryWatcher(l.cfg.AppFile, l.log)
		if err != nil {
			// Watching is a convenience; launch without it.
			l.log.Warn().Err(err).Msg("file watch unavailable, continuing without restart-on-change")
		} else {
			defer watcher.Close()
		}
	}

	for {
		cmd, err := l.spawn(interpreter, chosen, logFile)
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError,
				"failed to start the served process", err)
		}
		l.transition(model.PhaseRunning)
		l.log.Info().Int("pid", cmd.Process.Pid).Int("port", chosen).
			Str("url", fmt.Sprintf("http://localhost:%d", chosen)).
			Msg("serving")

		waitCh := make(chan error, 1)
		go func() { waitCh <- cmd.Wait() }()

		restart := false
		select {
		case waitErr := <-waitCh:
			if waitErr != nil {
				l.log.Info().Err(waitErr).Msg("served process exited")
			} else {
				l.log.Info().Msg("served process exited")
			}

		case <-g.Interrupted():
			// The guard's cleanup pass is reaping the child; wait for the
			// process table entry to be collected before returning.
			<-waitCh

		case <-ctx.Done():
			l.reaper.Terminate(cmd.Process.Pid)
			<-waitCh

		case <-watcher.changed():
			l.log.Info().Str("file", l.cfg.AppFile).Msg("entry file changed, restarting")
			l.reaper.Terminate(cmd.Process.Pid)
			<-waitCh
			restart = true
		}

		if !restart {
			return nil
		}
		// Rewind to Starting so the respawn's Running transition is legal.
		// The guard stays armed on the same port across the restart.
		l.phase = model.PhaseStarting
	}
}

// spawn builds and starts the served-process command. Child output goes to
// both the launcher's stdout and the fixed-name log file.
func (l *Launcher) spawn(interpreter string, chosen int, logFile *os.File) (*exec.Cmd, error) {
	opts := model.ServerOptions{
		Port:                 chosen,
		Headless:             l.cfg.Headless,
		AutoReload:           l.cfg.AutoReload,
		EnableCORS:           l.cfg.EnableCORS,
		EnableXSRFProtection: l.cfg.EnableXSRFProtection,
		DisableTelemetry:     l.cfg.DisableTelemetry,
	}

	args := append([]string{"-m", "streamlit", "run", l.cfg.AppFile}, opts.Args()...)
	cmd := exec.Command(interpreter, args...)

	tee := io.MultiWriter(os.Stdout, logFile)
	cmd.Stdout = tee
	cmd.Stderr = tee
	cmd.Stdin = os.Stdin

	l.log.Debug().Strs("argv", cmd.Args).Msg("spawning served process")
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}
