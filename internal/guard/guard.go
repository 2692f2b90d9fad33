// Package guard registers the launcher's exit cleanup and guarantees it
// runs exactly one full pass no matter how many exit triggers fire.
//
// Triggers are: normal child exit, SIGINT, and SIGTERM. A trigger can
// arrive while another is already cleaning up (an interrupt during normal
// exit), so the pass is gated by sync.Once and the pass body itself is
// idempotent: reaping an already-exited PID is a no-op.
package guard

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/mmr-tortoise/berth/internal/logging"
)

// cleanupTimeout bounds the container-stop portion of the pass so that a
// hung Docker daemon cannot stall process exit indefinitely.
const cleanupTimeout = 30 * time.Second

// PortProber discovers the occupants of the tracked port at cleanup time.
// Occupancy is re-observed immediately before acting; anything recorded
// earlier may be stale.
type PortProber interface {
	Occupants(port int) []int
}

// Terminator reaps processes. Both methods are best-effort and must not
// panic; the guard relies on them being safe to repeat.
type Terminator interface {
	TerminateAll(pids []int) (escalated bool)
	KillPattern(pattern string)
}

// ContainerStopper stops containers publishing the tracked port.
// May be inactive, in which case StopByPort is a no-op.
type ContainerStopper interface {
	Active() bool
	StopByPort(ctx context.Context, port int) int
}

// Guard holds the armed cleanup state for one launcher invocation.
type Guard struct {
	port     int
	patterns []string

	prober     PortProber
	reaper     Terminator
	containers ContainerStopper

	once  sync.Once
	sigCh chan os.Signal

	// interrupted is closed when a termination signal arrives, letting the
	// launcher distinguish signal-driven shutdown from child exit.
	interrupted chan struct{}
	intOnce     sync.Once

	log zerolog.Logger
}

// New creates a Guard for the given port and process-name patterns.
// containers may be nil when container reconciliation is disabled.
func New(port int, patterns []string, prober PortProber, reaper Terminator, containers ContainerStopper) *Guard {
	return &Guard{
		port:        port,
		patterns:    patterns,
		prober:      prober,
		reaper:      reaper,
		containers:  containers,
		interrupted: make(chan struct{}),
		log:         logging.Component("guard"),
	}
}

// Arm installs the signal handler. From this point an interrupt or
// terminate signal short-circuits directly into the cleanup pass.
// Arm must be called before the served process is spawned so that no
// window exists where a signal could leave the child orphaned.
func (g *Guard) Arm() {
	g.sigCh = make(chan os.Signal, 1)
	signal.Notify(g.sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig, ok := <-g.sigCh
		if !ok {
			return
		}
		g.log.Info().Str("signal", sig.String()).Msg("termination signal received")
		g.intOnce.Do(func() { close(g.interrupted) })
		g.Run()
	}()
}

// Interrupted returns a channel closed when a termination signal arrives.
func (g *Guard) Interrupted() <-chan struct{} {
	return g.interrupted
}

// Run executes the cleanup pass. Safe to call from any number of triggers
// concurrently; exactly one full pass executes, the rest return once it is
// underway. Cleanup never panics and never propagates errors; a failed
// kill must not abort the exit path.
func (g *Guard) Run() {
	g.once.Do(g.cleanup)
}

// Disarm stops signal delivery to the guard. Called after the final
// cleanup pass, when the launcher is propagating its exit code and default
// signal disposition should take over again.
func (g *Guard) Disarm() {
	if g.sigCh != nil {
		signal.Stop(g.sigCh)
		close(g.sigCh)
	}
}

// cleanup is the single reclamation pass:
//
//  1. Reap every PID currently observed on the tracked port.
//  2. Best-effort kill of the known served-process name patterns, covering
//     children not bound to the port (e.g. a supervisor wrapper).
//  3. Stop containers publishing the port, when a daemon is reachable.
func (g *Guard) cleanup() {
	defer func() {
		// The exit path must survive anything cleanup does.
		if r := recover(); r != nil {
			g.log.Error().Interface("panic", r).Msg("cleanup panicked")
		}
	}()

	g.log.Debug().Int("port", g.port).Msg("cleanup pass starting")

	if pids := g.prober.Occupants(g.port); len(pids) > 0 {
		if escalated := g.reaper.TerminateAll(pids); escalated {
			g.log.Debug().Ints("pids", pids).Msg("cleanup required escalation")
		}
	}

	for _, pattern := range g.patterns {
		g.reaper.KillPattern(pattern)
	}

	if g.containers != nil && g.containers.Active() {
		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		g.containers.StopByPort(ctx, g.port)
	}

	g.log.Debug().Int("port", g.port).Msg("cleanup pass finished")
}
