package probe

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mmr-tortoise/berth/internal/logging"
	"github.com/mmr-tortoise/berth/internal/model"
)

// Prober answers port occupancy questions over an ordered chain of tool
// backends. Two different orderings are used, matching what each question
// needs:
//
//   - Occupant discovery prefers lsof > ss > netstat, because lsof gives
//     PIDs directly while the others need line parsing.
//   - The plain availability check prefers ss > netstat > nc, because it
//     only needs a listener yes/no and ss is the cheapest to ask.
//
// Tool presence is probed once here and cached for the life of the Prober.
type Prober struct {
	runner Runner

	// occupantChain is the ordered backend list for Occupants.
	occupantChain []Backend

	// Cached PATH presence for the availability-check chain.
	hasSS      bool
	hasNetstat bool
	hasNC      bool

	log zerolog.Logger
}

// NewProber constructs a Prober that shells out to the real tools.
func NewProber() *Prober {
	return NewProberWithRunner(execRunner{})
}

// NewProberWithRunner constructs a Prober over a custom Runner.
// Tests use this to substitute canned tool output.
func NewProberWithRunner(r Runner) *Prober {
	return &Prober{
		runner: r,
		occupantChain: []Backend{
			&lsofBackend{runner: r, present: r.LookPath("lsof")},
			&ssBackend{runner: r, present: r.LookPath("ss")},
			&netstatBackend{runner: r, present: r.LookPath("netstat")},
		},
		hasSS:      r.LookPath("ss"),
		hasNetstat: r.LookPath("netstat"),
		hasNC:      r.LookPath("nc"),
		log:        logging.Component("probe"),
	}
}

// Backends returns the occupant-discovery chain, in priority order.
// Exposed for the `berth ports` command's capability report.
func (p *Prober) Backends() []Backend {
	return p.occupantChain
}

// Occupants returns the set of PIDs observed listening on the port.
//
// Backends are tried in priority order. A backend that errors or reports
// no occupants falls through to the next one; only a non-empty answer is
// conclusive. With no backend available (or none reporting an occupant),
// the empty set is returned: the caller proceeds as if the port were free,
// which is the documented fail-open policy.
func (p *Prober) Occupants(port int) []int {
	for _, b := range p.occupantChain {
		if !b.Available() {
			continue
		}
		pids, err := b.Occupants(port)
		if err != nil {
			p.log.Debug().Str("backend", b.Name()).Int("port", port).
				Err(err).Msg("backend probe failed, falling through")
			continue
		}
		if len(pids) > 0 {
			p.log.Debug().Str("backend", b.Name()).Int("port", port).
				Ints("pids", pids).Msg("occupants found")
			return pids
		}
	}
	return nil
}

// Snapshot returns a point-in-time occupancy record for the port.
func (p *Prober) Snapshot(port int) model.PortCandidate {
	return model.PortCandidate{Port: port, OccupantPIDs: p.Occupants(port)}
}

// IsAvailable reports whether the port appears free. It is cheaper than
// Occupants (it only needs a listener yes/no, not PIDs) and uses its own
// tool ordering: ss, then netstat, then nc. The first present tool's answer
// wins. If no tool is present, the port is assumed available (fail-open).
func (p *Prober) IsAvailable(port int) bool {
	if p.hasSS {
		return !p.ssListening(port)
	}
	if p.hasNetstat {
		return !p.netstatListening(port)
	}
	if p.hasNC {
		return !p.ncListening(port)
	}
	p.log.Debug().Int("port", port).
		Msg("no availability tool present, assuming free")
	return true
}

// ssListening checks `ss -tln` output for a listener on the port.
func (p *Prober) ssListening(port int) bool {
	out, err := p.runner.Output("ss", "-tln")
	if err != nil {
		return false
	}
	return outputListensOn(out, port)
}

// netstatListening checks `netstat -tln` output for a listener on the port.
func (p *Prober) netstatListening(port int) bool {
	out, err := p.runner.Output("netstat", "-tln")
	if err != nil {
		return false
	}
	return outputListensOn(out, port)
}

// ncListening asks `nc -z localhost <port>` to attempt a connection.
// A zero exit means something accepted, i.e. the port is in use.
func (p *Prober) ncListening(port int) bool {
	return p.runner.Succeeds("nc", "-z", "localhost", strconv.Itoa(port))
}

// outputListensOn scans whole tool output for a line bound to the port.
func outputListensOn(out string, port int) bool {
	for _, line := range strings.Split(out, "\n") {
		if lineListensOn(line, port) {
			return true
		}
	}
	return false
}
