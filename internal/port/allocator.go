package port

import (
	"github.com/rs/zerolog"

	"github.com/mmr-tortoise/berth/internal/logging"
)

// maxPort is the highest valid TCP port number (2^16 - 1).
const maxPort = 65535

// AvailabilityChecker answers whether a port currently appears free.
// The probe.Prober satisfies this; tests substitute a fixed occupancy map.
type AvailabilityChecker interface {
	IsAvailable(port int) bool
}

// Allocator selects a free port by scanning a bounded range.
// It is side-effect-free apart from the read-only probes it issues.
type Allocator struct {
	checker AvailabilityChecker
	log     zerolog.Logger
}

// NewAllocator creates an Allocator over the given availability checker.
// The checker must not be nil.
func NewAllocator(checker AvailabilityChecker) *Allocator {
	return &Allocator{
		checker: checker,
		log:     logging.Component("allocator"),
	}
}

// Allocate scans basePort, basePort+1, …, basePort+maxAttempts-1 in order
// and returns the first available port with exhausted=false.
//
// If every candidate is occupied, Allocate returns basePort itself with
// exhausted=true. Returning a known-busy port is deliberate, preserved
// launcher behavior: the caller decides whether to proceed on the fallback,
// and must not mistake it for a genuine selection.
//
// The availability answer is point-in-time only. Another process may bind
// the returned port before the caller does; that race is accepted.
func (a *Allocator) Allocate(basePort, maxAttempts int) (port int, exhausted bool) {
	for i := 0; i < maxAttempts; i++ {
		candidate := basePort + i
		if candidate > maxPort {
			break
		}
		if a.checker.IsAvailable(candidate) {
			a.log.Debug().Int("port", candidate).Msg("port available")
			return candidate, false
		}
		a.log.Debug().Int("port", candidate).Msg("port busy")
	}

	a.log.Warn().Int("fallback", basePort).Int("attempts", maxAttempts).
		Msg("no free port in range, falling back to base port")
	return basePort, true
}
