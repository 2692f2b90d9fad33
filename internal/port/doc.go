// Package port implements free-port selection for the launcher.
//
// The allocator scans a bounded candidate range in ascending order and
// returns the first port whose availability check passes. The scan is
// deterministic: the same occupancy state always yields the same port,
// which keeps launch behavior reproducible.
//
// When the whole range is occupied the allocator falls back to the base
// port itself and reports exhaustion through a flag. The fallback port is
// plausibly busy; callers must treat it as advisory, not as a guarantee
// of availability.
package port
