// Package probe answers "which process owns port P" using whichever OS
// introspection tool is present on the machine.
//
// No single tool can be assumed to exist across environments, so the prober
// holds an ordered chain of backends (lsof, ss, netstat) and a cheaper
// listener-check chain (ss, netstat, nc). Tool presence is probed once at
// construction and cached; the prober never re-checks PATH per call.
//
// Two fall-through rules matter:
//   - A backend that reports no occupants does NOT prove the port is free;
//     the prober falls through to the next backend (an empty result is not
//     the same as tool absence).
//   - If no tool exists at all, the prober fails open: Occupants returns
//     the empty set and IsAvailable returns true. This is a documented weak
//     guarantee that trades correctness for forward progress.
package probe
