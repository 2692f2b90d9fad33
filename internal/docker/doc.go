// Package docker provides best-effort teardown of containers holding the
// launcher's candidate ports.
//
// A stale served-process instance is not always a bare OS process: during
// container-based development the previous run may live inside a container
// whose published host port blocks the launcher. PID-based reaping cannot
// reach those (the visible occupant is the Docker proxy), so this package
// finds containers by published port and stops them through the Engine API.
//
// Everything here follows the same fail-open policy as the tool backends:
// no reachable daemon means the reconciler silently deactivates.
package docker
