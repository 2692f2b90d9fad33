// Package launch orchestrates the full launcher lifecycle:
//
//	Idle → Cleaning → Allocating → Starting → Running → ShuttingDown → Terminated
//
// Preflight failures (missing interpreter, missing entry file) abort while
// still Idle with a non-zero exit. Everything after that is best-effort:
// probe and termination failures never stop the launch, and the armed
// guard guarantees exactly one cleanup pass on every exit path.
package launch
