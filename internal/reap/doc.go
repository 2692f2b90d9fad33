// Package reap terminates processes with the conventional two-step protocol:
// a graceful signal first, then a forceful kill if the target is still alive
// after a bounded grace period.
//
// Every operation here is best-effort and idempotent. The goal is "the port
// becomes free", not "the kill succeeded": a target that already exited is a
// success, a signal that cannot be delivered is logged and swallowed, and
// calling Terminate twice on the same PID is a no-op the second time.
package reap
