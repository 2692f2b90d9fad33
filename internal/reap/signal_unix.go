//go:build !windows

package reap

import (
	"errors"
	"os/exec"
	"syscall"
)

// unixSignaller delivers signals via syscall.Kill and discovers
// pattern-matched processes via pkill -f.
type unixSignaller struct{}

func newPlatformSignaller() Signaller {
	return unixSignaller{}
}

func (unixSignaller) Terminate(pid int) error {
	return mapKillErr(syscall.Kill(pid, syscall.SIGTERM))
}

func (unixSignaller) Kill(pid int) error {
	return mapKillErr(syscall.Kill(pid, syscall.SIGKILL))
}

// Alive probes existence with the zero signal. EPERM means the process
// exists but belongs to another user, which counts as alive.
func (unixSignaller) Alive(pid int) bool {
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}

// KillPattern shells out to pkill -f, matching against full command lines.
// pkill exits 1 when nothing matched, which is not a failure here.
func (unixSignaller) KillPattern(pattern string) error {
	err := exec.Command("pkill", "-f", pattern).Run()
	if err == nil {
		return nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
		return nil
	}
	return err
}

// mapKillErr converts ESRCH into the package sentinel so the Reaper can
// treat "no such process" as success.
func mapKillErr(err error) error {
	if errors.Is(err, syscall.ESRCH) {
		return ErrProcessGone
	}
	return err
}
