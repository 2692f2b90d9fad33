//go:build windows

package reap

import (
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// windowsSignaller approximates the Unix two-step protocol with taskkill.
// Windows has no SIGTERM equivalent that arbitrary console processes
// handle reliably, so the graceful step is taskkill without /F and the
// forceful step adds /F.
type windowsSignaller struct{}

func newPlatformSignaller() Signaller {
	return windowsSignaller{}
}

func (s windowsSignaller) Terminate(pid int) error {
	if !s.Alive(pid) {
		return ErrProcessGone
	}
	return exec.Command("taskkill", "/PID", strconv.Itoa(pid)).Run()
}

func (s windowsSignaller) Kill(pid int) error {
	if !s.Alive(pid) {
		return ErrProcessGone
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return ErrProcessGone
	}
	return proc.Kill()
}

// Alive checks tasklist output for the PID. Best-effort: if tasklist
// itself fails, the process is assumed gone.
func (windowsSignaller) Alive(pid int) bool {
	out, err := exec.Command("tasklist", "/FI", "PID eq "+strconv.Itoa(pid), "/NH").Output()
	if err != nil {
		return false
	}
	return strings.Contains(string(out), strconv.Itoa(pid))
}

// KillPattern force-kills by image name filter. Command-line matching is
// not available through taskkill, so this is a coarser net than pkill -f.
func (windowsSignaller) KillPattern(pattern string) error {
	return exec.Command("taskkill", "/F", "/FI", "IMAGENAME eq "+pattern+"*").Run()
}
