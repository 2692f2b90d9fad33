package probe

import (
	"os/exec"
	"strings"
)

// Runner abstracts execution of diagnostic commands so that backend output
// parsing can be tested against canned tool output without shelling out.
type Runner interface {
	// Output runs the named command and returns its stdout. A non-zero exit
	// with empty output is NOT an error: tools like lsof and grep-style
	// filters exit 1 to mean "no matches", which callers must distinguish
	// from tool failure.
	Output(name string, args ...string) (string, error)

	// Succeeds runs the named command and reports whether it exited zero.
	// Used for tools whose answer is their exit status (nc -z).
	Succeeds(name string, args ...string) bool

	// LookPath reports whether the named binary is present on PATH.
	LookPath(name string) bool
}

// execRunner is the production Runner backed by os/exec.
type execRunner struct{}

func (execRunner) Output(name string, args ...string) (string, error) {
	out, err := exec.Command(name, args...).Output()
	if err != nil {
		// Exit status 1 with no output is the "no matches" convention.
		if _, ok := err.(*exec.ExitError); ok && len(strings.TrimSpace(string(out))) == 0 {
			return "", nil
		}
		return "", err
	}
	return string(out), nil
}

func (execRunner) Succeeds(name string, args ...string) bool {
	return exec.Command(name, args...).Run() == nil
}

func (execRunner) LookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
