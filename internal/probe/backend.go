package probe

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Backend is one concrete OS-introspection tool capable of answering
// "which processes listen on port P". Availability reflects the result of
// a one-time PATH probe performed at prober construction.
type Backend interface {
	// Name returns the tool name, e.g. "lsof".
	Name() string

	// Available reports whether the tool binary was found on PATH.
	Available() bool

	// Occupants returns the PIDs observed listening on the port. An empty
	// result means the tool saw no occupant; callers must not conclude
	// from it alone that the port is free.
	Occupants(port int) ([]int, error)
}

// lsofBackend extracts occupant PIDs via `lsof -ti:<port>`, which prints
// one bare PID per line (-t terse mode).
type lsofBackend struct {
	runner  Runner
	present bool
}

func (b *lsofBackend) Name() string    { return "lsof" }
func (b *lsofBackend) Available() bool { return b.present }

func (b *lsofBackend) Occupants(port int) ([]int, error) {
	out, err := b.runner.Output("lsof", fmt.Sprintf("-ti:%d", port))
	if err != nil {
		return nil, fmt.Errorf("lsof probe failed: %w", err)
	}
	return parseLsofPIDs(out), nil
}

// parseLsofPIDs parses terse lsof output: one PID per line.
// Non-numeric lines are skipped rather than treated as errors, since lsof
// may emit warnings on some systems.
func parseLsofPIDs(out string) []int {
	var pids []int
	for _, line := range strings.Split(out, "\n") {
		pid, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || pid <= 0 {
			continue
		}
		pids = append(pids, pid)
	}
	return dedupePIDs(pids)
}

// ssPIDPattern matches the pid=<digits> fragment inside the process column
// of `ss -tlnp` output, e.g. users:(("streamlit",pid=4200,fd=6)).
var ssPIDPattern = regexp.MustCompile(`pid=(\d+)`)

// ssBackend extracts occupant PIDs from `ss -tlnp` listener lines.
type ssBackend struct {
	runner  Runner
	present bool
}

func (b *ssBackend) Name() string    { return "ss" }
func (b *ssBackend) Available() bool { return b.present }

func (b *ssBackend) Occupants(port int) ([]int, error) {
	out, err := b.runner.Output("ss", "-tlnp")
	if err != nil {
		return nil, fmt.Errorf("ss probe failed: %w", err)
	}
	return parseSSPIDs(out, port), nil
}

// parseSSPIDs scans ss -tlnp output for lines whose local address column
// ends in the target port, then regex-extracts every pid=<digits> fragment
// from those lines.
func parseSSPIDs(out string, port int) []int {
	var pids []int
	for _, line := range strings.Split(out, "\n") {
		if !lineListensOn(line, port) {
			continue
		}
		for _, m := range ssPIDPattern.FindAllStringSubmatch(line, -1) {
			if pid, err := strconv.Atoi(m[1]); err == nil && pid > 0 {
				pids = append(pids, pid)
			}
		}
	}
	return dedupePIDs(pids)
}

// netstatBackend extracts occupant PIDs from `netstat -tlnp` listener lines.
type netstatBackend struct {
	runner  Runner
	present bool
}

func (b *netstatBackend) Name() string    { return "netstat" }
func (b *netstatBackend) Available() bool { return b.present }

func (b *netstatBackend) Occupants(port int) ([]int, error) {
	out, err := b.runner.Output("netstat", "-tlnp")
	if err != nil {
		return nil, fmt.Errorf("netstat probe failed: %w", err)
	}
	return parseNetstatPIDs(out, port), nil
}

// netstatPIDField matches netstat's PID/Program column, e.g. "4400/python3".
var netstatPIDField = regexp.MustCompile(`^(\d+)/`)

// parseNetstatPIDs scans netstat -tlnp output for listener lines on the
// target port. The line is split on whitespace, the PID/Program field is
// located by its <digits>/<name> shape, and the leading digits are kept.
// Lines where netstat prints "-" (no permission to see the owner) yield
// no PID and are skipped.
func parseNetstatPIDs(out string, port int) []int {
	var pids []int
	for _, line := range strings.Split(out, "\n") {
		if !lineListensOn(line, port) {
			continue
		}
		for _, field := range strings.Fields(line) {
			m := netstatPIDField.FindStringSubmatch(field)
			if m == nil {
				continue
			}
			if pid, err := strconv.Atoi(m[1]); err == nil && pid > 0 {
				pids = append(pids, pid)
			}
		}
	}
	return dedupePIDs(pids)
}

// lineListensOn reports whether a tool output line contains a local-address
// field bound to the given port. It recognizes the usual address shapes:
// 0.0.0.0:8501, 127.0.0.1:8501, :::8501, [::]:8501, *:8501.
func lineListensOn(line string, port int) bool {
	suffix := ":" + strconv.Itoa(port)
	for _, field := range strings.Fields(line) {
		if strings.HasSuffix(field, suffix) {
			return true
		}
	}
	return false
}

// dedupePIDs removes duplicates and returns the PIDs in ascending order,
// giving Occupants set semantics with deterministic output.
func dedupePIDs(pids []int) []int {
	if len(pids) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(pids))
	var uniq []int
	for _, pid := range pids {
		if _, dup := seen[pid]; dup {
			continue
		}
		seen[pid] = struct{}{}
		uniq = append(uniq, pid)
	}
	sort.Ints(uniq)
	return uniq
}
