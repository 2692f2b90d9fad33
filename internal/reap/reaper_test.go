package reap

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSignaller is an in-memory process table. Processes marked stubborn
// ignore the graceful signal and die only from Kill, mimicking a target
// that traps SIGTERM.
type fakeSignaller struct {
	mu       sync.Mutex
	alive    map[int]bool
	stubborn map[int]bool

	termSent map[int]int
	killSent map[int]int
	patterns []string
}

func newFakeSignaller(pids ...int) *fakeSignaller {
	f := &fakeSignaller{
		alive:    make(map[int]bool),
		stubborn: make(map[int]bool),
		termSent: make(map[int]int),
		killSent: make(map[int]int),
	}
	for _, pid := range pids {
		f.alive[pid] = true
	}
	return f
}

func (f *fakeSignaller) Terminate(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.alive[pid] {
		return ErrProcessGone
	}
	f.termSent[pid]++
	if !f.stubborn[pid] {
		f.alive[pid] = false
	}
	return nil
}

func (f *fakeSignaller) Kill(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.alive[pid] {
		return ErrProcessGone
	}
	f.killSent[pid]++
	f.alive[pid] = false
	return nil
}

func (f *fakeSignaller) Alive(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive[pid]
}

func (f *fakeSignaller) KillPattern(pattern string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patterns = append(f.patterns, pattern)
	return nil
}

// newTestReaper uses short timings so escalation tests stay fast while
// still exercising the poll loop.
func newTestReaper(sig Signaller) *Reaper {
	return NewWithSignaller(sig, 100*time.Millisecond, 10*time.Millisecond)
}

// TestTerminate_Graceful covers the cooperative case: the occupant exits on
// the graceful signal within the grace period, so no escalation happens.
func TestTerminate_Graceful(t *testing.T) {
	sig := newFakeSignaller(4200)
	r := newTestReaper(sig)

	outcome := r.Terminate(4200)

	assert.True(t, outcome.Succeeded)
	assert.False(t, outcome.Escalated, "cooperative target must not be escalated")
	assert.Equal(t, 1, sig.termSent[4200])
	assert.Zero(t, sig.killSent[4200])
}

// TestTerminate_Escalation covers a target that ignores the graceful
// signal: after the grace period the forceful kill is sent and the outcome
// flags the escalation.
func TestTerminate_Escalation(t *testing.T) {
	sig := newFakeSignaller(4300)
	sig.stubborn[4300] = true
	r := newTestReaper(sig)

	outcome := r.Terminate(4300)

	assert.True(t, outcome.Succeeded)
	assert.True(t, outcome.Escalated)
	assert.Equal(t, 1, sig.termSent[4300])
	assert.Equal(t, 1, sig.killSent[4300])
	assert.False(t, sig.Alive(4300), "target must be gone after escalation")
}

// TestTerminate_AlreadyExited verifies that "no such process" is success,
// not an error: the goal (port free) is already met.
func TestTerminate_AlreadyExited(t *testing.T) {
	sig := newFakeSignaller() // empty process table
	r := newTestReaper(sig)

	outcome := r.Terminate(9999)

	assert.True(t, outcome.Succeeded)
	assert.False(t, outcome.Escalated)
	assert.Zero(t, sig.termSent[9999], "no signal should be recorded for a gone process")
}

// TestTerminate_Idempotent verifies calling Terminate twice on the same
// PID: the second call observes the process gone and is a clean no-op.
func TestTerminate_Idempotent(t *testing.T) {
	sig := newFakeSignaller(4200)
	r := newTestReaper(sig)

	first := r.Terminate(4200)
	second := r.Terminate(4200)

	require.True(t, first.Succeeded)
	assert.True(t, second.Succeeded, "second terminate must succeed")
	assert.False(t, second.Escalated)
	assert.Equal(t, 1, sig.termSent[4200], "second call must not signal again")
	assert.Zero(t, sig.killSent[4200])
}

// TestTerminateAll reports escalation if any target needed it.
func TestTerminateAll(t *testing.T) {
	sig := newFakeSignaller(100, 200, 300)
	sig.stubborn[200] = true
	r := newTestReaper(sig)

	escalated := r.TerminateAll([]int{100, 200, 300, 400})

	assert.True(t, escalated)
	for _, pid := range []int{100, 200, 300} {
		assert.False(t, sig.Alive(pid), "pid %d should be gone", pid)
	}
}

// TestKillPattern records the best-effort broad kill.
func TestKillPattern(t *testing.T) {
	sig := newFakeSignaller()
	r := newTestReaper(sig)

	r.KillPattern("streamlit run")

	assert.Equal(t, []string{"streamlit run"}, sig.patterns)
}
