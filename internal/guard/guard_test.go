package guard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeProber returns a fixed occupant set for the tracked port.
type fakeProber struct {
	pids map[int][]int
}

func (f *fakeProber) Occupants(port int) []int {
	return f.pids[port]
}

// fakeTerminator counts reclamation work so tests can assert how many full
// passes ran.
type fakeTerminator struct {
	mu         sync.Mutex
	terminated [][]int
	patterns   []string
	panicOnce  bool
}

func (f *fakeTerminator) TerminateAll(pids []int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOnce {
		f.panicOnce = false
		panic("kill failed badly")
	}
	f.terminated = append(f.terminated, pids)
	return false
}

func (f *fakeTerminator) KillPattern(pattern string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patterns = append(f.patterns, pattern)
}

// fakeStopper records container stops.
type fakeStopper struct {
	calls atomic.Int32
}

func (f *fakeStopper) Active() bool { return true }

func (f *fakeStopper) StopByPort(ctx context.Context, port int) int {
	f.calls.Add(1)
	return 1
}

// TestRun_SinglePass verifies the cleanup content: port occupants reaped,
// every pattern killed, containers stopped.
func TestRun_SinglePass(t *testing.T) {
	prober := &fakeProber{pids: map[int][]int{8501: {4200, 4300}}}
	term := &fakeTerminator{}
	stopper := &fakeStopper{}
	g := New(8501, []string{"streamlit run", "python3.*app.py"}, prober, term, stopper)

	g.Run()

	assert.Equal(t, [][]int{{4200, 4300}}, term.terminated)
	assert.Equal(t, []string{"streamlit run", "python3.*app.py"}, term.patterns)
	assert.Equal(t, int32(1), stopper.calls.Load())
}

// TestRun_Once verifies run-once semantics under concurrent triggers: two
// simultaneous invocations (simulated interrupt racing normal exit) produce
// exactly one full reclamation pass.
func TestRun_Once(t *testing.T) {
	prober := &fakeProber{pids: map[int][]int{8501: {4200}}}
	term := &fakeTerminator{}
	g := New(8501, []string{"streamlit run"}, prober, term, nil)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Run()
		}()
	}
	wg.Wait()

	assert.Len(t, term.terminated, 1, "exactly one reclamation pass must run")
	assert.Len(t, term.patterns, 1)
}

// TestRun_RepeatedIsNoop verifies a later trigger after cleanup already ran
// does nothing.
func TestRun_RepeatedIsNoop(t *testing.T) {
	prober := &fakeProber{pids: map[int][]int{8501: {4200}}}
	term := &fakeTerminator{}
	g := New(8501, nil, prober, term, nil)

	g.Run()
	g.Run()

	assert.Len(t, term.terminated, 1)
}

// TestRun_NoOccupants verifies cleanup with a free port: only the pattern
// kill runs, and nothing errors.
func TestRun_NoOccupants(t *testing.T) {
	prober := &fakeProber{pids: map[int][]int{}}
	term := &fakeTerminator{}
	g := New(8501, []string{"streamlit run"}, prober, term, nil)

	g.Run()

	assert.Empty(t, term.terminated)
	assert.Equal(t, []string{"streamlit run"}, term.patterns)
}

// TestRun_SurvivesPanic verifies that nothing escapes the cleanup pass:
// even a panicking reaper must not abort the exit path.
func TestRun_SurvivesPanic(t *testing.T) {
	prober := &fakeProber{pids: map[int][]int{8501: {4200}}}
	term := &fakeTerminator{panicOnce: true}
	g := New(8501, nil, prober, term, nil)

	assert.NotPanics(t, func() { g.Run() })
}

// TestInterrupted starts closed-channel plumbing only after a signal;
// before any signal the channel must block.
func TestInterrupted(t *testing.T) {
	g := New(8501, nil, &fakeProber{}, &fakeTerminator{}, nil)

	select {
	case <-g.Interrupted():
		t.Fatal("interrupted channel fired without a signal")
	default:
	}
}
