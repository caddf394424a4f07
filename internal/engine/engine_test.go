package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/taskflow/internal/backend"
	"github.com/aristath/taskflow/internal/events"
	"github.com/aristath/taskflow/internal/retry"
	"github.com/aristath/taskflow/internal/tasklist"
)

// namePrompts makes prompts trivially mappable back to task names.
type namePrompts struct{}

func (namePrompts) TaskPrompt(task tasklist.Task) string { return task.Name }

func (namePrompts) CorrectionPrompt(task tasklist.Task, _ int, _ string) string {
	return "fix " + task.Name
}

// fakeFactory hands out fakeBackends that share one behavior script.
type fakeFactory struct {
	parallel bool
	behave   func(name string, call int) (bool, string, error)

	mu        sync.Mutex
	instances []*fakeBackend
	calls     map[string]int
	prompts   []string
	stale     bool // a call arrived with freshSession=false

	running atomic.Int32
	peak    atomic.Int32
	shared  atomic.Bool // one instance served two calls at once
}

func newFakeFactory(parallel bool, behave func(name string, call int) (bool, string, error)) *fakeFactory {
	return &fakeFactory{parallel: parallel, behave: behave, calls: make(map[string]int)}
}

func (f *fakeFactory) New() (backend.ExecutionBackend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := &fakeBackend{f: f}
	f.instances = append(f.instances, b)
	return b, nil
}

func (f *fakeFactory) record(name, prompt string, fresh bool) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	f.prompts = append(f.prompts, prompt)
	if !fresh {
		f.stale = true
	}
	return f.calls[name]
}

func (f *fakeFactory) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeFactory) Instances() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.instances)
}

type fakeBackend struct {
	f        *fakeFactory
	inflight atomic.Int32
	closed   atomic.Bool
}

func (b *fakeBackend) RunWithCallback(ctx context.Context, prompt, subagent string, onLine func(string), freshSession bool) (bool, string, error) {
	if b.inflight.Add(1) > 1 {
		b.f.shared.Store(true)
	}
	defer b.inflight.Add(-1)

	n := b.f.running.Add(1)
	defer b.f.running.Add(-1)
	for {
		peak := b.f.peak.Load()
		if n <= peak || b.f.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	name := strings.TrimPrefix(prompt, "fix ")
	call := b.f.record(name, prompt, freshSession)
	onLine("working on " + name)

	if b.f.behave == nil {
		return true, "ok", nil
	}
	return b.f.behave(name, call)
}

func (b *fakeBackend) DetectRateLimit(output string) bool {
	return strings.Contains(output, "rate limit")
}

func (b *fakeBackend) SupportsParallel() bool { return b.f.parallel }

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Close() error {
	b.closed.Store(true)
	return nil
}

// instantTimer fires immediately and records every requested delay.
type instantTimer struct {
	mu     sync.Mutex
	delays []time.Duration
	c      chan time.Time
}

func (t *instantTimer) Start(d time.Duration) {
	t.mu.Lock()
	t.delays = append(t.delays, d)
	t.mu.Unlock()
	t.c <- time.Now()
}

func (t *instantTimer) Stop() {}

func (t *instantTimer) C() <-chan time.Time { return t.c }

func (t *instantTimer) Delays() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.delays...)
}

func writeDoc(t *testing.T, doc string) *tasklist.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.md")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return tasklist.NewFile(path)
}

func testConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.RepoRoot = t.TempDir()
	cfg.RateLimit = retry.Config{MaxRetries: 2, BaseDelay: time.Second, MaxDelay: 10 * time.Second}
	return cfg
}

type runResult struct {
	report *Report
	err    error
	events []events.TaskEvent
	engine *Engine
	timer  *instantTimer
}

func run(t *testing.T, cfg Config, f *fakeFactory, state *SharedRunState) runResult {
	t.Helper()

	timer := &instantTimer{c: make(chan time.Time, 1)}
	stream := events.NewStream()
	eng, err := New(cfg, f.New, stream, nil,
		WithPrompts(namePrompts{}),
		WithRetryOptions(retry.WithTimer(func() backoff.Timer { return timer })),
	)
	require.NoError(t, err)

	var evs []events.TaskEvent
	done := make(chan struct{})
	go func() {
		defer close(done)
		stream.Consume(context.Background(), func(ev events.TaskEvent) {
			evs = append(evs, ev)
		})
	}()

	report, err := eng.Run(context.Background(), state)
	<-done
	return runResult{report: report, err: err, events: evs, engine: eng, timer: timer}
}

func loadState(t *testing.T, file *tasklist.File) *SharedRunState {
	t.Helper()
	tasks, err := file.Load()
	require.NoError(t, err)
	return NewSharedRunState(tasks, file)
}

func started(evs []events.TaskEvent) []string {
	var names []string
	for _, ev := range evs {
		if ev.Kind == events.KindStarted {
			names = append(names, ev.TaskName)
		}
	}
	return names
}

func finishedStatus(evs []events.TaskEvent) map[string]events.Status {
	out := make(map[string]events.Status)
	for _, ev := range evs {
		if ev.Kind == events.KindFinished {
			out[ev.TaskName] = ev.Status
		}
	}
	return out
}

// assertEventContract checks one Finished per task, Started before Finished,
// and a single trailing RunFinished.
func assertEventContract(t *testing.T, evs []events.TaskEvent, taskCount int) {
	t.Helper()
	require.NotEmpty(t, evs)
	assert.Equal(t, events.KindRunFinished, evs[len(evs)-1].Kind)

	startedAt := make(map[int]bool)
	finished := make(map[int]int)
	for _, ev := range evs[:len(evs)-1] {
		require.NotEqual(t, events.KindRunFinished, ev.Kind)
		switch ev.Kind {
		case events.KindStarted:
			startedAt[ev.TaskIndex] = true
		case events.KindOutput:
			assert.True(t, startedAt[ev.TaskIndex], "output before start for %s", ev.TaskName)
		case events.KindFinished:
			finished[ev.TaskIndex]++
			if ev.Status != events.StatusSkipped {
				assert.True(t, startedAt[ev.TaskIndex], "finished before start for %s", ev.TaskName)
			} else {
				assert.False(t, startedAt[ev.TaskIndex], "skipped task %s was started", ev.TaskName)
			}
		}
	}

	assert.Len(t, finished, taskCount)
	for idx, n := range finished {
		assert.Equal(t, 1, n, "task %d finished %d times", idx, n)
	}
}

func TestRun_LegacyDocumentRunsSequentiallyInOrder(t *testing.T) {
	file := writeDoc(t, "- [ ] A\n- [ ] B\n")
	f := newFakeFactory(true, nil)

	res := run(t, testConfig(t), f, loadState(t, file))
	require.NoError(t, res.err)

	assert.Equal(t, []string{"A", "B"}, started(res.events))
	assert.True(t, res.report.Succeeded())
	assert.False(t, res.report.Parallel)
	assert.Equal(t, Done, res.engine.State())
	assertEventContract(t, res.events, 2)

	data, err := os.ReadFile(file.Path())
	require.NoError(t, err)
	assert.Equal(t, "- [x] A\n- [x] B\n", string(data))
	assert.False(t, f.stale, "every call must use a fresh session")
}

func TestRun_FundamentalOrderMetadata(t *testing.T) {
	doc := strings.Join([]string{
		"- [ ] unordered",
		"<!-- category: fundamental, order: 2 -->",
		"- [ ] second",
		"<!-- category: fundamental, order: 1 -->",
		"- [ ] first",
		"- [x] already done",
		"<!-- category: independent -->",
		"<!-- files: x.go -->",
		"- [ ] parallel",
	}, "\n") + "\n"
	f := newFakeFactory(true, nil)

	res := run(t, testConfig(t), f, loadState(t, writeDoc(t, doc)))
	require.NoError(t, res.err)

	assert.Equal(t, []string{"first", "second", "unordered", "parallel"}, started(res.events))
	assert.Zero(t, f.Calls("already done"))
	assertEventContract(t, res.events, 4)
}

func TestRun_FailFastInPhase1SkipsEverythingAfter(t *testing.T) {
	doc := "- [ ] A\n- [ ] B\n<!-- category: independent -->\n<!-- files: c.go -->\n- [ ] C\n"
	file := writeDoc(t, doc)
	f := newFakeFactory(true, func(name string, _ int) (bool, string, error) {
		return name != "A", "boom", nil
	})

	cfg := testConfig(t)
	cfg.MaxSelfCorrections = 0
	res := run(t, cfg, f, loadState(t, file))
	require.NoError(t, res.err)

	assert.Equal(t, []string{"A"}, started(res.events))
	assert.Equal(t, []string{"A"}, res.report.Failed)
	assert.True(t, res.report.AbortedEarly)
	assert.Equal(t, Aborted, res.engine.State())
	assert.Equal(t, events.StatusSkipped, finishedStatus(res.events)["B"])
	assert.Equal(t, events.StatusSkipped, finishedStatus(res.events)["C"])
	assert.Equal(t, 2, res.report.Count(events.StatusSkipped))
	assertEventContract(t, res.events, 3)

	data, err := os.ReadFile(file.Path())
	require.NoError(t, err)
	assert.Equal(t, doc, string(data))

	last := res.events[len(res.events)-1]
	assert.True(t, last.AbortedEarly)
	assert.Equal(t, []string{"A"}, last.Failed)
}

func TestRun_NoFailFastContinues(t *testing.T) {
	f := newFakeFactory(true, func(name string, _ int) (bool, string, error) {
		return name != "A", "", nil
	})

	cfg := testConfig(t)
	cfg.FailFast = false
	cfg.MaxSelfCorrections = 0
	res := run(t, cfg, f, loadState(t, writeDoc(t, "- [ ] A\n- [ ] B\n")))
	require.NoError(t, res.err)

	assert.Equal(t, []string{"A", "B"}, started(res.events))
	assert.Equal(t, []string{"A"}, res.report.Failed)
	assert.False(t, res.report.AbortedEarly)
	assert.Equal(t, Done, res.engine.State())
}

func independentDoc(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "<!-- category: independent, group: g -->\n<!-- files: pkg/f%d.go -->\n- [ ] task %d\n", i, i)
	}
	return b.String()
}

func TestRun_FailFastInPhase2SkipsLaterSubmissions(t *testing.T) {
	f := newFakeFactory(true, func(name string, _ int) (bool, string, error) {
		return name != "task 2", "", nil
	})

	cfg := testConfig(t)
	cfg.MaxParallelTasks = 1
	cfg.MaxSelfCorrections = 0
	res := run(t, cfg, f, loadState(t, writeDoc(t, independentDoc(5))))
	require.NoError(t, res.err)

	assert.True(t, res.report.Parallel)
	assert.Equal(t, []string{"task 1", "task 2"}, started(res.events))
	assert.Equal(t, []string{"task 2"}, res.report.Failed)
	assert.True(t, res.report.AbortedEarly)
	for _, name := range []string{"task 3", "task 4", "task 5"} {
		assert.Equal(t, events.StatusSkipped, finishedStatus(res.events)[name], name)
		assert.Zero(t, f.Calls(name), name)
	}
	assertEventContract(t, res.events, 5)
}

func TestRun_NoStartedAfterFailFastFailure(t *testing.T) {
	for i := 0; i < 20; i++ {
		f := newFakeFactory(true, func(name string, _ int) (bool, string, error) {
			if name == "task 1" {
				return false, "", nil
			}
			time.Sleep(50 * time.Microsecond)
			return true, "", nil
		})

		cfg := testConfig(t)
		cfg.MaxParallelTasks = 5
		cfg.MaxSelfCorrections = 0
		res := run(t, cfg, f, loadState(t, writeDoc(t, independentDoc(30))))
		require.NoError(t, res.err)
		require.True(t, res.report.AbortedEarly)
		assert.Equal(t, Aborted, res.engine.State())

		failedAt := -1
		for k, ev := range res.events {
			if ev.Kind == events.KindFinished && ev.Status == events.StatusFailed {
				failedAt = k
				break
			}
		}
		require.NotEqual(t, -1, failedAt)
		for _, ev := range res.events[failedAt:] {
			assert.NotEqual(t, events.KindStarted, ev.Kind, "run %d: %s started after the failure", i, ev.TaskName)
		}
		assertEventContract(t, res.events, 30)
	}
}

func TestRun_CancelDuringPhase2SkipsQueuedTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFakeFactory(true, func(name string, _ int) (bool, string, error) {
		if name == "task 3" {
			cancel()
		}
		return true, "", nil
	})

	cfg := testConfig(t)
	cfg.MaxParallelTasks = 1
	eng, err := New(cfg, f.New, nil, nil, WithPrompts(namePrompts{}))
	require.NoError(t, err)

	report, err := eng.Run(ctx, loadState(t, writeDoc(t, independentDoc(10))))
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.False(t, report.AbortedEarly)
	assert.Equal(t, 7, report.Count(events.StatusSkipped))
	for i := 4; i <= 10; i++ {
		assert.Zero(t, f.Calls(fmt.Sprintf("task %d", i)))
	}
}

func TestRun_FiftyConcurrentCompletions(t *testing.T) {
	file := writeDoc(t, independentDoc(50))
	f := newFakeFactory(true, func(name string, _ int) (bool, string, error) {
		time.Sleep(time.Millisecond)
		return true, "done " + name, nil
	})

	cfg := testConfig(t)
	cfg.MaxParallelTasks = 5
	state := loadState(t, file)
	res := run(t, cfg, f, state)
	require.NoError(t, res.err)

	assert.True(t, res.report.Parallel)
	assert.True(t, res.report.Succeeded())
	assert.Len(t, state.Completed(), 50)
	assertEventContract(t, res.events, 50)

	data, err := os.ReadFile(file.Path())
	require.NoError(t, err)
	assert.Equal(t, 50, strings.Count(string(data), "- [x] task "))
	assert.Equal(t, 0, strings.Count(string(data), "- [ ] "))
	assert.Equal(t, strings.ReplaceAll(independentDoc(50), "- [ ] ", "- [x] "), string(data))

	assert.LessOrEqual(t, f.peak.Load(), int32(5))
	assert.False(t, f.shared.Load(), "a backend instance was shared between concurrent calls")
	// One instance for the parallel-support check plus one per worker.
	assert.LessOrEqual(t, f.Instances(), 6)
	for _, b := range f.instances {
		assert.True(t, b.closed.Load())
	}
}

func TestRun_FallsBackToSequentialWithoutParallelSupport(t *testing.T) {
	f := newFakeFactory(false, nil)

	res := run(t, testConfig(t), f, loadState(t, writeDoc(t, independentDoc(4))))
	require.NoError(t, res.err)

	assert.False(t, res.report.Parallel)
	assert.Equal(t, []string{"task 1", "task 2", "task 3", "task 4"}, started(res.events))
	assert.Equal(t, 1, f.Instances())
	assert.Equal(t, int32(1), f.peak.Load())
}

func TestRun_SelfCorrectionBound(t *testing.T) {
	f := newFakeFactory(true, func(string, int) (bool, string, error) {
		return false, "compile error", nil
	})

	cfg := testConfig(t)
	cfg.MaxSelfCorrections = 3
	res := run(t, cfg, f, loadState(t, writeDoc(t, "- [ ] A\n")))
	require.NoError(t, res.err)

	assert.Equal(t, 4, f.Calls("A"))
	require.Len(t, res.report.Outcomes, 1)
	out := res.report.Outcomes[0]
	assert.Equal(t, events.StatusFailed, out.Status)
	assert.Equal(t, 4, out.Attempts)
	assert.ErrorIs(t, out.Err, ErrTaskFailed)
	assert.Equal(t, []string{"A", "fix A", "fix A", "fix A"}, f.prompts)
}

func TestRun_SelfCorrectionRecovers(t *testing.T) {
	f := newFakeFactory(true, func(_ string, call int) (bool, string, error) {
		return call == 2, "", nil
	})

	res := run(t, testConfig(t), f, loadState(t, writeDoc(t, "- [ ] A\n")))
	require.NoError(t, res.err)

	out := res.report.Outcomes[0]
	assert.Equal(t, events.StatusSuccess, out.Status)
	assert.Equal(t, 2, out.Attempts)
}

func TestRun_RateLimitedTwiceThenSucceeds(t *testing.T) {
	f := newFakeFactory(true, func(_ string, call int) (bool, string, error) {
		if call <= 2 {
			return false, "API error 429: rate limit", nil
		}
		return true, "ok", nil
	})

	cfg := testConfig(t)
	cfg.RateLimit = retry.Config{MaxRetries: 2, BaseDelay: time.Second, MaxDelay: 10 * time.Second, JitterFactor: 0}
	res := run(t, cfg, f, loadState(t, writeDoc(t, "- [ ] A\n")))
	require.NoError(t, res.err)

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, res.timer.Delays())
	out := res.report.Outcomes[0]
	assert.Equal(t, events.StatusSuccess, out.Status)
	assert.Equal(t, 1, out.Attempts, "rate-limit retries are not corrections")
	assert.Equal(t, 3, f.Calls("A"))

	var retryLines int
	for _, ev := range res.events {
		if ev.Kind == events.KindOutput && strings.HasPrefix(ev.Line, "rate limited, retry") {
			retryLines++
		}
	}
	assert.Equal(t, 2, retryLines)
}

func TestRun_RetryExhaustionEndsCorrectionLoop(t *testing.T) {
	f := newFakeFactory(true, func(string, int) (bool, string, error) {
		return false, "rate limit", nil
	})

	cfg := testConfig(t)
	cfg.RateLimit.MaxRetries = 1
	cfg.MaxSelfCorrections = 2
	res := run(t, cfg, f, loadState(t, writeDoc(t, "- [ ] A\n")))
	require.NoError(t, res.err)

	assert.Equal(t, 2, f.Calls("A"))
	out := res.report.Outcomes[0]
	assert.Equal(t, events.StatusFailed, out.Status)
	assert.ErrorIs(t, out.Err, retry.ErrRetryExhausted)
	assert.Equal(t, 1, out.Attempts)
}

func TestRun_MissingBinaryIsTerminal(t *testing.T) {
	f := newFakeFactory(true, func(string, int) (bool, string, error) {
		return false, "", fmt.Errorf("claude command failed: %w", exec.ErrNotFound)
	})

	res := run(t, testConfig(t), f, loadState(t, writeDoc(t, "- [ ] A\n")))
	require.NoError(t, res.err)

	assert.Equal(t, 1, f.Calls("A"))
	assert.ErrorIs(t, res.report.Outcomes[0].Err, exec.ErrNotFound)
}

func TestRun_ProcessErrorIsLogicalFailure(t *testing.T) {
	f := newFakeFactory(true, func(_ string, call int) (bool, string, error) {
		if call == 1 {
			return false, "partial", errors.New("command failed: broken pipe")
		}
		return true, "", nil
	})

	res := run(t, testConfig(t), f, loadState(t, writeDoc(t, "- [ ] A\n")))
	require.NoError(t, res.err)

	assert.Equal(t, 2, f.Calls("A"))
	assert.Equal(t, events.StatusSuccess, res.report.Outcomes[0].Status)
}

func TestRun_PanicIsRecordedAsFailure(t *testing.T) {
	f := newFakeFactory(true, func(name string, _ int) (bool, string, error) {
		if name == "boom" {
			panic("nil map write")
		}
		return true, "", nil
	})

	cfg := testConfig(t)
	cfg.FailFast = false
	res := run(t, cfg, f, loadState(t, writeDoc(t, "- [ ] boom\n- [ ] fine\n")))
	require.NoError(t, res.err)

	assert.Equal(t, []string{"boom"}, res.report.Failed)
	out := res.report.Outcomes[0]
	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "nil map write")
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, events.StatusSuccess, res.report.Outcomes[1].Status)
}

func TestRun_CollisionWarningSerializesTasks(t *testing.T) {
	doc := "<!-- category: independent -->\n<!-- files: x.py -->\n- [ ] one\n" +
		"<!-- category: independent -->\n<!-- files: ./x.py -->\n- [ ] two\n"
	f := newFakeFactory(true, func(string, int) (bool, string, error) {
		time.Sleep(5 * time.Millisecond)
		return true, "", nil
	})

	res := run(t, testConfig(t), f, loadState(t, writeDoc(t, doc)))
	require.NoError(t, res.err)

	require.Len(t, res.report.Warnings, 1)
	w := res.report.Warnings[0]
	assert.Equal(t, "x.py", w.File)
	assert.Equal(t, []string{"one", "two"}, w.Tasks)
	assert.Equal(t, int32(1), f.peak.Load(), "tasks sharing a file must not overlap")
	assert.True(t, res.report.Succeeded())
}

func TestRun_ValidationErrorsAreFatal(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		check func(t *testing.T, err error)
	}{
		{
			name: "unscoped independent task",
			doc:  "<!-- category: independent -->\n- [ ] loose\n",
			check: func(t *testing.T, err error) {
				var target *tasklist.UnscopedTaskError
				assert.ErrorAs(t, err, &target)
			},
		},
		{
			name: "path escape",
			doc:  "<!-- category: fundamental -->\n<!-- files: ../outside.go -->\n- [ ] sneaky\n",
			check: func(t *testing.T, err error) {
				var target *tasklist.PathEscapeError
				assert.ErrorAs(t, err, &target)
			},
		},
		{
			name: "duplicate names",
			doc:  "- [ ] A\n- [ ] A\n",
			check: func(t *testing.T, err error) {
				var target *tasklist.DuplicateNameError
				assert.ErrorAs(t, err, &target)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeFactory(true, nil)
			res := run(t, testConfig(t), f, loadState(t, writeDoc(t, tt.doc)))

			require.Error(t, res.err)
			tt.check(t, res.err)
			assert.Nil(t, res.report)
			assert.Empty(t, res.events)
			assert.Zero(t, f.Instances())
		})
	}
}

func TestRun_UnscopedAllowedUnderWarnPolicy(t *testing.T) {
	f := newFakeFactory(true, nil)
	cfg := testConfig(t)
	cfg.ScopePolicy = tasklist.ScopeWarn

	res := run(t, cfg, f, loadState(t, writeDoc(t, "<!-- category: independent -->\n- [ ] loose\n")))
	require.NoError(t, res.err)

	require.Len(t, res.report.Warnings, 1)
	assert.Equal(t, tasklist.WarnUnscoped, res.report.Warnings[0].Kind)
	assert.True(t, res.report.Succeeded())
}

func TestRun_CircuitBreakerStopsRetries(t *testing.T) {
	f := newFakeFactory(true, func(string, int) (bool, string, error) {
		return false, "rate limit", nil
	})

	cfg := testConfig(t)
	cfg.RateLimit.MaxRetries = 3
	cfg.BreakerThreshold = 1
	cfg.BreakerCooldown = time.Hour
	res := run(t, cfg, f, loadState(t, writeDoc(t, "- [ ] A\n")))
	require.NoError(t, res.err)

	assert.Equal(t, 1, f.Calls("A"))
	assert.ErrorIs(t, res.report.Outcomes[0].Err, ErrBreakerOpen)
}

func TestRun_AlreadyStarted(t *testing.T) {
	f := newFakeFactory(true, nil)
	res := run(t, testConfig(t), f, loadState(t, writeDoc(t, "- [ ] A\n")))
	require.NoError(t, res.err)

	_, err := res.engine.Run(context.Background(), NewSharedRunState(nil, nil))
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestRun_CancelledContextSkipsEverything(t *testing.T) {
	f := newFakeFactory(true, nil)
	eng, err := New(testConfig(t), f.New, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tasks := tasklist.Parse("- [ ] A\n- [ ] B\n")
	report, err := eng.Run(ctx, NewSharedRunState(tasks, nil))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, report.Count(events.StatusSkipped))
	assert.Zero(t, f.Calls("A"))
}

func TestNew_InvalidConfig(t *testing.T) {
	f := newFakeFactory(true, nil)

	cfg := DefaultConfig()
	cfg.MaxParallelTasks = 6
	_, err := New(cfg, f.New, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.RateLimit.MaxDelay = time.Millisecond
	_, err = New(cfg, f.New, nil, nil)
	assert.ErrorIs(t, err, retry.ErrInvalidConfig)

	_, err = New(DefaultConfig(), nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
