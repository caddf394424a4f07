// Package engine runs a parsed task list against an execution backend.
//
// Fundamental tasks run one at a time in dependency order (phase 1), then
// Independent tasks run on a bounded worker pool (phase 2). Every task goes
// through self-correction wrapped around rate-limit retry, and every step is
// reported on an events.Stream.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/panics"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/taskflow/internal/backend"
	"github.com/aristath/taskflow/internal/events"
	"github.com/aristath/taskflow/internal/retry"
	"github.com/aristath/taskflow/internal/tasklist"
)

// ErrAlreadyStarted is returned when Run is called twice on one Engine.
var ErrAlreadyStarted = errors.New("engine already started")

// RunState is the scheduler's position in a run.
type RunState int32

const (
	NotStarted RunState = iota
	Phase1Running
	Phase2Running
	Aborted // Fail-fast stopped the run
	Done
)

func (s RunState) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Phase1Running:
		return "phase1_running"
	case Phase2Running:
		return "phase2_running"
	case Aborted:
		return "aborted"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Option customizes an Engine.
type Option func(*Engine)

// WithPrompts replaces the default prompt builder.
func WithPrompts(p PromptBuilder) Option {
	return func(e *Engine) {
		e.prompts = p
	}
}

// WithRetryOptions passes options to the rate-limit controller, e.g.
// retry.WithTimer in tests.
func WithRetryOptions(opts ...retry.Option) Option {
	return func(e *Engine) {
		e.retryOpts = append(e.retryOpts, opts...)
	}
}

// Engine is a single-use two-phase scheduler.
type Engine struct {
	cfg     Config
	factory backend.Factory
	stream  *events.Stream
	logger  *slog.Logger

	prompts   PromptBuilder
	retryOpts []retry.Option
	retrier   *retry.Controller
	breaker   *breaker
	locks     *fileLocks

	state atomic.Int32
	stop  atomic.Bool
	// gate orders Started announcements against fail-fast Finished events.
	gate sync.Mutex
}

// job is one task scheduled in a run.
type job struct {
	index int
	task  tasklist.Task
	files []string // Normalized target files
	phase string
}

// New creates an Engine. stream receives every event and is closed when Run
// returns; a nil stream gets a private one, see Stream. A nil logger discards.
func New(cfg Config, factory backend.Factory, stream *events.Stream, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, fmt.Errorf("%w: backend factory is required", ErrInvalidConfig)
	}
	if stream == nil {
		stream = events.NewStream()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	e := &Engine{
		cfg:     cfg,
		factory: factory,
		stream:  stream,
		logger:  logger,
		prompts: DefaultPrompts{},
		locks:   newFileLocks(),
	}
	for _, opt := range opts {
		opt(e)
	}

	retrier, err := retry.New(cfg.RateLimit, e.retryOpts...)
	if err != nil {
		return nil, err
	}
	e.retrier = retrier
	e.breaker = newBreaker("backend", cfg.BreakerThreshold, cfg.BreakerCooldown, logger)

	return e, nil
}

// Stream returns the stream events are emitted on.
func (e *Engine) Stream() *events.Stream {
	return e.stream
}

// State returns the current scheduler state.
func (e *Engine) State() RunState {
	return RunState(e.state.Load())
}

// Run executes every pending task in state. Setup problems (duplicate names,
// escaping paths, unscoped Independent tasks under ScopeStrict) are returned
// before any task runs. Task failures never produce an error: they are listed
// in the Report. A cancelled ctx skips work not yet started and returns the
// context error alongside the report.
func (e *Engine) Run(ctx context.Context, state *SharedRunState) (*Report, error) {
	if !e.state.CompareAndSwap(int32(NotStarted), int32(Phase1Running)) {
		return nil, ErrAlreadyStarted
	}
	defer e.stream.Close()

	fundamental, independent, warnings, err := e.plan(state.Tasks())
	if err != nil {
		e.state.Store(int32(Done))
		return nil, err
	}
	for _, w := range warnings {
		e.logger.Warn("file scope warning", "warning", w.String())
	}

	rec := &recorder{}
	report := &Report{Warnings: warnings}

	seq := &lazyBackend{factory: e.factory}
	defer seq.close()

	e.logger.Info("phase started", "phase", tasklist.Fundamental.String(), "tasks", len(fundamental))
	e.runSequential(ctx, state, seq.get, fundamental, rec)

	if len(independent) > 0 {
		if e.stop.Load() || ctx.Err() != nil {
			for _, j := range independent {
				rec.add(e.skip(state, j))
			}
		} else {
			e.state.Store(int32(Phase2Running))
			report.Parallel = e.canParallelize(seq)
			e.logger.Info("phase started", "phase", tasklist.Independent.String(), "tasks", len(independent), "parallel", report.Parallel)

			if report.Parallel {
				seq.close()
				e.runParallel(ctx, state, independent, rec)
			} else {
				e.runSequential(ctx, state, seq.get, independent, rec)
			}
		}
	}

	report.Outcomes = rec.sorted()
	for _, o := range report.Outcomes {
		if o.Status == events.StatusFailed {
			report.Failed = append(report.Failed, o.TaskName)
		}
	}
	report.AbortedEarly = e.stop.Load()

	if !report.AbortedEarly {
		e.state.Store(int32(Done))
	}
	e.stream.Emit(events.RunFinished(report.Failed, report.AbortedEarly))
	e.logger.Info("run finished", "failed", len(report.Failed), "aborted_early", report.AbortedEarly)

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("run cancelled: %w", err)
	}
	return report, nil
}

// plan validates tasks and assigns run-wide indices: fundamental tasks in
// execution order first, then independent tasks in submission order.
func (e *Engine) plan(tasks []tasklist.Task) (fundamental, independent []job, warnings []tasklist.CollisionWarning, err error) {
	if err := tasklist.ValidateNames(tasks); err != nil {
		return nil, nil, nil, err
	}

	pendingIndependent := tasklist.PendingIndependent(tasks)
	warnings, err = tasklist.ValidateDisjoint(pendingIndependent, e.cfg.RepoRoot, e.cfg.ScopePolicy)
	if err != nil {
		return nil, nil, nil, err
	}

	index := 0
	build := func(ts []tasklist.Task, phase tasklist.Category) ([]job, error) {
		jobs := make([]job, 0, len(ts))
		for _, t := range ts {
			files, err := tasklist.NormalizeFiles(e.cfg.RepoRoot, t)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, job{index: index, task: t, files: files, phase: phase.String()})
			index++
		}
		return jobs, nil
	}

	if fundamental, err = build(tasklist.PendingFundamental(tasks), tasklist.Fundamental); err != nil {
		return nil, nil, nil, err
	}
	if independent, err = build(pendingIndependent, tasklist.Independent); err != nil {
		return nil, nil, nil, err
	}
	return fundamental, independent, warnings, nil
}

// canParallelize reports whether the backend allows concurrent instances.
func (e *Engine) canParallelize(seq *lazyBackend) bool {
	b, err := seq.get()
	if err != nil {
		// Let the sequential path report the factory error per task.
		return false
	}
	if !b.SupportsParallel() {
		e.logger.Info("backend does not support parallel execution, running sequentially", "backend", b.Name())
		return false
	}
	return true
}

func (e *Engine) runSequential(ctx context.Context, state *SharedRunState, acquire func() (backend.ExecutionBackend, error), jobs []job, rec *recorder) {
	for _, j := range jobs {
		rec.add(e.runJob(ctx, state, acquire, j))
	}
}

// runParallel feeds jobs in submission order to a fixed pool of workers, each
// owning its own backend instance for its whole lifetime. Task failures are
// outcomes; the group's error only reports cancellation of the feed.
func (e *Engine) runParallel(ctx context.Context, state *SharedRunState, jobs []job, rec *recorder) {
	workers := min(e.cfg.MaxParallelTasks, len(jobs))
	queue := make(chan job)

	var g errgroup.Group

	g.Go(func() error {
		defer close(queue)
		for i, j := range jobs {
			if e.stopped(ctx) {
				for _, rest := range jobs[i:] {
					rec.add(e.skip(state, rest))
				}
				return nil
			}
			select {
			case queue <- j:
			case <-ctx.Done():
				for _, rest := range jobs[i:] {
					rec.add(e.skip(state, rest))
				}
				return ctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			own := &lazyBackend{factory: e.factory}
			defer own.close()

			for j := range queue {
				rec.add(e.runJob(ctx, state, own.get, j))
			}
			return ctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		e.logger.Info("parallel phase cancelled", "error", err)
	}
}

// trip sets the stop flag when a failure should end the run. Callers hold gate.
func (e *Engine) trip(out ExecutionOutcome) {
	if out.Status != events.StatusFailed || !e.cfg.FailFast {
		return
	}
	if e.stop.CompareAndSwap(false, true) {
		e.state.Store(int32(Aborted))
		e.logger.Warn("fail-fast triggered, skipping work not yet started", "task", out.TaskName, "index", out.Index)
	}
}

func (e *Engine) stopped(ctx context.Context) bool {
	return e.stop.Load() || ctx.Err() != nil
}

// runJob gates a job on the stop flag and its file locks, then executes it.
func (e *Engine) runJob(ctx context.Context, state *SharedRunState, acquire func() (backend.ExecutionBackend, error), j job) ExecutionOutcome {
	if e.stopped(ctx) {
		return e.skip(state, j)
	}

	unlock := e.locks.lockAll(j.files)
	defer unlock()

	// The flag may have been set while waiting on a lock.
	if !e.begin(ctx, j) {
		return e.skip(state, j)
	}
	return e.execute(ctx, state, acquire, j)
}

// begin announces a job unless the run has stopped. The check and the
// Started event happen under gate, so once a fail-fast Finished is on the
// stream no later Started can follow it.
func (e *Engine) begin(ctx context.Context, j job) bool {
	e.gate.Lock()
	defer e.gate.Unlock()
	if e.stopped(ctx) {
		return false
	}
	e.stream.Emit(events.Started(j.index, j.task.Name))
	return true
}

// finish sets the stop flag for a fail-fast failure before the outcome is
// published.
func (e *Engine) finish(out ExecutionOutcome) {
	e.gate.Lock()
	defer e.gate.Unlock()
	e.trip(out)
	e.stream.Emit(events.Finished(out.Index, out.TaskName, out.Status, out.Duration, out.Attempts, out.Err))
}

// skip reports a task that never started.
func (e *Engine) skip(state *SharedRunState, j job) ExecutionOutcome {
	state.markSkipped(j.task.Name)
	e.stream.Emit(events.Finished(j.index, j.task.Name, events.StatusSkipped, 0, 0, nil))
	e.logger.Debug("task skipped", "task", j.task.Name, "index", j.index, "phase", j.phase)
	return ExecutionOutcome{TaskName: j.task.Name, Index: j.index, Status: events.StatusSkipped}
}

// execute runs one task to a terminal outcome. Panics are recovered and
// recorded as failures so they never cross the worker boundary.
func (e *Engine) execute(ctx context.Context, state *SharedRunState, acquire func() (backend.ExecutionBackend, error), j job) ExecutionOutcome {
	name := j.task.Name
	start := time.Now()

	e.logger.Info("task started", "task", name, "index", j.index, "phase", j.phase)

	var (
		res      CorrectionResult
		attempts atomic.Int32
	)
	var pc panics.Catcher
	pc.Try(func() {
		res = e.attemptTask(ctx, acquire, j, &attempts)
	})
	if r := pc.Recovered(); r != nil {
		e.logger.Error("task panicked", "task", name, "index", j.index, "panic", fmt.Sprint(r.Value), "stack", string(r.Stack))
		res = CorrectionResult{
			Attempts: int(attempts.Load()),
			Err:      fmt.Errorf("task panicked: %v", r.Value),
		}
	}

	if res.Success {
		if _, err := state.MarkComplete(name); err != nil {
			res.Success = false
			res.Err = err
		}
	}

	out := ExecutionOutcome{
		TaskName: name,
		Index:    j.index,
		Status:   events.StatusSuccess,
		Duration: time.Since(start),
		Attempts: res.Attempts,
	}
	if !res.Success {
		out.Status = events.StatusFailed
		out.Err = res.Err
		if out.Err == nil {
			out.Err = ErrTaskFailed
		}
	}

	e.finish(out)
	if out.Err != nil {
		e.logger.Warn("task failed", "task", name, "index", j.index, "attempts", out.Attempts, "duration", out.Duration, "error", out.Err)
	} else {
		e.logger.Info("task finished", "task", name, "index", j.index, "attempts", out.Attempts, "duration", out.Duration)
	}
	return out
}

// attemptTask composes Self-Correction(Retry(breaker(backend call))).
func (e *Engine) attemptTask(ctx context.Context, acquire func() (backend.ExecutionBackend, error), j job, attempts *atomic.Int32) CorrectionResult {
	b, err := acquire()
	if err != nil {
		return CorrectionResult{Err: err}
	}

	name := j.task.Name
	maxRetries := e.retrier.Config().MaxRetries
	corrector := Corrector{MaxCorrections: e.cfg.MaxSelfCorrections, Prompts: e.prompts}

	return corrector.Run(ctx, j.task, func(ctx context.Context, prompt string, attempt int) (retry.Result, error) {
		attempts.Store(int32(attempt))
		if attempt > 1 {
			e.stream.Emit(events.Output(j.index, name, fmt.Sprintf("self-correction attempt %d of %d", attempt-1, e.cfg.MaxSelfCorrections)))
			e.logger.Info("self-correcting task", "task", name, "index", j.index, "attempt", attempt)
		}

		return e.retrier.Do(ctx, func(ctx context.Context) (retry.Result, error) {
			return e.breaker.call(func() (retry.Result, error) {
				return e.invoke(ctx, b, j, prompt)
			})
		}, func(n int, delay time.Duration, err error) {
			e.stream.Emit(events.Output(j.index, name, fmt.Sprintf("rate limited, retry %d of %d in %s", n, maxRetries, delay.Round(time.Millisecond))))
			e.logger.Warn("rate limited, backing off", "task", name, "index", j.index, "attempt", n, "delay", delay)
		})
	})
}

// invoke makes one backend call and classifies the result for the retry
// controller: rate-limited output becomes a *retry.RateLimitError, a missing
// CLI or a cancelled context is terminal, anything else is a logical result.
func (e *Engine) invoke(ctx context.Context, b backend.ExecutionBackend, j job, prompt string) (retry.Result, error) {
	onLine := func(line string) {
		e.stream.Emit(events.Output(j.index, j.task.Name, line))
	}

	ok, output, err := b.RunWithCallback(ctx, prompt, e.cfg.Subagent, onLine, true)
	if err != nil && (ctx.Err() != nil || errors.Is(err, exec.ErrNotFound)) {
		return retry.Result{Output: output}, err
	}
	if (!ok || err != nil) && b.DetectRateLimit(output) {
		return retry.Result{}, &retry.RateLimitError{Output: output}
	}
	if err != nil {
		if output != "" {
			output += "\n"
		}
		return retry.Result{Output: output + err.Error()}, nil
	}
	return retry.Result{Success: ok, Output: output}, nil
}

// lazyBackend creates a backend instance on first use.
type lazyBackend struct {
	factory backend.Factory
	b       backend.ExecutionBackend
	err     error
}

func (l *lazyBackend) get() (backend.ExecutionBackend, error) {
	if l.b == nil && l.err == nil {
		b, err := l.factory()
		if err != nil {
			l.err = fmt.Errorf("failed to create backend: %w", err)
		} else {
			l.b = b
		}
	}
	return l.b, l.err
}

func (l *lazyBackend) close() {
	if l.b != nil {
		l.b.Close()
		l.b = nil
	}
	l.err = nil
}

// recorder collects outcomes from concurrent workers.
type recorder struct {
	mu       sync.Mutex
	outcomes []ExecutionOutcome
}

func (r *recorder) add(o ExecutionOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *recorder) sorted() []ExecutionOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := slices.Clone(r.outcomes)
	slices.SortFunc(out, func(a, b ExecutionOutcome) int {
		return a.Index - b.Index
	})
	return out
}
