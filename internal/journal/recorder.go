package journal

import (
	"context"
	"log/slog"

	"github.com/aristath/taskflow/internal/events"
)

// Recorder writes the events of one run into a Store. Its Handle method is an
// events.Handler and must be driven by the stream's single consumer.
type Recorder struct {
	ctx    context.Context
	store  Store
	runID  string
	logger *slog.Logger
	err    error
}

// NewRecorder creates a Recorder for runID.
func NewRecorder(ctx context.Context, store Store, runID string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recorder{ctx: ctx, store: store, runID: runID, logger: logger}
}

// Handle records ev. Write failures are logged and kept for Err; the run is
// never blocked by its journal.
func (r *Recorder) Handle(ev events.TaskEvent) {
	var err error

	switch ev.Kind {
	case events.KindOutput:
		err = r.store.AppendOutput(r.ctx, r.runID, ev.TaskIndex, ev.Line)
	case events.KindFinished:
		o := Outcome{
			RunID:     r.runID,
			TaskIndex: ev.TaskIndex,
			TaskName:  ev.TaskName,
			Status:    ev.Status.String(),
			Attempts:  ev.Attempts,
			Duration:  ev.Duration,
		}
		if ev.Err != nil {
			o.Error = ev.Err.Error()
		}
		err = r.store.RecordOutcome(r.ctx, o)
	case events.KindRunFinished:
		err = r.store.FinishRun(r.ctx, r.runID, ev.Failed, ev.AbortedEarly)
	}

	if err != nil {
		r.logger.Warn("journal write failed", "run", r.runID, "task", ev.TaskName, "error", err)
		if r.err == nil {
			r.err = err
		}
	}
}

// Err returns the first write error, if any.
func (r *Recorder) Err() error {
	return r.err
}

// RunID returns the run being recorded.
func (r *Recorder) RunID() string {
	return r.runID
}
