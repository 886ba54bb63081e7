package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/oljefondvakt/fundwatch/internal/domain"
	"github.com/oljefondvakt/fundwatch/internal/events"
	"github.com/oljefondvakt/fundwatch/internal/store"
)

// ResultWriter is the single consumer of the ResultQueue. It persists each
// batch with one chunked BatchWrite and keeps the run's progress counters.
type ResultWriter struct {
	store  store.BatchWriter
	queue  *ResultQueue
	target int
	logger *slog.Logger
	onFail func(error)
	events events.EventEmitter
	runID  string

	mu        sync.Mutex
	completed int
	done      int
	failed    int
	batches   int
	err       error
}

// WriterOption configures a ResultWriter.
type WriterOption func(*ResultWriter)

// WithEventEmitter publishes a batch_persisted event for every persisted
// batch of run runID.
func WithEventEmitter(e events.EventEmitter, runID string) WriterOption {
	return func(w *ResultWriter) {
		w.events = e
		w.runID = runID
	}
}

// NewResultWriter creates a writer for queue. target is only used in
// progress reporting. onFail, if set, is called once with the first
// persist error.
func NewResultWriter(
	s store.BatchWriter,
	queue *ResultQueue,
	target int,
	onFail func(error),
	logger *slog.Logger,
	opts ...WriterOption,
) *ResultWriter {
	w := &ResultWriter{
		store:  s,
		queue:  queue,
		target: target,
		onFail: onFail,
		logger: logger.With("component", "result_writer"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run drains the queue until it is closed and empty. Writes ignore
// cancellation of ctx so that every batch claimed before shutdown is
// persisted. After the first persist failure the remaining batches are
// drained without writing and Run returns that failure.
func (w *ResultWriter) Run(ctx context.Context) error {
	writeCtx := context.WithoutCancel(ctx)

	for b := range w.queue.Channel() {
		if w.Err() != nil {
			w.logger.WarnContext(ctx, "discarding batch after persist failure",
				"batch_seq", b.Seq,
				"investment_ids", b.IDs())
			continue
		}

		if _, err := store.WriteChunked(writeCtx, w.store, b.Items); err != nil {
			err = fmt.Errorf("persist batch %d: %w", b.Seq, err)
			w.setErr(err)
			w.logger.ErrorContext(ctx, "failed to persist batch",
				"batch_seq", b.Seq,
				"investment_ids", b.IDs(),
				"error", err)
			if w.onFail != nil {
				w.onFail(err)
			}
			continue
		}

		completed := w.record(b)
		w.logger.InfoContext(ctx, "batch persisted",
			"batch_seq", b.Seq,
			"worker_id", b.WorkerID,
			"failed", b.Failed(),
			"completed", completed,
			"target", w.target)
		w.emit(writeCtx, b, completed)
	}

	w.logger.DebugContext(ctx, "result queue drained")
	return w.Err()
}

// emit publishes progress. Handler failures are logged and never affect
// the run.
func (w *ResultWriter) emit(ctx context.Context, b *Batch, completed int) {
	if w.events == nil {
		return
	}
	event, err := events.NewRunEvent(events.TypeBatchPersisted, w.runID, events.BatchPersisted{
		Seq:       b.Seq,
		WorkerID:  b.WorkerID,
		Size:      len(b.Items),
		Failed:    b.FailedItems(),
		Completed: completed,
		Target:    w.target,
	})
	if err == nil {
		err = w.events.EmitEvent(ctx, event)
	}
	if err != nil {
		w.logger.WarnContext(ctx, "failed to publish progress", "batch_seq", b.Seq, "error", err)
	}
}

func (w *ResultWriter) record(b *Batch) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.batches++
	w.completed += len(b.Items)
	for _, item := range b.Items {
		switch item.ShallowState {
		case domain.ShallowDone:
			w.done++
		case domain.ShallowError:
			w.failed++
		}
	}
	return w.completed
}

func (w *ResultWriter) setErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = err
	}
}

// Err returns the first persist failure, if any.
func (w *ResultWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Completed returns the number of items persisted in a terminal state.
func (w *ResultWriter) Completed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.completed
}

// Batches returns the number of batches persisted.
func (w *ResultWriter) Batches() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.batches
}

// Done returns the number of persisted items in the done state.
func (w *ResultWriter) Done() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

// Failed returns the number of persisted items in the error state.
func (w *ResultWriter) Failed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failed
}
