package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/oljefondvakt/fundwatch/internal/config"
	"github.com/oljefondvakt/fundwatch/internal/events"
	"github.com/oljefondvakt/fundwatch/internal/platform/logger"
	"github.com/oljefondvakt/fundwatch/internal/redact"
	"github.com/oljefondvakt/fundwatch/internal/store"
)

// RunnerConfig holds the settings for one shallow run.
type RunnerConfig struct {
	// Target is the maximum number of investments claimed by the run.
	Target      int
	WorkerCount int
	BatchSize   int
	// Observer, if set, receives worker state transitions.
	Observer StateObserver
	// Events, if set, receives batch_persisted and run_finished events.
	Events events.EventEmitter
}

// RunnerConfigFrom maps the run section of the application config.
func RunnerConfigFrom(cfg config.RunConfig) RunnerConfig {
	return RunnerConfig{
		Target:      cfg.TotalItems,
		WorkerCount: cfg.Workers,
		BatchSize:   cfg.BatchSize,
	}
}

// RunReport summarizes a finished run.
type RunReport struct {
	RunID     string
	Target    int
	Claimed   int
	Completed int
	Done      int
	Failed    int
	Batches   int
	// BatchSizes lists claim sizes in claim order.
	BatchSizes []int
	Duration   time.Duration
}

// Runner wires coordinator, worker pool, queue and writer for one run and
// sequences their shutdown.
type Runner struct {
	store     store.InvestmentStore
	processor Processor
	config    RunnerConfig
	logger    *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(s store.InvestmentStore, processor Processor, cfg RunnerConfig, logger *slog.Logger) (*Runner, error) {
	if cfg.Target <= 0 {
		return nil, fmt.Errorf("%w: target must be positive, got %d", ErrInvalidConfig, cfg.Target)
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > store.MaxBatchWrite {
		return nil, fmt.Errorf("%w: batch size must be in [1, %d], got %d",
			ErrInvalidConfig, store.MaxBatchWrite, cfg.BatchSize)
	}
	if cfg.WorkerCount <= 0 {
		return nil, fmt.Errorf("%w: worker count must be positive, got %d", ErrInvalidConfig, cfg.WorkerCount)
	}
	return &Runner{
		store:     s,
		processor: processor,
		config:    cfg,
		logger:    logger,
	}, nil
}

// Run executes one shallow run and blocks until every claimed batch has
// been persisted. The report is returned even when the run fails. A writer
// failure takes precedence over a pool failure, since the pool usually
// stops because of it.
func (r *Runner) Run(ctx context.Context) (*RunReport, error) {
	start := time.Now()
	runID := uuid.NewString()
	ctx, log := logger.With(ctx, "run_id", runID)

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	log.InfoContext(ctx, "starting shallow run",
		"target", r.config.Target,
		"workers", r.config.WorkerCount,
		"batch_size", r.config.BatchSize)

	coord := NewCoordinator(r.store, r.config.Target, log)
	queue := NewResultQueue((r.config.Target+r.config.BatchSize-1)/r.config.BatchSize, log)
	var writerOpts []WriterOption
	if r.config.Events != nil {
		writerOpts = append(writerOpts, WithEventEmitter(r.config.Events, runID))
	}
	writer := NewResultWriter(r.store, queue, r.config.Target, func(err error) { cancel(err) }, log, writerOpts...)
	pool := NewWorkerPool(coord, r.processor, queue, WorkerPoolConfig{
		WorkerCount: r.config.WorkerCount,
		BatchSize:   r.config.BatchSize,
		Observer:    r.config.Observer,
	}, log)

	writerDone := make(chan error, 1)
	go func() {
		writerDone <- writer.Run(ctx)
	}()

	poolErr := pool.Run(ctx)
	if poolErr != nil {
		cancel(poolErr)
	}
	queue.Close()
	writerErr := <-writerDone

	report := &RunReport{
		RunID:      runID,
		Target:     r.config.Target,
		Claimed:    coord.Claimed(),
		Completed:  writer.Completed(),
		Done:       writer.Done(),
		Failed:     writer.Failed(),
		Batches:    writer.Batches(),
		BatchSizes: coord.ClaimSizes(),
		Duration:   time.Since(start),
	}

	err := writerErr
	if err == nil {
		err = poolErr
	}
	if err == nil {
		// Cancelled from outside; the claimed batches were still persisted.
		err = context.Cause(ctx)
	}

	attrs := []any{
		"claimed", report.Claimed,
		"completed", report.Completed,
		"done", report.Done,
		"failed", report.Failed,
		"batches", report.Batches,
		"duration", report.Duration,
	}
	r.emitFinished(context.WithoutCancel(ctx), log, report, err)
	if err != nil {
		log.ErrorContext(ctx, "shallow run failed", append(attrs, "error", err)...)
		return report, err
	}
	log.InfoContext(ctx, "shallow run finished", attrs...)
	return report, nil
}

func (r *Runner) emitFinished(ctx context.Context, log *slog.Logger, report *RunReport, runErr error) {
	if r.config.Events == nil {
		return
	}
	payload := events.RunFinished{
		Claimed:   report.Claimed,
		Completed: report.Completed,
		Done:      report.Done,
		Failed:    report.Failed,
		Batches:   report.Batches,
	}
	if runErr != nil {
		payload.Error = redact.Error(runErr)
	}
	event, err := events.NewRunEvent(events.TypeRunFinished, report.RunID, payload)
	if err == nil {
		err = r.config.Events.EmitEvent(ctx, event)
	}
	if err != nil {
		log.WarnContext(ctx, "failed to publish run_finished", "error", err)
	}
}
