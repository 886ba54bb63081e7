package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/oljefondvakt/fundwatch/internal/domain"
	"github.com/oljefondvakt/fundwatch/internal/platform/logger"
)

// Claimer hands out batches of in_progress investments. *Coordinator
// satisfies it.
type Claimer interface {
	ClaimNext(ctx context.Context, n int) ([]*domain.Investment, error)
	Remaining() int
}

// WorkerPoolConfig holds configuration options for the worker pool.
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent workers claim and process
	// batches. If zero or negative, defaults to 1.
	WorkerCount int
	// BatchSize is the number of items requested per claim.
	BatchSize int
	// Observer, if set, sees every worker state transition.
	Observer StateObserver
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults.
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount: 2,
		BatchSize:   10,
	}
}

// WorkerPool runs workers that loop claim, generate, validate and enqueue
// until the quota is spent or nothing is pending.
type WorkerPool struct {
	claimer   Claimer
	processor Processor
	queue     *ResultQueue
	config    WorkerPoolConfig
	logger    *slog.Logger

	seq atomic.Int64
}

// NewWorkerPool creates a worker pool. Invalid counts fall back to defaults.
func NewWorkerPool(
	claimer Claimer,
	processor Processor,
	queue *ResultQueue,
	config WorkerPoolConfig,
	logger *slog.Logger,
) *WorkerPool {
	if config.WorkerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
		config.WorkerCount = 1
	}
	if config.BatchSize <= 0 {
		def := DefaultWorkerPoolConfig().BatchSize
		logger.Warn("invalid batch size specified, using default",
			"specified_size", config.BatchSize,
			"default_size", def)
		config.BatchSize = def
	}
	return &WorkerPool{
		claimer:   claimer,
		processor: processor,
		queue:     queue,
		config:    config,
		logger:    logger.With("component", "worker_pool"),
	}
}

// Run starts the workers and blocks until all of them have exited. It
// returns the first fatal error; a clean exit on an empty claim is not an
// error. Run does not close the queue.
func (p *WorkerPool) Run(ctx context.Context) error {
	p.logger.InfoContext(ctx, "starting worker pool",
		"worker_count", p.config.WorkerCount,
		"batch_size", p.config.BatchSize)

	g, gctx := errgroup.WithContext(ctx)
	for i := range p.config.WorkerCount {
		id := i + 1
		g.Go(func() error {
			return p.worker(gctx, id)
		})
	}
	err := g.Wait()

	p.logger.InfoContext(ctx, "worker pool stopped", "batches", p.seq.Load())
	return err
}

// Batches returns the number of batches claimed by the pool so far.
func (p *WorkerPool) Batches() int64 {
	return p.seq.Load()
}

func (p *WorkerPool) worker(ctx context.Context, id int) (err error) {
	ctx, log := logger.With(ctx, "worker_id", id)
	state := StateIdle
	transition := func(to WorkerState) {
		if p.config.Observer != nil {
			p.config.Observer(id, state, to)
		}
		state = to
	}
	defer func() { transition(StateExiting) }()

	log.DebugContext(ctx, "worker started")
	for {
		if err := ctx.Err(); err != nil {
			log.DebugContext(ctx, "worker stopping", "reason", context.Cause(ctx))
			return nil
		}

		n := min(p.config.BatchSize, p.claimer.Remaining())
		if n <= 0 {
			log.DebugContext(ctx, "quota spent, worker exiting")
			return nil
		}

		transition(StateClaiming)
		items, err := p.claimer.ClaimNext(ctx, n)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			log.ErrorContext(ctx, "claim failed", "error", err)
			return fmt.Errorf("worker %d: %w", id, err)
		}
		if len(items) == 0 {
			log.DebugContext(ctx, "nothing left to claim, worker exiting")
			return nil
		}

		b := &Batch{Seq: p.seq.Add(1), WorkerID: id, Items: items}
		p.processor.Process(ctx, b, transition)

		transition(StateEnqueuing)
		// Claimed items must reach the writer even during shutdown, so the
		// send ignores cancellation of the run.
		if err := p.queue.Enqueue(context.WithoutCancel(ctx), b); err != nil {
			log.ErrorContext(ctx, "enqueue failed", "batch_seq", b.Seq, "error", err)
			return fmt.Errorf("worker %d: %w", id, err)
		}
		transition(StateIdle)
	}
}
