package task

import (
	"context"
	"log/slog"
	"sync"
)

// ResultQueue carries finalized batches from the workers to the ResultWriter.
// Enqueue blocks while the buffer is full rather than dropping a batch whose
// items are already finalized in memory.
type ResultQueue struct {
	batches chan *Batch
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewResultQueue creates a queue with the given buffer size.
func NewResultQueue(size int, logger *slog.Logger) *ResultQueue {
	if size < 1 {
		size = 1
	}
	return &ResultQueue{
		batches: make(chan *Batch, size),
		logger:  logger.With("component", "result_queue"),
	}
}

// Enqueue hands b to the writer. It returns ErrQueueClosed after Close and
// ctx.Err() if ctx ends while the buffer is full.
func (q *ResultQueue) Enqueue(ctx context.Context, b *Batch) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.batches <- b:
		q.logger.Debug("batch enqueued",
			"batch_seq", b.Seq,
			"worker_id", b.WorkerID,
			"queue_len", len(q.batches),
			"queue_cap", cap(q.batches))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops submission. Batches already buffered stay readable from
// Channel until drained. Close waits for in-flight Enqueue calls.
func (q *ResultQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.batches)
		q.logger.Debug("result queue closed")
	}
}

// Channel returns the receive side consumed by the writer.
func (q *ResultQueue) Channel() <-chan *Batch {
	return q.batches
}
