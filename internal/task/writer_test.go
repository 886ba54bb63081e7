package task

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oljefondvakt/fundwatch/internal/domain"
	"github.com/oljefondvakt/fundwatch/internal/mocks"
	"github.com/oljefondvakt/fundwatch/internal/store"
)

func finalizedBatch(seq int64, ids []string, state domain.ShallowState) *Batch {
	items := make([]*domain.Investment, len(ids))
	for i, id := range ids {
		items[i] = &domain.Investment{ID: id, Name: "Company " + id, ShallowState: state}
	}
	return &Batch{Seq: seq, Items: items}
}

func TestResultWriter_DrainsEverythingEnqueuedBeforeClose(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := mocks.NewMockInvestmentStore()
	q := NewResultQueue(3, testLogger())

	require.NoError(t, q.Enqueue(ctx, finalizedBatch(1, []string{"a", "b"}, domain.ShallowDone)))
	require.NoError(t, q.Enqueue(ctx, finalizedBatch(2, []string{"c"}, domain.ShallowError)))
	require.NoError(t, q.Enqueue(ctx, finalizedBatch(3, []string{"d", "e"}, domain.ShallowDone)))
	q.Close()

	// Cancellation of the run does not stop persisting.
	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	w := NewResultWriter(s, q, 5, nil, testLogger())
	require.NoError(t, w.Run(cancelled))

	assert.Equal(t, 5, w.Completed())
	assert.Equal(t, 3, w.Batches())
	assert.Equal(t, 4, w.Done())
	assert.Equal(t, 1, w.Failed())
	assert.Equal(t, int64(3), s.BatchWrites())

	c, err := s.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, domain.ShallowError, c.ShallowState)
}

func TestResultWriter_PersistFailureIsFatal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := mocks.NewMockInvestmentStore()
	s.BatchWriteFn = func(context.Context, []*domain.Investment) error {
		return store.ErrUnavailable
	}
	q := NewResultQueue(2, testLogger())
	require.NoError(t, q.Enqueue(ctx, finalizedBatch(1, []string{"a"}, domain.ShallowDone)))
	require.NoError(t, q.Enqueue(ctx, finalizedBatch(2, []string{"b"}, domain.ShallowDone)))
	q.Close()

	var failures []error
	w := NewResultWriter(s, q, 2, func(err error) { failures = append(failures, err) }, testLogger())
	err := w.Run(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.Len(t, failures, 1)
	assert.Equal(t, int64(1), s.BatchWrites(), "batches after the failure are drained without writing")
	assert.Zero(t, w.Completed())
	assert.True(t, errors.Is(w.Err(), store.ErrUnavailable))
}
