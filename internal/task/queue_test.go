package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultQueue(t *testing.T) {
	t.Parallel()

	t.Run("drains after close", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		q := NewResultQueue(3, testLogger())

		for i := range 3 {
			require.NoError(t, q.Enqueue(ctx, &Batch{Seq: int64(i + 1)}))
		}
		q.Close()

		var seqs []int64
		for b := range q.Channel() {
			seqs = append(seqs, b.Seq)
		}
		assert.Equal(t, []int64{1, 2, 3}, seqs)
	})

	t.Run("enqueue after close", func(t *testing.T) {
		t.Parallel()
		q := NewResultQueue(1, testLogger())
		q.Close()
		q.Close()

		err := q.Enqueue(context.Background(), &Batch{})
		assert.ErrorIs(t, err, ErrQueueClosed)
	})

	t.Run("full queue blocks until consumed", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		q := NewResultQueue(1, testLogger())
		require.NoError(t, q.Enqueue(ctx, &Batch{Seq: 1}))

		sent := make(chan error, 1)
		go func() { sent <- q.Enqueue(ctx, &Batch{Seq: 2}) }()

		select {
		case <-sent:
			t.Fatal("enqueue on a full queue returned early")
		case <-time.After(20 * time.Millisecond):
		}

		assert.Equal(t, int64(1), (<-q.Channel()).Seq)
		require.NoError(t, <-sent)
		assert.Equal(t, int64(2), (<-q.Channel()).Seq)
	})

	t.Run("full queue honors context", func(t *testing.T) {
		t.Parallel()
		q := NewResultQueue(1, testLogger())
		require.NoError(t, q.Enqueue(context.Background(), &Batch{Seq: 1}))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, q.Enqueue(ctx, &Batch{Seq: 2}), context.DeadlineExceeded)
	})
}
