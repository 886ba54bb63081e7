package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oljefondvakt/fundwatch/internal/domain"
	"github.com/oljefondvakt/fundwatch/internal/mocks"
	"github.com/oljefondvakt/fundwatch/internal/platform/memory"
	"github.com/oljefondvakt/fundwatch/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func base(id string) *domain.Investment {
	return &domain.Investment{ID: id, Name: "Company " + id, Country: "Norway", ShallowReport: json.RawMessage(`{}`)}
}

func TestResetter_Reset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.NewInvestmentStore()

	seed := []*domain.Investment{
		{ID: "a", Name: "Broken name", ShallowState: domain.ShallowInProgress},
		{ID: "b", Name: "Company b", ShallowState: domain.ShallowError, ShallowReport: json.RawMessage(`{"x":1}`)},
		{ID: "c", Name: "Company c", ShallowState: domain.ShallowDone, ShallowReport: json.RawMessage(`{"ok":true}`)},
		{ID: "d", Name: "Company d", ShallowState: domain.ShallowPending},
		{ID: "orphan", Name: "Orphan", ShallowState: domain.ShallowError},
	}
	require.NoError(t, s.BatchWrite(ctx, seed))

	snapshot := map[string]*domain.Investment{
		"a": base("a"), "b": base("b"), "c": base("c"), "d": base("d"),
	}
	r := NewResetter(s, snapshot, discardLogger())

	report, err := r.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Found)
	assert.Equal(t, 2, report.Reset)
	assert.Equal(t, []string{"orphan"}, report.Missing)

	a, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.ShallowPending, a.ShallowState)
	assert.Equal(t, "Company a", a.Name, "reset is a full overwrite from the snapshot")

	b, err := s.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, domain.ShallowPending, b.ShallowState)
	assert.JSONEq(t, `{}`, string(b.ShallowReport))

	c, err := s.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, domain.ShallowDone, c.ShallowState, "done items are untouched")

	orphan, err := s.Get(ctx, "orphan")
	require.NoError(t, err)
	assert.Equal(t, domain.ShallowError, orphan.ShallowState)

	assert.Equal(t, domain.ShallowState(""), snapshot["a"].ShallowState, "snapshot entries are not mutated")
}

func TestResetter_Idempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := mocks.NewMockInvestmentStore(
		&domain.Investment{ID: "a", Name: "A", ShallowState: domain.ShallowPending},
		&domain.Investment{ID: "b", Name: "B", ShallowState: domain.ShallowError},
	)
	r := NewResetter(s, map[string]*domain.Investment{"a": base("a"), "b": base("b")}, discardLogger())

	first, err := r.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Reset)

	writes := s.BatchWrites()
	second, err := r.Reset(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.Found)
	assert.Zero(t, second.Reset)
	assert.Equal(t, writes, s.BatchWrites(), "a clean store is not written")
}

func TestResetter_ChunksWrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	const n = 1200
	stuck := make([]*domain.Investment, n)
	snapshot := make(map[string]*domain.Investment, n)
	for i := range stuck {
		id := fmt.Sprintf("inv-%04d", i)
		stuck[i] = &domain.Investment{ID: id, Name: id, ShallowState: domain.ShallowInProgress}
		snapshot[id] = base(id)
	}

	s := new(mocks.TestifyMockInvestmentStore)
	s.On("QueryByField", mock.Anything, store.FieldShallowState, store.OpIn,
		[]domain.ShallowState{domain.ShallowInProgress, domain.ShallowError}, 0).Return(stuck, nil)
	s.On("BatchWrite", mock.Anything, mock.MatchedBy(func(items []*domain.Investment) bool {
		return len(items) <= store.MaxBatchWrite
	})).Return(nil).Times(3)

	report, err := NewResetter(s, snapshot, discardLogger()).Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, n, report.Reset)
	s.AssertExpectations(t)
}

func TestResetter_StoreErrors(t *testing.T) {
	t.Parallel()

	t.Run("query", func(t *testing.T) {
		t.Parallel()
		s := mocks.NewMockInvestmentStore()
		s.QueryByFieldFn = func(context.Context, store.Field, store.Op, any, int) ([]*domain.Investment, error) {
			return nil, store.ErrUnavailable
		}
		_, err := NewResetter(s, nil, discardLogger()).Reset(context.Background())
		assert.ErrorIs(t, err, store.ErrUnavailable)
	})

	t.Run("write", func(t *testing.T) {
		t.Parallel()
		s := mocks.NewMockInvestmentStore(&domain.Investment{ID: "a", Name: "A", ShallowState: domain.ShallowError})
		s.BatchWriteFn = func(context.Context, []*domain.Investment) error {
			return errors.New("quota exceeded")
		}
		report, err := NewResetter(s, map[string]*domain.Investment{"a": base("a")}, discardLogger()).
			Reset(context.Background())
		require.Error(t, err)
		assert.Zero(t, report.Reset)
	})
}
