package mocks

import (
	"context"
	"sync/atomic"

	"github.com/oljefondvakt/fundwatch/internal/domain"
	"github.com/oljefondvakt/fundwatch/internal/platform/memory"
	"github.com/oljefondvakt/fundwatch/internal/store"
)

// MockInvestmentStore implements store.InvestmentStore. Calls whose Fn field
// is nil go to the embedded in-memory store.
type MockInvestmentStore struct {
	*memory.InvestmentStore

	QueryByFieldFn func(ctx context.Context, field store.Field, op store.Op, value any, limit int) ([]*domain.Investment, error)
	GetMultiFn     func(ctx context.Context, ids []string) ([]*domain.Investment, error)
	BatchWriteFn   func(ctx context.Context, items []*domain.Investment) error
	PutFn          func(ctx context.Context, item *domain.Investment) error

	batchWrites atomic.Int64
}

var _ store.InvestmentStore = (*MockInvestmentStore)(nil)

// NewMockInvestmentStore creates a mock seeded with items.
func NewMockInvestmentStore(items ...*domain.Investment) *MockInvestmentStore {
	mem := memory.NewInvestmentStore()
	for _, chunk := range store.Chunk(items, store.MaxBatchWrite) {
		if err := mem.BatchWrite(context.Background(), chunk); err != nil {
			panic(err)
		}
	}
	return &MockInvestmentStore{InvestmentStore: mem}
}

// QueryByField implements store.InvestmentStore.
func (m *MockInvestmentStore) QueryByField(
	ctx context.Context,
	field store.Field,
	op store.Op,
	value any,
	limit int,
) ([]*domain.Investment, error) {
	if m.QueryByFieldFn != nil {
		return m.QueryByFieldFn(ctx, field, op, value, limit)
	}
	return m.InvestmentStore.QueryByField(ctx, field, op, value, limit)
}

// GetMulti implements store.InvestmentStore.
func (m *MockInvestmentStore) GetMulti(ctx context.Context, ids []string) ([]*domain.Investment, error) {
	if m.GetMultiFn != nil {
		return m.GetMultiFn(ctx, ids)
	}
	return m.InvestmentStore.GetMulti(ctx, ids)
}

// BatchWrite implements store.InvestmentStore.
func (m *MockInvestmentStore) BatchWrite(ctx context.Context, items []*domain.Investment) error {
	m.batchWrites.Add(1)
	if m.BatchWriteFn != nil {
		return m.BatchWriteFn(ctx, items)
	}
	return m.InvestmentStore.BatchWrite(ctx, items)
}

// Put implements store.InvestmentStore. Without PutFn it goes through
// BatchWrite, so BatchWriteFn also covers single writes.
func (m *MockInvestmentStore) Put(ctx context.Context, item *domain.Investment) error {
	if m.PutFn != nil {
		return m.PutFn(ctx, item)
	}
	return m.BatchWrite(ctx, []*domain.Investment{item})
}

// BatchWrites returns the number of BatchWrite calls.
func (m *MockInvestmentStore) BatchWrites() int64 {
	return m.batchWrites.Load()
}
