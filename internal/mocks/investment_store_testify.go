package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/oljefondvakt/fundwatch/internal/domain"
	"github.com/oljefondvakt/fundwatch/internal/store"
)

// TestifyMockInvestmentStore is a mock of store.InvestmentStore for use with testify/mock.
type TestifyMockInvestmentStore struct {
	mock.Mock
}

var _ store.InvestmentStore = (*TestifyMockInvestmentStore)(nil)

// QueryByField is a mock implementation of store.InvestmentStore.QueryByField
func (m *TestifyMockInvestmentStore) QueryByField(
	ctx context.Context,
	field store.Field,
	op store.Op,
	value any,
	limit int,
) ([]*domain.Investment, error) {
	args := m.Called(ctx, field, op, value, limit)
	if items, ok := args.Get(0).([]*domain.Investment); ok {
		return items, args.Error(1)
	}
	return nil, args.Error(1)
}

// GetMulti is a mock implementation of store.InvestmentStore.GetMulti
func (m *TestifyMockInvestmentStore) GetMulti(ctx context.Context, ids []string) ([]*domain.Investment, error) {
	args := m.Called(ctx, ids)
	if items, ok := args.Get(0).([]*domain.Investment); ok {
		return items, args.Error(1)
	}
	return nil, args.Error(1)
}

// Get is a mock implementation of store.InvestmentStore.Get
func (m *TestifyMockInvestmentStore) Get(ctx context.Context, id string) (*domain.Investment, error) {
	args := m.Called(ctx, id)
	if inv, ok := args.Get(0).(*domain.Investment); ok {
		return inv, args.Error(1)
	}
	return nil, args.Error(1)
}

// Put is a mock implementation of store.InvestmentStore.Put
func (m *TestifyMockInvestmentStore) Put(ctx context.Context, item *domain.Investment) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

// BatchWrite is a mock implementation of store.InvestmentStore.BatchWrite
func (m *TestifyMockInvestmentStore) BatchWrite(ctx context.Context, items []*domain.Investment) error {
	args := m.Called(ctx, items)
	return args.Error(0)
}

// All is a mock implementation of store.InvestmentStore.All
func (m *TestifyMockInvestmentStore) All(ctx context.Context) ([]*domain.Investment, error) {
	args := m.Called(ctx)
	if items, ok := args.Get(0).([]*domain.Investment); ok {
		return items, args.Error(1)
	}
	return nil, args.Error(1)
}
