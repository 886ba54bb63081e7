// Package memory provides an in-process store.InvestmentStore. It backs
// tests and single-machine runs where durability is not required.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oljefondvakt/fundwatch/internal/domain"
	"github.com/oljefondvakt/fundwatch/internal/store"
)

// InvestmentStore keeps investments in a map guarded by a RWMutex. Every
// read and write copies, so callers never share memory with the store.
type InvestmentStore struct {
	mu    sync.RWMutex
	items map[string]*domain.Investment
	now   func() time.Time
}

var _ store.InvestmentStore = (*InvestmentStore)(nil)

// NewInvestmentStore returns an empty store.
func NewInvestmentStore() *InvestmentStore {
	return &InvestmentStore{
		items: make(map[string]*domain.Investment),
		now:   time.Now,
	}
}

// QueryByField implements store.InvestmentStore.
func (s *InvestmentStore) QueryByField(
	ctx context.Context,
	field store.Field,
	op store.Op,
	value any,
	limit int,
) ([]*domain.Investment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	values, err := store.QueryValues(op, value)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Investment
	for _, id := range s.sortedIDs() {
		ok, err := store.Matches(s.items[id], field, op, values)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, s.items[id].Clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// GetMulti implements store.InvestmentStore.
func (s *InvestmentStore) GetMulti(ctx context.Context, ids []string) ([]*domain.Investment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Investment, 0, len(ids))
	for _, id := range ids {
		if inv, ok := s.items[id]; ok {
			out = append(out, inv.Clone())
		}
	}
	return out, nil
}

// Get implements store.InvestmentStore.
func (s *InvestmentStore) Get(ctx context.Context, id string) (*domain.Investment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrInvestmentNotFound, id)
	}
	return inv.Clone(), nil
}

// Put implements store.InvestmentStore.
func (s *InvestmentStore) Put(ctx context.Context, item *domain.Investment) error {
	return s.BatchWrite(ctx, []*domain.Investment{item})
}

// BatchWrite implements store.InvestmentStore. The batch is applied
// atomically with respect to readers.
func (s *InvestmentStore) BatchWrite(ctx context.Context, items []*domain.Investment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.ValidateBatch(items); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	for _, item := range items {
		c := item.Clone()
		c.UpdatedAt = now
		s.items[c.ID] = c
	}
	return nil
}

// All implements store.InvestmentStore.
func (s *InvestmentStore) All(ctx context.Context) ([]*domain.Investment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Investment, 0, len(s.items))
	for _, id := range s.sortedIDs() {
		out = append(out, s.items[id].Clone())
	}
	return out, nil
}

// Len returns the number of stored investments.
func (s *InvestmentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// sortedIDs must be called with mu held.
func (s *InvestmentStore) sortedIDs() []string {
	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, strings.Compare)
	return ids
}
