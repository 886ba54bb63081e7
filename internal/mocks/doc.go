// Package mocks provides centralized mock implementations for testing.
//
// Mocks use function fields: a nil field falls back to a default. The
// investment store mocks delegate to an in-memory store so that tests only
// override the calls they care about:
//
//	s := mocks.NewMockInvestmentStore()
//	s.BatchWriteFn = func(ctx context.Context, items []*domain.Investment) error {
//	    return store.ErrUnavailable
//	}
package mocks
