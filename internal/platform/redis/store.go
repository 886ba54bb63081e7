package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oljefondvakt/fundwatch/internal/config"
	"github.com/oljefondvakt/fundwatch/internal/domain"
	"github.com/oljefondvakt/fundwatch/internal/store"
)

// maxClaimRetries bounds optimistic claim retries under contention.
const maxClaimRetries = 20

var shallowStates = []domain.ShallowState{
	domain.ShallowPending,
	domain.ShallowInProgress,
	domain.ShallowDone,
	domain.ShallowError,
}

// reader is the part of the client API shared by *redis.Client and
// *redis.Tx that lookups need.
type reader interface {
	ZRangeByLex(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

// InvestmentStore implements store.InvestmentStore and store.PendingClaimer.
type InvestmentStore struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

var (
	_ store.InvestmentStore = (*InvestmentStore)(nil)
	_ store.PendingClaimer  = (*InvestmentStore)(nil)
)

// NewClient creates a client from the store configuration and pings it.
func NewClient(ctx context.Context, cfg config.StoreConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: ping redis: %w", store.ErrUnavailable, err)
	}
	return client, nil
}

// NewInvestmentStore creates a store using keys under prefix.
func NewInvestmentStore(client *redis.Client, prefix string, logger *slog.Logger) *InvestmentStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvestmentStore{
		client: client,
		prefix: prefix,
		logger: logger.With("component", "investment_store"),
		now:    time.Now,
	}
}

func (s *InvestmentStore) docKey(id string) string {
	return s.prefix + ":inv:" + id
}

func (s *InvestmentStore) idsKey() string {
	return s.prefix + ":ids"
}

func (s *InvestmentStore) stateKey(state domain.ShallowState) string {
	return s.prefix + ":state:" + string(state)
}

// QueryByField implements store.InvestmentStore. Shallow state filters use
// the state indexes; other fields scan all documents.
func (s *InvestmentStore) QueryByField(
	ctx context.Context,
	field store.Field,
	op store.Op,
	value any,
	limit int,
) ([]*domain.Investment, error) {
	values, err := store.QueryValues(op, value)
	if err != nil {
		return nil, err
	}
	if _, err := store.FieldValue(&domain.Investment{}, field); err != nil {
		return nil, err
	}

	if field != store.FieldShallowState {
		all, err := s.All(ctx)
		if err != nil {
			return nil, err
		}
		var out []*domain.Investment
		for _, inv := range all {
			ok, err := store.Matches(inv, field, op, values)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, inv)
				if limit > 0 && len(out) == limit {
					break
				}
			}
		}
		return out, nil
	}

	var states []domain.ShallowState
	for _, st := range shallowStates {
		ok, _ := store.Matches(&domain.Investment{ShallowState: st}, field, op, values)
		if ok {
			states = append(states, st)
		}
	}
	ids, err := s.idsInStates(ctx, s.client, states, limit)
	if err != nil {
		return nil, err
	}
	return s.GetMulti(ctx, ids)
}

// idsInStates returns the IDs indexed under states, in ID order, at most
// limit of them when limit > 0.
func (s *InvestmentStore) idsInStates(
	ctx context.Context,
	c reader,
	states []domain.ShallowState,
	limit int,
) ([]string, error) {
	var merged []string
	for _, st := range states {
		ids, err := c.ZRangeByLex(ctx, s.stateKey(st), &redis.ZRangeBy{
			Min:   "-",
			Max:   "+",
			Count: int64(max(limit, 0)),
		}).Result()
		if err != nil {
			return nil, s.fail(ctx, "query_state_index", err)
		}
		merged = mergeSorted(merged, ids)
	}
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// GetMulti implements store.InvestmentStore.
func (s *InvestmentStore) GetMulti(ctx context.Context, ids []string) ([]*domain.Investment, error) {
	return s.getMulti(ctx, s.client, ids)
}

func (s *InvestmentStore) getMulti(ctx context.Context, c reader, ids []string) ([]*domain.Investment, error) {
	out := make([]*domain.Investment, 0, len(ids))
	for start := 0; start < len(ids); start += store.MaxBatchWrite {
		chunk := ids[start:min(start+store.MaxBatchWrite, len(ids))]
		keys := make([]string, len(chunk))
		for i, id := range chunk {
			keys[i] = s.docKey(id)
		}
		vals, err := c.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, s.fail(ctx, "get_multi", err)
		}
		for i, v := range vals {
			raw, ok := v.(string)
			if !ok {
				continue
			}
			inv, err := decode(raw)
			if err != nil {
				return nil, fmt.Errorf("decode investment %s: %w", chunk[i], err)
			}
			out = append(out, inv)
		}
	}
	return out, nil
}

// Get implements store.InvestmentStore.
func (s *InvestmentStore) Get(ctx context.Context, id string) (*domain.Investment, error) {
	raw, err := s.client.Get(ctx, s.docKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", store.ErrInvestmentNotFound, id)
	}
	if err != nil {
		return nil, s.fail(ctx, "get", err)
	}
	inv, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode investment %s: %w", id, err)
	}
	return inv, nil
}

// Put implements store.InvestmentStore.
func (s *InvestmentStore) Put(ctx context.Context, item *domain.Investment) error {
	return s.BatchWrite(ctx, []*domain.Investment{item})
}

// BatchWrite implements store.InvestmentStore. Documents and indexes are
// written in one MULTI/EXEC.
func (s *InvestmentStore) BatchWrite(ctx context.Context, items []*domain.Investment) error {
	if err := store.ValidateBatch(items); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	docs, err := s.encodeAll(items)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.queueWrites(ctx, pipe, items, docs)
		return nil
	})
	if err != nil {
		return s.fail(ctx, "batch_write", err)
	}
	return nil
}

func (s *InvestmentStore) encodeAll(items []*domain.Investment) ([]string, error) {
	now := s.now().UTC()
	docs := make([]string, len(items))
	for i, item := range items {
		c := item.Clone()
		c.UpdatedAt = now
		b, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("%w: encode %s: %w", store.ErrInvalidEntity, item.ID, err)
		}
		docs[i] = string(b)
	}
	return docs, nil
}

func (s *InvestmentStore) queueWrites(ctx context.Context, pipe redis.Pipeliner, items []*domain.Investment, docs []string) {
	for i, item := range items {
		for _, st := range shallowStates {
			if st != item.ShallowState {
				pipe.ZRem(ctx, s.stateKey(st), item.ID)
			}
		}
		pipe.ZAdd(ctx, s.stateKey(item.ShallowState), redis.Z{Member: item.ID})
		pipe.ZAdd(ctx, s.idsKey(), redis.Z{Member: item.ID})
		pipe.Set(ctx, s.docKey(item.ID), docs[i], 0)
	}
}

// All implements store.InvestmentStore.
func (s *InvestmentStore) All(ctx context.Context) ([]*domain.Investment, error) {
	ids, err := s.client.ZRangeByLex(ctx, s.idsKey(), &redis.ZRangeBy{Min: "-", Max: "+"}).Result()
	if err != nil {
		return nil, s.fail(ctx, "all", err)
	}
	return s.GetMulti(ctx, ids)
}

// ClaimPending implements store.PendingClaimer. It reads the pending index
// under WATCH and retries when another client changes it before EXEC.
func (s *InvestmentStore) ClaimPending(ctx context.Context, limit int) ([]*domain.Investment, error) {
	if limit <= 0 {
		return nil, nil
	}

	var claimed []*domain.Investment
	claim := func(tx *redis.Tx) error {
		claimed = nil
		ids, err := s.idsInStates(ctx, tx, []domain.ShallowState{domain.ShallowPending}, limit)
		if err != nil || len(ids) == 0 {
			return err
		}
		items, err := s.getMulti(ctx, tx, ids)
		if err != nil {
			return err
		}
		for _, inv := range items {
			if err := inv.MarkInProgress(); err != nil {
				return fmt.Errorf("%w: index out of sync for %s: %w", store.ErrUnavailable, inv.ID, err)
			}
		}
		docs, err := s.encodeAll(items)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.queueWrites(ctx, pipe, items, docs)
			return nil
		})
		if err != nil {
			return err
		}
		claimed = items
		return nil
	}

	// Both indexes a claim touches are watched, so a competing claim that
	// commits between our read and EXEC always aborts this one.
	for attempt := 0; attempt < maxClaimRetries; attempt++ {
		err := s.client.Watch(ctx, claim, s.stateKey(domain.ShallowPending), s.stateKey(domain.ShallowInProgress))
		if err == nil {
			return claimed, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			s.logger.DebugContext(ctx, "claim raced with another writer, retrying", "attempt", attempt+1)
			continue
		}
		return nil, s.fail(ctx, "claim_pending", err)
	}
	return nil, fmt.Errorf("%w: claim contention after %d attempts", store.ErrUnavailable, maxClaimRetries)
}

// fail classifies a client error. Cancellation and errors that already
// carry a store sentinel pass through; anything else means Redis failed.
func (s *InvestmentStore) fail(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		store.IsUnavailableError(err) {
		return err
	}
	s.logger.ErrorContext(ctx, "redis operation failed", "operation", op, "error", err)
	return store.NewStoreError("investment", op, "redis operation failed",
		fmt.Errorf("%w: %w", store.ErrUnavailable, err))
}

func decode(raw string) (*domain.Investment, error) {
	var inv domain.Investment
	if err := json.Unmarshal([]byte(raw), &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// mergeSorted merges two ascending string slices.
func mergeSorted(a, b []string) []string {
	if len(a) == 0 {
		return b
	}
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
