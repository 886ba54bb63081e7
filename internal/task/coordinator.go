package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/oljefondvakt/fundwatch/internal/domain"
	"github.com/oljefondvakt/fundwatch/internal/store"
)

// Coordinator hands out batches of pending investments and owns the run
// quota. All claims are serialized by one mutex that covers selection, the
// in_progress write and the quota update, so no investment is ever returned
// by two ClaimNext calls.
type Coordinator struct {
	store  store.InvestmentStore
	logger *slog.Logger

	mu         sync.Mutex
	remaining  int
	claimed    int
	claimSizes []int
}

// NewCoordinator creates a Coordinator that will claim at most quota items.
func NewCoordinator(s store.InvestmentStore, quota int, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:     s,
		logger:    logger.With("component", "coordinator"),
		remaining: max(quota, 0),
	}
}

// ClaimNext claims up to n pending investments and returns them in the
// in_progress state. The grant is min(n, remaining quota) and the quota is
// charged only for items actually claimed. An empty result means the quota
// is spent or nothing is pending. Store failures are fatal for the run and
// wrap store.ErrUnavailable.
func (c *Coordinator) ClaimNext(ctx context.Context, n int) ([]*domain.Investment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	grant := min(n, c.remaining)
	if grant <= 0 {
		return nil, nil
	}

	var (
		claimed []*domain.Investment
		err     error
	)
	if claimer, ok := c.store.(store.PendingClaimer); ok {
		claimed, err = claimer.ClaimPending(ctx, grant)
		if err != nil {
			return nil, storeFailure("claim pending", err)
		}
	} else {
		claimed, err = c.claimInProcess(ctx, grant)
		if err != nil {
			return nil, err
		}
	}

	if len(claimed) == 0 {
		c.logger.DebugContext(ctx, "no pending investments left", "remaining", c.remaining)
		return nil, nil
	}

	c.remaining -= len(claimed)
	c.claimed += len(claimed)
	c.claimSizes = append(c.claimSizes, len(claimed))

	c.logger.DebugContext(ctx, "claimed batch",
		"requested", n,
		"granted", grant,
		"claimed", len(claimed),
		"remaining", c.remaining)

	return claimed, nil
}

// claimInProcess runs query, multi-get and write as three store calls.
// Exclusivity comes from c.mu, so it only holds within this process.
func (c *Coordinator) claimInProcess(ctx context.Context, grant int) ([]*domain.Investment, error) {
	pending, err := c.store.QueryByField(ctx, store.FieldShallowState, store.OpEqual, domain.ShallowPending, grant)
	if err != nil {
		return nil, storeFailure("query pending", err)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	ids := make([]string, len(pending))
	for i, inv := range pending {
		ids[i] = inv.ID
	}
	fresh, err := c.store.GetMulti(ctx, ids)
	if err != nil {
		return nil, storeFailure("get pending", err)
	}

	claimed := make([]*domain.Investment, 0, len(fresh))
	for _, inv := range fresh {
		if err := inv.MarkInProgress(); err != nil {
			// Changed between query and get, e.g. by a concurrent reset.
			c.logger.WarnContext(ctx, "skipping investment that is no longer pending",
				"investment_id", inv.ID,
				"state", inv.ShallowState)
			continue
		}
		claimed = append(claimed, inv)
	}
	if len(claimed) == 0 {
		return nil, nil
	}

	if err := c.store.BatchWrite(ctx, claimed); err != nil {
		return nil, storeFailure("mark in progress", err)
	}
	return claimed, nil
}

// Remaining returns the unclaimed quota.
func (c *Coordinator) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Claimed returns the number of investments claimed so far.
func (c *Coordinator) Claimed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.claimed
}

// ClaimSizes returns the size of every successful claim in claim order.
func (c *Coordinator) ClaimSizes() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.claimSizes...)
}

// storeFailure marks err as fatal for the run. Cancellation is passed
// through so that shutdown is not reported as an outage.
func storeFailure(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		store.IsUnavailableError(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, store.ErrUnavailable, err)
}
