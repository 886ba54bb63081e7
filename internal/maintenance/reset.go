// Package maintenance restores investments left behind by interrupted or
// failed shallow runs.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oljefondvakt/fundwatch/internal/domain"
	"github.com/oljefondvakt/fundwatch/internal/store"
)

// ResetReport summarizes a reset.
type ResetReport struct {
	// Found is the number of in_progress or error items.
	Found int
	// Reset is the number restored to pending.
	Reset int
	// Missing lists the IDs that had no snapshot entry and were left alone.
	Missing []string
}

// Resetter puts in_progress and error investments back to pending from a
// known-good snapshot. It must not run concurrently with a shallow run.
type Resetter struct {
	store    store.InvestmentStore
	snapshot map[string]*domain.Investment
	logger   *slog.Logger
}

// NewResetter creates a Resetter. snapshot maps investment IDs to their
// imported state.
func NewResetter(s store.InvestmentStore, snapshot map[string]*domain.Investment, logger *slog.Logger) *Resetter {
	return &Resetter{
		store:    s,
		snapshot: snapshot,
		logger:   logger.With("component", "resetter"),
	}
}

// Reset overwrites every in_progress or error investment with its snapshot
// entry in the pending state. Pending and done items are never selected,
// so running Reset twice changes nothing the second time.
func (r *Resetter) Reset(ctx context.Context) (*ResetReport, error) {
	stuck, err := r.store.QueryByField(ctx, store.FieldShallowState, store.OpIn,
		[]domain.ShallowState{domain.ShallowInProgress, domain.ShallowError}, 0)
	if err != nil {
		return nil, fmt.Errorf("query stuck investments: %w", err)
	}

	report := &ResetReport{Found: len(stuck)}
	if len(stuck) == 0 {
		r.logger.InfoContext(ctx, "no investments to reset")
		return report, nil
	}

	restored := make([]*domain.Investment, 0, len(stuck))
	for _, inv := range stuck {
		base, ok := r.snapshot[inv.ID]
		if !ok {
			r.logger.WarnContext(ctx, "investment missing from snapshot, leaving as is",
				"investment_id", inv.ID,
				"state", inv.ShallowState)
			report.Missing = append(report.Missing, inv.ID)
			continue
		}
		inv.ResetFrom(base)
		restored = append(restored, inv)
	}

	written, err := store.WriteChunked(ctx, r.store, restored)
	report.Reset = written
	if err != nil {
		return report, fmt.Errorf("write reset investments: %w", err)
	}

	r.logger.InfoContext(ctx, "reset complete",
		"found", report.Found,
		"reset", report.Reset,
		"missing", len(report.Missing))
	return report, nil
}
