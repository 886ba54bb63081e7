package dataset

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/oljefondvakt/fundwatch/internal/domain"
	"github.com/oljefondvakt/fundwatch/internal/store"
)

// Import writes the snapshot to the store with every item reset to
// pending, in MaxBatchWrite chunks. Existing items with the same ID are
// overwritten. It returns the number of items written.
func Import(ctx context.Context, w store.BatchWriter, snapshot []*domain.Investment, logger *slog.Logger) (int, error) {
	items := make([]*domain.Investment, len(snapshot))
	for i, inv := range snapshot {
		c := inv.Clone()
		c.ShallowState = domain.ShallowPending
		items[i] = c
	}

	written, err := store.WriteChunked(ctx, w, items)
	if err != nil {
		return written, fmt.Errorf("import: %w", err)
	}
	logger.InfoContext(ctx, "imported investments", "count", written)
	return written, nil
}

// Export writes every stored investment to out as indented JSON and
// returns how many were written.
func Export(ctx context.Context, s store.InvestmentStore, out io.Writer) (int, error) {
	items, err := s.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	if err := WriteSnapshot(out, items); err != nil {
		return 0, fmt.Errorf("export: encode: %w", err)
	}
	return len(items), nil
}

// DeepCandidates returns the investments that qualify for a deep report:
// no finished deep report and a shallow risk category of "1". Items with
// an unreadable shallow report are skipped.
func DeepCandidates(ctx context.Context, s store.InvestmentStore, logger *slog.Logger) ([]*domain.Investment, error) {
	items, err := s.QueryByField(ctx, store.FieldDeepState, store.OpNotEqual, domain.DeepDone, 0)
	if err != nil {
		return nil, fmt.Errorf("query deep candidates: %w", err)
	}

	var out []*domain.Investment
	for _, inv := range items {
		report, err := inv.ParseShallowReport()
		if err != nil {
			logger.WarnContext(ctx, "skipping investment with unreadable shallow report",
				"investment_id", inv.ID,
				"error", err)
			continue
		}
		if report != nil && report.RiskAssessment.Category == domain.HighestRiskCategory {
			out = append(out, inv)
		}
	}
	return out, nil
}
