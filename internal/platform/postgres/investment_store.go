package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/oljefondvakt/fundwatch/internal/domain"
	"github.com/oljefondvakt/fundwatch/internal/platform/logger"
	"github.com/oljefondvakt/fundwatch/internal/store"
)

const selectColumns = `id, name, industry, region, country, incorporation_country,
	market_value_nok, market_value_usd, voting, ownership,
	shallow_state, deep_state, shallow_report, deep_report, updated_at`

const upsertQuery = `
	INSERT INTO investments (
		id, name, industry, region, country, incorporation_country,
		market_value_nok, market_value_usd, voting, ownership,
		shallow_state, deep_state, shallow_report, deep_report, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::jsonb, $14::jsonb, $15)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		industry = EXCLUDED.industry,
		region = EXCLUDED.region,
		country = EXCLUDED.country,
		incorporation_country = EXCLUDED.incorporation_country,
		market_value_nok = EXCLUDED.market_value_nok,
		market_value_usd = EXCLUDED.market_value_usd,
		voting = EXCLUDED.voting,
		ownership = EXCLUDED.ownership,
		shallow_state = EXCLUDED.shallow_state,
		deep_state = EXCLUDED.deep_state,
		shallow_report = EXCLUDED.shallow_report,
		deep_report = EXCLUDED.deep_report,
		updated_at = EXCLUDED.updated_at
`

// claimQuery moves up to $1 pending rows to in_progress in one statement.
// SKIP LOCKED keeps concurrent claimers from blocking on, or double
// claiming, each other's rows.
const claimQuery = `
	UPDATE investments SET shallow_state = 'in_progress', updated_at = NOW()
	WHERE id IN (
		SELECT id FROM investments
		WHERE shallow_state = 'pending'
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	)
	RETURNING ` + selectColumns

// columns maps queryable fields to their column. Only these names are ever
// interpolated into SQL.
var columns = map[store.Field]string{
	store.FieldShallowState: "shallow_state",
	store.FieldDeepState:    "deep_state",
	store.FieldCountry:      "country",
	store.FieldIndustry:     "industry",
}

// InvestmentStore implements store.InvestmentStore and store.PendingClaimer
// using a PostgreSQL database as the storage backend.
type InvestmentStore struct {
	db     store.DBTX
	logger *slog.Logger
	now    func() time.Time
}

var (
	_ store.InvestmentStore = (*InvestmentStore)(nil)
	_ store.PendingClaimer  = (*InvestmentStore)(nil)
)

// NewInvestmentStore creates a store over db, which is usually a *sql.DB
// opened with the pgx driver.
func NewInvestmentStore(db store.DBTX, logger *slog.Logger) *InvestmentStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InvestmentStore{
		db:     db,
		logger: logger.With(slog.String("component", "investment_store")),
		now:    time.Now,
	}
}

// WithTx returns a store whose operations run in tx.
func (s *InvestmentStore) WithTx(tx *sql.Tx) *InvestmentStore {
	return &InvestmentStore{db: tx, logger: s.logger, now: s.now}
}

// QueryByField implements store.InvestmentStore.
func (s *InvestmentStore) QueryByField(
	ctx context.Context,
	field store.Field,
	op store.Op,
	value any,
	limit int,
) ([]*domain.Investment, error) {
	col, ok := columns[field]
	if !ok {
		return nil, fmt.Errorf("%w: unknown field %q", store.ErrInvalidQuery, field)
	}
	values, err := store.QueryValues(op, value)
	if err != nil {
		return nil, err
	}

	var (
		where string
		args  []any
	)
	switch op {
	case store.OpEqual:
		where, args = col+" = $1", []any{values[0]}
	case store.OpNotEqual:
		where, args = col+" <> $1", []any{values[0]}
	case store.OpIn:
		where, args = col+" = ANY($1)", []any{values}
	}

	query := "SELECT " + selectColumns + " FROM investments WHERE " + where + " ORDER BY id"
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	return s.queryRows(ctx, "query_by_field", query, args...)
}

// GetMulti implements store.InvestmentStore.
func (s *InvestmentStore) GetMulti(ctx context.Context, ids []string) ([]*domain.Investment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.queryRows(ctx, "get_multi",
		"SELECT "+selectColumns+" FROM investments WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.Investment, len(rows))
	for _, inv := range rows {
		byID[inv.ID] = inv
	}
	out := make([]*domain.Investment, 0, len(rows))
	for _, id := range ids {
		if inv, ok := byID[id]; ok {
			out = append(out, inv)
		}
	}
	return out, nil
}

// Get implements store.InvestmentStore.
func (s *InvestmentStore) Get(ctx context.Context, id string) (*domain.Investment, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM investments WHERE id = $1", id)
	inv, err := scanInvestment(row)
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, fmt.Errorf("%w: %s", store.ErrInvestmentNotFound, id)
		}
		return nil, s.fail(ctx, "get", err)
	}
	return inv, nil
}

// Put implements store.InvestmentStore.
func (s *InvestmentStore) Put(ctx context.Context, item *domain.Investment) error {
	return s.BatchWrite(ctx, []*domain.Investment{item})
}

// BatchWrite implements store.InvestmentStore. All rows are upserted in one
// transaction; when the store already runs in a transaction it joins it.
func (s *InvestmentStore) BatchWrite(ctx context.Context, items []*domain.Investment) error {
	if err := store.ValidateBatch(items); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	var err error
	if db, ok := s.db.(*sql.DB); ok {
		err = store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
			return s.WithTx(tx).upsert(ctx, items)
		})
	} else {
		err = s.upsert(ctx, items)
	}
	if err != nil {
		return s.fail(ctx, "batch_write", err)
	}
	return nil
}

func (s *InvestmentStore) upsert(ctx context.Context, items []*domain.Investment) error {
	stmt, err := s.db.PrepareContext(ctx, upsertQuery)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := s.now().UTC()
	for _, inv := range items {
		_, err := stmt.ExecContext(ctx,
			inv.ID, inv.Name, inv.Industry, inv.Region, inv.Country, inv.IncorporationCountry,
			inv.MarketValueNOK, inv.MarketValueUSD, inv.Voting, inv.Ownership,
			string(inv.ShallowState), string(inv.DeepState),
			jsonParam(inv.ShallowReport), jsonParam(inv.DeepReport), now,
		)
		if err != nil {
			return fmt.Errorf("upsert investment %s: %w", inv.ID, err)
		}
	}
	return nil
}

// All implements store.InvestmentStore.
func (s *InvestmentStore) All(ctx context.Context) ([]*domain.Investment, error) {
	return s.queryRows(ctx, "all", "SELECT "+selectColumns+" FROM investments ORDER BY id")
}

// ClaimPending implements store.PendingClaimer.
func (s *InvestmentStore) ClaimPending(ctx context.Context, limit int) ([]*domain.Investment, error) {
	if limit <= 0 {
		return nil, nil
	}
	claimed, err := s.queryRows(ctx, "claim_pending", claimQuery, limit)
	if err != nil {
		return nil, err
	}
	// RETURNING order is unspecified.
	slices.SortFunc(claimed, func(a, b *domain.Investment) int {
		return strings.Compare(a.ID, b.ID)
	})
	return claimed, nil
}

func (s *InvestmentStore) queryRows(ctx context.Context, op, query string, args ...any) ([]*domain.Investment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.Investment
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, s.fail(ctx, op, err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail(ctx, op, err)
	}
	return out, nil
}

// fail maps err and logs it with the operation name.
func (s *InvestmentStore) fail(ctx context.Context, op string, err error) error {
	mapped := MapError(err)
	log := logger.FromContextOrDefault(ctx, s.logger)
	log.ErrorContext(ctx, "investment store operation failed",
		slog.String("operation", op),
		slog.String("error", mapped.Error()))
	return store.NewStoreError("investment", op, "database operation failed", mapped)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInvestment(row scanner) (*domain.Investment, error) {
	var (
		inv                       domain.Investment
		shallowState, deepState   string
		shallowReport, deepReport []byte
	)
	err := row.Scan(
		&inv.ID, &inv.Name, &inv.Industry, &inv.Region, &inv.Country, &inv.IncorporationCountry,
		&inv.MarketValueNOK, &inv.MarketValueUSD, &inv.Voting, &inv.Ownership,
		&shallowState, &deepState, &shallowReport, &deepReport, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.ShallowState = domain.ShallowState(shallowState)
	inv.DeepState = domain.DeepState(deepState)
	if shallowReport != nil {
		inv.ShallowReport = json.RawMessage(shallowReport)
	}
	if deepReport != nil {
		inv.DeepReport = json.RawMessage(deepReport)
	}
	inv.UpdatedAt = inv.UpdatedAt.UTC()
	return &inv, nil
}

// jsonParam passes a report as text for a ::jsonb cast, or NULL when absent.
func jsonParam(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
