package store

import (
	"context"
	"fmt"

	"github.com/oljefondvakt/fundwatch/internal/domain"
)

// MaxBatchWrite is the largest number of items a single BatchWrite may carry.
const MaxBatchWrite = 500

// Field names an indexed investment attribute that QueryByField can filter on.
type Field string

// Queryable fields
const (
	FieldShallowState Field = "shallow_state"
	FieldDeepState    Field = "deep_state"
	FieldCountry      Field = "country"
	FieldIndustry     Field = "industry"
)

// Op is a comparison operator for QueryByField.
type Op string

// Supported operators. OpIn expects a []string value, the others a string
// or a string-backed state type.
const (
	OpEqual    Op = "="
	OpNotEqual Op = "!="
	OpIn       Op = "in"
)

// BatchWriter persists a batch of investments atomically.
type BatchWriter interface {
	// BatchWrite upserts all items in one operation. It returns
	// ErrBatchTooLarge when len(items) exceeds MaxBatchWrite and
	// ErrInvalidEntity when any item fails domain validation, in which
	// case nothing is written.
	BatchWrite(ctx context.Context, items []*domain.Investment) error
}

// InvestmentStore defines the interface for investment persistence.
// Implementations must return copies: mutating a returned investment
// never changes stored state until it is written back.
type InvestmentStore interface {
	BatchWriter

	// QueryByField returns up to limit investments whose field matches
	// value under op. A limit <= 0 means no limit. Results are ordered by ID.
	QueryByField(ctx context.Context, field Field, op Op, value any, limit int) ([]*domain.Investment, error)

	// GetMulti fetches the investments with the given IDs. Missing IDs are
	// skipped; found items keep the order of ids.
	GetMulti(ctx context.Context, ids []string) ([]*domain.Investment, error)

	// Get retrieves one investment.
	// Returns ErrInvestmentNotFound if it does not exist.
	Get(ctx context.Context, id string) (*domain.Investment, error)

	// Put upserts a single investment.
	Put(ctx context.Context, item *domain.Investment) error

	// All returns every stored investment ordered by ID.
	All(ctx context.Context) ([]*domain.Investment, error)
}

// FieldValue returns the string value of field on inv.
func FieldValue(inv *domain.Investment, field Field) (string, error) {
	switch field {
	case FieldShallowState:
		return string(inv.ShallowState), nil
	case FieldDeepState:
		return string(inv.DeepState), nil
	case FieldCountry:
		return inv.Country, nil
	case FieldIndustry:
		return inv.Industry, nil
	default:
		return "", fmt.Errorf("%w: unknown field %q", ErrInvalidQuery, field)
	}
}

// QueryValues normalizes a QueryByField value into the list of strings it
// compares against. Equality operators yield exactly one value.
func QueryValues(op Op, value any) ([]string, error) {
	switch op {
	case OpEqual, OpNotEqual:
		s, ok := scalar(value)
		if !ok {
			return nil, fmt.Errorf("%w: operator %q needs a single value, got %T", ErrInvalidQuery, op, value)
		}
		return []string{s}, nil
	case OpIn:
		switch v := value.(type) {
		case []string:
			return v, nil
		case []domain.ShallowState:
			out := make([]string, len(v))
			for i, s := range v {
				out[i] = string(s)
			}
			return out, nil
		case []domain.DeepState:
			out := make([]string, len(v))
			for i, s := range v {
				out[i] = string(s)
			}
			return out, nil
		default:
			return nil, fmt.Errorf("%w: operator %q needs a list value, got %T", ErrInvalidQuery, op, value)
		}
	default:
		return nil, fmt.Errorf("%w: unknown operator %q", ErrInvalidQuery, op)
	}
}

// Matches reports whether inv satisfies the filter. It is the reference
// semantics for backends that filter in process.
func Matches(inv *domain.Investment, field Field, op Op, values []string) (bool, error) {
	got, err := FieldValue(inv, field)
	if err != nil {
		return false, err
	}
	found := false
	for _, v := range values {
		if got == v {
			found = true
			break
		}
	}
	if op == OpNotEqual {
		return !found, nil
	}
	return found, nil
}

// ValidateBatch checks the size limit and validates every item.
func ValidateBatch(items []*domain.Investment) error {
	if len(items) > MaxBatchWrite {
		return fmt.Errorf("%w: %d items, limit %d", ErrBatchTooLarge, len(items), MaxBatchWrite)
	}
	for _, item := range items {
		if item == nil {
			return fmt.Errorf("%w: nil investment", ErrInvalidEntity)
		}
		if err := item.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidEntity, item.ID, err)
		}
	}
	return nil
}

func scalar(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case domain.ShallowState:
		return string(v), true
	case domain.DeepState:
		return string(v), true
	default:
		return "", false
	}
}

// PendingClaimer is implemented by backends that can select up to limit
// pending investments and mark them in_progress in one atomic operation.
// The returned items are already in the in_progress state. Such claims
// stay exclusive even across processes sharing the store.
type PendingClaimer interface {
	ClaimPending(ctx context.Context, limit int) ([]*domain.Investment, error)
}
