package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/oljefondvakt/fundwatch/internal/domain"
)

// LoadSnapshot reads a snapshot file: a JSON array of investments.
func LoadSnapshot(path string) ([]*domain.Investment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadSnapshot(f)
}

// ReadSnapshot decodes a snapshot. Items without a state are treated as
// pending; every item must otherwise be valid.
func ReadSnapshot(r io.Reader) ([]*domain.Investment, error) {
	var items []*domain.Investment
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		if item == nil {
			return nil, fmt.Errorf("%w: entry %d is null", ErrInvalidSnapshot, i)
		}
		if item.ShallowState == "" {
			item.ShallowState = domain.ShallowPending
		}
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("%w: entry %d (%s): %w", ErrInvalidSnapshot, i, item.ID, err)
		}
		if _, dup := seen[item.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidSnapshot, item.ID)
		}
		seen[item.ID] = struct{}{}
	}
	return items, nil
}

// WriteSnapshot encodes items as an indented JSON array.
func WriteSnapshot(w io.Writer, items []*domain.Investment) error {
	if items == nil {
		items = []*domain.Investment{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(items)
}

// IndexByID maps items by ID.
func IndexByID(items []*domain.Investment) map[string]*domain.Investment {
	m := make(map[string]*domain.Investment, len(items))
	for _, item := range items {
		m[item.ID] = item
	}
	return m
}
