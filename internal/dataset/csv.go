package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/oljefondvakt/fundwatch/internal/domain"
)

// csvColumns is the fixed column order of the holdings CSV. The header row
// in the file is skipped, not interpreted.
var csvColumns = []string{
	"industry", "region", "country", "name", "marketValueNok",
	"marketValueUsd", "voting", "ownership", "incorporationCountry",
}

// FromCSV builds the base snapshot from a ';'-separated holdings CSV. IDs
// are slugs of the company name; a repeated slug gets the lowest free numeric
// suffix so that no holding is silently dropped.
func FromCSV(r io.Reader) ([]*domain.Investment, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing header row", ErrInvalidCSV)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidCSV, err)
	}

	var (
		items []*domain.Investment
		used  = make(map[string]bool)
	)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCSV, err)
		}
		if len(row) < len(csvColumns) {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("%w: line %d has %d columns, want %d",
				ErrInvalidCSV, line, len(row), len(csvColumns))
		}
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
		}

		inv := &domain.Investment{
			Industry:             row[0],
			Region:               row[1],
			Country:              row[2],
			Name:                 row[3],
			MarketValueNOK:       row[4],
			MarketValueUSD:       row[5],
			Voting:               row[6],
			Ownership:            row[7],
			IncorporationCountry: row[8],
			ShallowState:         domain.ShallowPending,
		}
		if inv.Name == "" {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("%w: line %d has no company name", ErrInvalidCSV, line)
		}

		base := domain.Slugify(inv.Name)
		id := base
		for n := 2; used[id]; n++ {
			id = base + "-" + strconv.Itoa(n)
		}
		used[id] = true
		inv.ID = id
		items = append(items, inv)
	}
	return items, nil
}
