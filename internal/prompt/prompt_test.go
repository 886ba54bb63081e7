package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oljefondvakt/fundwatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompanyLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		inv  domain.Investment
		want string
	}{
		{"plain", domain.Investment{Name: "Equinor ASA", Country: "Norway"}, "Equinor ASA from Norway"},
		{"quotes", domain.Investment{Name: `The "Best" Co`, Country: "USA"}, "The Best Co from USA"},
		{"backslash", domain.Investment{Name: `A\B Holdings`, Country: `Cay\man`}, "AB Holdings from Cayman"},
		{"empty country", domain.Investment{Name: "Solo"}, "Solo from "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CompanyLine(&tt.inv))
		})
	}
}

func TestRenderBatchBuiltin(t *testing.T) {
	t.Parallel()

	tmpl, err := LoadShallow("")
	require.NoError(t, err)

	items := []*domain.Investment{
		{ID: "a", Name: "Alpha AS", Country: "Norway"},
		{ID: "b", Name: "Beta Inc", Country: "USA"},
	}
	out, err := tmpl.RenderBatch(items)

	require.NoError(t, err)
	assert.Contains(t, out, "Alpha AS from Norway\nBeta Inc from USA")
	assert.Contains(t, out, "exactly 2 entries")
}

func TestRenderDeepBuiltin(t *testing.T) {
	t.Parallel()

	tmpl, err := LoadDeep("")
	require.NoError(t, err)

	out, err := tmpl.RenderDeep(&domain.Investment{ID: "x", Name: `X "Corp"`})
	require.NoError(t, err)
	assert.Contains(t, out, "report for X Corp.")
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "custom.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("Rate these:\n{{.Companies}}"), 0o600))

	tmpl, err := LoadShallow(path)
	require.NoError(t, err)

	out, err := tmpl.RenderBatch([]*domain.Investment{{Name: "Gamma", Country: "Chile"}})
	require.NoError(t, err)
	assert.Equal(t, "Rate these:\nGamma from Chile", out)

	_, err = LoadShallow(filepath.Join(dir, "missing.tmpl"))
	assert.ErrorIs(t, err, ErrTemplate)
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	_, err := Parse("{{.Companies")
	assert.ErrorIs(t, err, ErrTemplate)

	tmpl, err := Parse("{{.Unknown}}")
	require.NoError(t, err)
	_, err = tmpl.RenderBatch(nil)
	assert.ErrorIs(t, err, ErrTemplate)
	assert.True(t, strings.Contains(err.Error(), "Unknown"))
}
