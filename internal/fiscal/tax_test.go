package fiscal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeTaxes(t *testing.T) {
	cases := []struct {
		name    string
		base    string
		configs []model.TaxConfig
		want    []string
		total   string
	}{
		{
			name: "percentage rounds up",
			base: "100.01",
			configs: []model.TaxConfig{
				{ID: 1, Type: model.TaxPercentage, Rate: dec("0.16")},
			},
			// 100.01 * 0.16 = 16.0016 → 16.01 (round up)
			want:  []string{"16.01"},
			total: "16.01",
		},
		{
			name: "fixed amount",
			base: "10.00",
			configs: []model.TaxConfig{
				{ID: 1, Type: model.TaxFixed, FixedAmount: dec("2.50")},
			},
			want:  []string{"2.50"},
			total: "2.50",
		},
		{
			name: "compound",
			base: "100.00",
			configs: []model.TaxConfig{
				{ID: 1, Type: model.TaxCompound, Rate: dec("0.10")},
			},
			// 10 + 1 = 11.00
			want:  []string{"11.00"},
			total: "11.00",
		},
		{
			name: "independent configs share the base",
			base: "200.00",
			configs: []model.TaxConfig{
				{ID: 1, Type: model.TaxPercentage, Rate: dec("0.16")},
				{ID: 2, Type: model.TaxFixed, FixedAmount: dec("1.00")},
			},
			want:  []string{"32.00", "1.00"},
			total: "33.00",
		},
		{
			name:  "no configs",
			base:  "50.00",
			want:  nil,
			total: "0",
		},
		{
			name: "unknown type yields zero",
			base: "50.00",
			configs: []model.TaxConfig{
				{ID: 1, Type: "luxury"},
			},
			want:  []string{"0"},
			total: "0",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lines, total := ComputeTaxes(dec(tc.base), tc.configs)
			require.Len(t, lines, len(tc.want))
			for i, w := range tc.want {
				assert.True(t, lines[i].Amount.Equal(dec(w)), "line %d: got %s want %s", i, lines[i].Amount, w)
				assert.True(t, lines[i].Base.Equal(dec(tc.base)))
			}
			assert.True(t, total.Equal(dec(tc.total)), "total: got %s want %s", total, tc.total)
		})
	}
}

func TestDayBoundsUTC(t *testing.T) {
	from, to, err := DayBoundsUTC("2026-03-15")
	require.NoError(t, err)

	// Caracas is UTC-4 year round, so the day starts at 04:00 UTC.
	assert.Equal(t, time.Date(2026, 3, 15, 4, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 3, 16, 4, 0, 0, 0, time.UTC), to)
	assert.Equal(t, 24*time.Hour, to.Sub(from))
}

func TestDayBoundsUTCRejectsGarbage(t *testing.T) {
	for _, bad := range []string{"", "15-03-2026", "2026-3-15", "yesterday"} {
		_, _, err := DayBoundsUTC(bad)
		assert.ErrorIs(t, err, domain.ErrValidation, "input %q", bad)
	}
}

func TestFiscalDateCrossesMidnightInCaracas(t *testing.T) {
	// 02:30 UTC is still the previous calendar day in Caracas.
	at := time.Date(2026, 6, 10, 2, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026-06-09", domain.FiscalDate(at))

	at = time.Date(2026, 6, 10, 4, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-06-10", domain.FiscalDate(at))
}
