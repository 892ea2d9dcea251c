// Package fiscal owns the regulated side of a sale: the gapless series
// counter, the user-scoped fiscal day, X/Z reports and the tax engine. All
// calendar boundaries are computed in America/Caracas regardless of the UTC
// storage format.
package fiscal

import (
	"github.com/shopspring/decimal"

	"github.com/taquilla/taquilla/internal/model"
)

// TaxLine is one computed tax: the config that produced it and the amount.
type TaxLine struct {
	Config model.TaxConfig
	Base   decimal.Decimal
	Amount decimal.Decimal
}

// ComputeTaxes applies every config to the base amount and returns the lines
// plus their sum. Per-config amounts use deterministic round-up to 2 dp;
// configs apply independently to the same base (multiple compound configs
// are commutative by construction) so the caller may persist lines in any
// order without changing the total.
func ComputeTaxes(base decimal.Decimal, configs []model.TaxConfig) ([]TaxLine, decimal.Decimal) {
	lines := make([]TaxLine, 0, len(configs))
	total := decimal.Zero
	for _, cfg := range configs {
		amount := taxAmount(base, cfg)
		lines = append(lines, TaxLine{Config: cfg, Base: base, Amount: amount})
		total = total.Add(amount)
	}
	return lines, total
}

func taxAmount(base decimal.Decimal, cfg model.TaxConfig) decimal.Decimal {
	switch cfg.Type {
	case model.TaxPercentage:
		return base.Mul(cfg.Rate).RoundCeil(2)
	case model.TaxFixed:
		return cfg.FixedAmount.Round(2)
	case model.TaxCompound:
		// base*rate + (base*rate)*rate, rounded up once at the end.
		first := base.Mul(cfg.Rate)
		return first.Add(first.Mul(cfg.Rate)).RoundCeil(2)
	}
	return decimal.Zero
}
