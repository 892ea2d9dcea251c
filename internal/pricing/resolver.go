// Package pricing resolves the unit price of a zone (and optionally a row)
// at a given instant: zone base price, plus the row offset, plus the active
// time-staged modifiers in deterministic order. The result is always a
// non-negative 2-dp decimal together with the list of applied modifiers for
// the receipt and the audit trail.
package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/model"
)

// StageSource yields the active price stages matching (event, zone, instant),
// ordered zone-scoped first, then by ordinal with id as tie-breaker.
type StageSource interface {
	ActiveAt(ctx context.Context, eventID, zoneID uint64, at time.Time) ([]model.PriceStage, error)
}

// RowSource yields the additive offset of one row, or domain.ErrNotFound.
type RowSource interface {
	Get(ctx context.Context, zoneID uint64, rowLabel string) (*model.RowPricing, error)
}

// ZoneSource yields the zone carrying the base price.
type ZoneSource interface {
	GetByID(ctx context.Context, id uint64) (*model.Zone, error)
}

// AppliedModifier is one step of the resolution, kept for receipts.
type AppliedModifier struct {
	Kind    string          `json:"kind"` // "row_offset", "percentage", "fixed_add", "clamp"
	StageID uint64          `json:"stage_id,omitempty"`
	Name    string          `json:"name,omitempty"`
	Value   decimal.Decimal `json:"value"`
}

// Quote is the resolver output.
type Quote struct {
	UnitPrice decimal.Decimal   `json:"unit_price"`
	Applied   []AppliedModifier `json:"applied"`
	Clamped   bool              `json:"clamped"` // result went negative and was clamped to 0
}

// Resolver computes quotes. Querying a future instant is allowed and used by
// price previews.
type Resolver struct {
	zones  ZoneSource
	stages StageSource
	rows   RowSource
}

// NewResolver wires the resolver to its sources.
func NewResolver(zones ZoneSource, stages StageSource, rows RowSource) *Resolver {
	return &Resolver{zones: zones, stages: stages, rows: rows}
}

// Resolve returns the unit price for (zone, optional row) at instant at.
func (r *Resolver) Resolve(ctx context.Context, zoneID uint64, rowLabel string, at time.Time) (*Quote, error) {
	zone, err := r.zones.GetByID(ctx, zoneID)
	if err != nil {
		return nil, err
	}
	price := zone.BasePrice
	var applied []AppliedModifier

	if rowLabel != "" {
		rp, err := r.rows.Get(ctx, zoneID, rowLabel)
		switch {
		case err == nil:
			price = price.Add(rp.Offset)
			applied = append(applied, AppliedModifier{Kind: "row_offset", Name: rowLabel, Value: rp.Offset})
		case errors.Is(err, domain.ErrNotFound):
			// no offset configured for this row
		default:
			return nil, err
		}
	}

	stages, err := r.stages.ActiveAt(ctx, zone.EventID, zoneID, at)
	if err != nil {
		return nil, err
	}
	price, stageApplied := ApplyStages(price, stages)
	applied = append(applied, stageApplied...)

	q := &Quote{Applied: applied}
	// Round half away from zero to 2 dp, then clamp negatives to zero.
	price = price.Round(2)
	if price.IsNegative() {
		q.Clamped = true
		q.Applied = append(q.Applied, AppliedModifier{Kind: "clamp", Value: price})
		price = decimal.Zero
	}
	q.UnitPrice = price
	return q, nil
}

// ApplyStages folds the stage modifiers over a starting price. The slice
// must already be in application order; the fold itself is pure so its
// determinism is testable without a database.
func ApplyStages(price decimal.Decimal, stages []model.PriceStage) (decimal.Decimal, []AppliedModifier) {
	var applied []AppliedModifier
	one := decimal.NewFromInt(1)
	for _, s := range stages {
		switch s.Type {
		case model.StagePercentage:
			price = price.Mul(one.Add(s.Value))
		case model.StageFixedAdd:
			price = price.Add(s.Value)
		default:
			continue // unknown types are skipped, never guessed
		}
		applied = append(applied, AppliedModifier{
			Kind:    s.Type,
			StageID: s.ID,
			Name:    s.Name,
			Value:   s.Value,
		})
	}
	return price, applied
}
