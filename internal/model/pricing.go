package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Price stage modifier types.
const (
	StagePercentage = "percentage" // price *= (1 + value)
	StageFixedAdd   = "fixed_add"  // price += value
)

// PriceStage is a time-windowed price modifier attached to an event or to a
// single zone (ZoneID nil = event-wide). Two stages with overlapping windows
// in the same scope are forbidden at write time.
type PriceStage struct {
	ID        uint64          // price_stages.id
	TenantID  uint64          // price_stages.tenant_id
	EventID   uint64          // price_stages.event_id
	ZoneID    *uint64         // price_stages.zone_id (nullable)
	Name      string          // price_stages.name
	Ordinal   uint32          // price_stages.ordinal (application order)
	StartsAt  time.Time       // price_stages.starts_at
	EndsAt    time.Time       // price_stages.ends_at
	Type      string          // price_stages.type (percentage, fixed_add)
	Value     decimal.Decimal // price_stages.value DECIMAL(12,4)
	IsActive  bool            // price_stages.is_active
	CreatedAt time.Time       // price_stages.created_at
}

// RowPricing is a signed additive offset applied to every seat of one row,
// unique per (zone, row).
type RowPricing struct {
	ID       uint64          // row_pricing.id
	TenantID uint64          // row_pricing.tenant_id
	ZoneID   uint64          // row_pricing.zone_id
	RowLabel string          // row_pricing.row_label
	Offset   decimal.Decimal // row_pricing.offset DECIMAL(12,2), signed
}

// Tax config types.
const (
	TaxPercentage = "percentage"
	TaxFixed      = "fixed"
	TaxCompound   = "compound"
)

// TaxConfig describes one tax applied at checkout. Event-scoped configs
// override tenant-scoped ones with the same name.
type TaxConfig struct {
	ID            uint64          // tax_configs.id
	TenantID      uint64          // tax_configs.tenant_id
	EventID       *uint64         // tax_configs.event_id (nullable = tenant-wide)
	Name          string          // tax_configs.name
	Type          string          // tax_configs.type
	Rate          decimal.Decimal // tax_configs.rate (0..1 for percentage/compound)
	FixedAmount   decimal.Decimal // tax_configs.fixed_amount DECIMAL(12,2)
	IsActive      bool            // tax_configs.is_active
	EffectiveFrom time.Time       // tax_configs.effective_from
}
