package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FiscalCounter holds the next series value for one tenant. The row is
// locked FOR UPDATE during checkout's fiscal branch and the lock is held
// through commit so series numbers are assigned in commit order.
type FiscalCounter struct {
	TenantID uint64 // fiscal_counters.tenant_id (primary key)
	Current  uint64 // fiscal_counters.current (last assigned number)
}

// FiscalSeries is the gapless per-tenant integer certifying one completed
// sale. A number is never reused: an erroneous sale is voided in place.
type FiscalSeries struct {
	ID            uint64     // fiscal_series.id
	TenantID      uint64     // fiscal_series.tenant_id
	SeriesNumber  uint64     // fiscal_series.series_number (unique per tenant)
	TransactionID uint64     // fiscal_series.transaction_id
	IssuedBy      uint64     // fiscal_series.issued_by (users.id)
	IssuedAt      time.Time  // fiscal_series.issued_at
	IsVoid        bool       // fiscal_series.is_void
	VoidedAt      *time.Time // fiscal_series.voided_at
	VoidedBy      *uint64    // fiscal_series.voided_by
	VoidReason    string     // fiscal_series.void_reason
}

// FiscalDay is the per-user per-calendar-day window bounding a session of
// sales. The date is a calendar date in America/Caracas. Two users may have
// independent open days on the same date.
type FiscalDay struct {
	ID         uint64     // fiscal_days.id
	TenantID   uint64     // fiscal_days.tenant_id
	UserID     uint64     // fiscal_days.user_id
	FiscalDate string     // fiscal_days.fiscal_date (YYYY-MM-DD, Caracas)
	OpenedAt   time.Time  // fiscal_days.opened_at
	ClosedAt   *time.Time // fiscal_days.closed_at
	IsClosed   bool       // fiscal_days.is_closed
	ZReportID  *uint64    // fiscal_days.z_report_id
}

// Fiscal report types.
const (
	ReportX = "X" // midday snapshot, does not close the day
	ReportZ = "Z" // end-of-day close report
)

// FiscalReport aggregates the completed transactions of a fiscal date.
// ReportNumber is monotone per (tenant, type).
type FiscalReport struct {
	ID               uint64          // fiscal_reports.id
	TenantID         uint64          // fiscal_reports.tenant_id
	Type             string          // fiscal_reports.type (X, Z)
	ReportNumber     uint64          // fiscal_reports.report_number
	FiscalDate       string          // fiscal_reports.fiscal_date
	UserID           *uint64         // fiscal_reports.user_id (nullable = tenant-wide)
	TransactionCount uint64          // fiscal_reports.transaction_count
	TotalAmount      decimal.Decimal // fiscal_reports.total_amount
	TotalTax         decimal.Decimal // fiscal_reports.total_tax
	MethodBreakdown  string          // fiscal_reports.method_breakdown (JSON)
	FirstSeries      uint64          // fiscal_reports.first_series (0 = none)
	LastSeries       uint64          // fiscal_reports.last_series
	GeneratedAt      time.Time       // fiscal_reports.generated_at
}

// TaxCalculation records one tax application during checkout, tying the
// transaction, the config and the amounts for later audit.
type TaxCalculation struct {
	ID            uint64          // tax_calculations.id
	TenantID      uint64          // tax_calculations.tenant_id
	TransactionID uint64          // tax_calculations.transaction_id
	TaxConfigID   uint64          // tax_calculations.tax_config_id
	BaseAmount    decimal.Decimal // tax_calculations.base_amount
	TaxAmount     decimal.Decimal // tax_calculations.tax_amount
	CreatedAt     time.Time       // tax_calculations.created_at
}

// AuditEntry is one immutable record of a state change. Writes share the DB
// transaction of the change they describe; there is no update or delete path.
type AuditEntry struct {
	ID           uint64    // audit_entries.id (monotonic insertion id)
	TenantID     uint64    // audit_entries.tenant_id
	UserID       *uint64   // audit_entries.user_id (nullable for system jobs)
	Action       string    // audit_entries.action (e.g. "hold.expired")
	ObjectType   string    // audit_entries.object_type
	ObjectID     uint64    // audit_entries.object_id
	SeriesNumber *uint64   // audit_entries.series_number (nullable)
	OldValue     string    // audit_entries.old_value (JSON snapshot)
	NewValue     string    // audit_entries.new_value (JSON snapshot)
	Description  string    // audit_entries.description
	OccurredAt   time.Time // audit_entries.occurred_at (stored UTC, keyed Caracas)
}
