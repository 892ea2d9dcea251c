package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction statuses.
const (
	TxPending   = "pending"
	TxReserved  = "reserved" // partial payment, long-lived seat reservation
	TxCompleted = "completed"
	TxCancelled = "cancelled"
	TxRefunded  = "refunded"
)

// Transaction bundles the items of one checkout. It exclusively owns its
// items and tickets; the fiscal series keeps the owning reference back to it
// and the transaction stores only the assigned number for lookup.
type Transaction struct {
	ID            uint64          // transactions.id
	TenantID      uint64          // transactions.tenant_id
	EventID       uint64          // transactions.event_id
	CustomerID    uint64          // transactions.customer_id
	UserID        uint64          // transactions.user_id (seller)
	Status        string          // transactions.status
	Subtotal      decimal.Decimal // transactions.subtotal DECIMAL(12,2)
	TaxTotal      decimal.Decimal // transactions.tax_total
	Total         decimal.Decimal // transactions.total
	Currency      string          // transactions.currency (ISO 4217)
	PaymentMethod string          // transactions.payment_method
	PaymentRef    string          // transactions.payment_ref (acquirer authorization id)
	SeriesNumber  *uint64         // transactions.series_number (set when completed)
	CreatedAt     time.Time       // transactions.created_at
	UpdatedAt     time.Time       // transactions.updated_at
}

// TransactionItem is one priced line: a single numbered seat (Quantity 1) or
// a general-admission quantity.
type TransactionItem struct {
	ID            uint64          // transaction_items.id
	TenantID      uint64          // transaction_items.tenant_id
	TransactionID uint64          // transaction_items.transaction_id
	ZoneID        uint64          // transaction_items.zone_id
	SeatID        *uint64         // transaction_items.seat_id (required iff numbered)
	UnitPrice     decimal.Decimal // transaction_items.unit_price
	Quantity      uint32          // transaction_items.quantity
	TotalPrice    decimal.Decimal // transaction_items.total_price
}

// Hold states.
const (
	HoldActive   = "active"
	HoldConsumed = "consumed"
	HoldExpired  = "expired"
	HoldReleased = "released"
)

// Hold scopes. Offline blocks share hold semantics but settle through
// reconciliation instead of a payment settle.
const (
	HoldScopeCart    = "cart"
	HoldScopeOffline = "offline_block"
)

// Hold is a short-lived soft reservation blocking one seat (numbered) or a
// quantity of capacity (general) for an owner while the customer pays.
// Availability readers must ignore holds past ExpiresAt regardless of State.
type Hold struct {
	ID            uint64    // holds.id
	TenantID      uint64    // holds.tenant_id
	ZoneID        uint64    // holds.zone_id
	SeatID        *uint64   // holds.seat_id (nullable for general)
	Quantity      uint32    // holds.quantity (1 for numbered)
	OwnerRef      string    // holds.owner_ref (cart/session UUID or block id)
	Scope         string    // holds.scope (cart, offline_block)
	Token         string    // holds.token (opaque UUID returned to the client)
	State         string    // holds.state
	ExpiresAt     time.Time // holds.expires_at
	TransactionID *uint64   // holds.transaction_id (set at consume)
	CreatedAt     time.Time // holds.created_at
}

// Live reports whether the hold still blocks inventory at instant now.
func (h *Hold) Live(now time.Time) bool {
	return h.State == HoldActive && h.ExpiresAt.After(now)
}
