package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Venue is a physical location owned by a tenant. Parent of events.
type Venue struct {
	ID        uint64    // venues.id
	TenantID  uint64    // venues.tenant_id
	Name      string    // venues.name
	Address   string    // venues.address
	CreatedAt time.Time // venues.created_at
	UpdatedAt time.Time // venues.updated_at
}

// Event statuses. Transitions: draft → active → (closed | cancelled).
const (
	EventDraft     = "draft"
	EventActive    = "active"
	EventClosed    = "closed"
	EventCancelled = "cancelled"
)

// Event is a dated occurrence at a venue. Parent of zones. Once active,
// capacity-affecting changes on its zones are rejected.
type Event struct {
	ID            uint64    // events.id
	TenantID      uint64    // events.tenant_id
	VenueID       uint64    // events.venue_id
	Name          string    // events.name
	StartsAt      time.Time // events.starts_at (UTC, must precede EndsAt)
	EndsAt        time.Time // events.ends_at
	Status        string    // events.status
	HoldTTLSecs   uint32    // events.hold_ttl_secs (0 = default 10 min)
	CreatedAt     time.Time // events.created_at
	UpdatedAt     time.Time // events.updated_at
}

// Zone types: numbered zones carry one Seat row per place, general zones
// carry only counters.
const (
	ZoneNumbered = "numbered"
	ZoneGeneral  = "general"
)

// Zone is a priced region of an event. For numbered zones Capacity must
// equal the count of its seats; for general zones it bounds sold + holds.
type Zone struct {
	ID        uint64          // zones.id
	TenantID  uint64          // zones.tenant_id
	EventID   uint64          // zones.event_id
	Name      string          // zones.name
	Type      string          // zones.type (numbered, general)
	Capacity  uint32          // zones.capacity
	BasePrice decimal.Decimal // zones.base_price DECIMAL(12,2), >= 0
	Sold      uint32          // zones.sold (general zones only)
	CreatedAt time.Time       // zones.created_at
	UpdatedAt time.Time       // zones.updated_at
}

// Seat states. held/reserved/sold/refunded follow the sale lifecycle;
// blocked is a static admin state replacing available.
const (
	SeatAvailable = "available"
	SeatHeld      = "held"
	SeatReserved  = "reserved"
	SeatSold      = "sold"
	SeatRefunded  = "refunded"
	SeatBlocked   = "blocked"
)

// Seat is a numbered place inside a numbered zone, unique per (zone, row,
// number). Seats are generated when the zone is first saved and may later be
// soft-disabled but never renumbered.
type Seat struct {
	ID        uint64    // seats.id
	TenantID  uint64    // seats.tenant_id
	ZoneID    uint64    // seats.zone_id
	RowLabel  string    // seats.row_label
	Number    uint32    // seats.number
	Label     string    // seats.label (e.g. "A-12")
	State     string    // seats.state
	TableID   *uint64   // seats.table_id (nullable, named seat group)
	CreatedAt time.Time // seats.created_at
	UpdatedAt time.Time // seats.updated_at
}

// SeatTable is a named bag of seats in one numbered zone, sold together at
// the operator's discretion.
type SeatTable struct {
	ID       uint64 // seat_tables.id
	TenantID uint64 // seat_tables.tenant_id
	ZoneID   uint64 // seat_tables.zone_id
	Name     string // seat_tables.name
}
