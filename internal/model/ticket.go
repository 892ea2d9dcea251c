package model

import "time"

// Digital ticket statuses.
const (
	TicketActive    = "active"
	TicketUsed      = "used"
	TicketExpired   = "expired"
	TicketCancelled = "cancelled"
	TicketRefunded  = "refunded"
)

// Validation actions for multi-entry tickets.
const (
	ActionCheckIn  = "check_in"  // increments usage
	ActionCheckOut = "check_out" // logged only
)

// DigitalTicket is one admission unit emitted on transaction completion.
// TicketNumber is "<series>-<item index>-<sequence>". SignedPayload is the
// base64 ciphertext of the ticket claims; ValidationHash allows a quick
// authenticity check without decrypting.
type DigitalTicket struct {
	ID             uint64     // digital_tickets.id
	TenantID       uint64     // digital_tickets.tenant_id
	TransactionID  uint64     // digital_tickets.transaction_id
	ItemID         uint64     // digital_tickets.item_id
	EventID        uint64     // digital_tickets.event_id
	CustomerID     uint64     // digital_tickets.customer_id
	ZoneID         uint64     // digital_tickets.zone_id
	SeatID         *uint64    // digital_tickets.seat_id (nullable)
	TicketNumber   string     // digital_tickets.ticket_number (unique per tenant)
	Sequence       uint32     // digital_tickets.sequence (1-based within item)
	SignedPayload  string     // digital_tickets.signed_payload
	ValidationHash string     // digital_tickets.validation_hash (hex SHA-256)
	UsageCount     uint32     // digital_tickets.usage_count
	MaxUsage       uint32     // digital_tickets.max_usage (default 1)
	Status         string     // digital_tickets.status
	ValidFrom      time.Time  // digital_tickets.valid_from
	ValidUntil     time.Time  // digital_tickets.valid_until
	FirstUsedAt    *time.Time // digital_tickets.first_used_at
	CreatedAt      time.Time  // digital_tickets.created_at
}

// ValidationEvent is the append-only record of one validation attempt,
// successful or not.
type ValidationEvent struct {
	ID          uint64    // validation_events.id
	TenantID    uint64    // validation_events.tenant_id
	TicketID    uint64    // validation_events.ticket_id
	Result      bool      // validation_events.result
	Reason      string    // validation_events.reason (empty when valid)
	Method      string    // validation_events.method (payload, number)
	Action      string    // validation_events.action (check_in, check_out, "")
	SystemID    string    // validation_events.system_id (scanner/device)
	Location    string    // validation_events.location
	UsageBefore uint32    // validation_events.usage_before
	UsageAfter  uint32    // validation_events.usage_after
	OccurredAt  time.Time // validation_events.occurred_at
}
