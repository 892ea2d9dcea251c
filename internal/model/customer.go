package model

import "time"

// Customer is a de-duplicated contact within one tenant. Identification and
// email are unique within the tenant when present; at least one of phone or
// email is required.
type Customer struct {
	ID             uint64    // customers.id
	TenantID       uint64    // customers.tenant_id
	Name           string    // customers.name
	Surname        string    // customers.surname
	Phone          string    // customers.phone (optional)
	Email          string    // customers.email (optional)
	Identification string    // customers.identification (optional, letter-digits)
	IsActive       bool      // customers.is_active
	CreatedAt      time.Time // customers.created_at
	UpdatedAt      time.Time // customers.updated_at
}

// NotificationPreferences is auto-created with defaults when a customer is
// first registered. All channels and categories default to enabled.
type NotificationPreferences struct {
	ID              uint64 // notification_preferences.id
	TenantID        uint64 // notification_preferences.tenant_id
	CustomerID      uint64 // notification_preferences.customer_id
	EmailEnabled    bool   // notification_preferences.email_enabled
	SMSEnabled      bool   // notification_preferences.sms_enabled
	WhatsAppEnabled bool   // notification_preferences.whatsapp_enabled
	Purchases       bool   // notification_preferences.purchases
	Reminders       bool   // notification_preferences.reminders
	Marketing       bool   // notification_preferences.marketing
	PreferredHours  string // notification_preferences.preferred_hours (e.g. "09-21")
	Language        string // notification_preferences.language (e.g. "es")
}

// Outbox message statuses. The core is done once the row is persisted; an
// external worker flips the status.
const (
	OutboxPending = "pending"
	OutboxSent    = "sent"
	OutboxFailed  = "failed"
)

// OutboxMessage is one queued notification. The dispatch worker publishes it
// to the broker and records the outcome; failures never propagate to the
// request that enqueued the message.
type OutboxMessage struct {
	ID         uint64     // notification_outbox.id
	TenantID   uint64     // notification_outbox.tenant_id
	TemplateID string     // notification_outbox.template_id
	Channel    string     // notification_outbox.channel (email, sms, whatsapp)
	Recipient  string     // notification_outbox.recipient
	Subject    string     // notification_outbox.subject
	Body       string     // notification_outbox.body (rendered)
	Status     string     // notification_outbox.status
	TaskID     string     // notification_outbox.task_id (broker delivery tag)
	FailReason string     // notification_outbox.fail_reason
	CreatedAt  time.Time  // notification_outbox.created_at
	SentAt     *time.Time // notification_outbox.sent_at
}
