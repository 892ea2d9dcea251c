// Package notify persists notifications through a transactional outbox and
// dispatches them to the message broker. The request path only inserts rows;
// delivery failures never propagate back to the sale that triggered them.
package notify

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/model"
	"github.com/taquilla/taquilla/internal/repository"
)

// Template identifiers. The rendered subject/body is stored on the outbox
// row; downstream channels only need the id for threading and analytics.
const (
	TemplatePurchase    = "purchase_confirmation"
	TemplateReservation = "reservation_reminder"
)

// Channels.
const (
	ChannelEmail    = "email"
	ChannelSMS      = "sms"
	ChannelWhatsApp = "whatsapp"
)

// Enqueuer renders notifications and inserts them into the outbox, honoring
// the customer's channel and category preferences.
type Enqueuer struct {
	outbox    *repository.OutboxRepo
	customers *repository.CustomerRepo
}

// NewEnqueuer wires the enqueuer.
func NewEnqueuer(outbox *repository.OutboxRepo, customers *repository.CustomerRepo) *Enqueuer {
	return &Enqueuer{outbox: outbox, customers: customers}
}

// EnqueueTx renders templateID for the customer and inserts the outbox row
// inside the caller's transaction. A customer who opted out of the category,
// or who has no reachable channel, gets nothing; that is not an error.
func (e *Enqueuer) EnqueueTx(ctx context.Context, tx *sql.Tx, customerID uint64, templateID, subject, body string) error {
	c, err := e.customers.GetByID(ctx, customerID)
	if err != nil {
		return err
	}
	prefs, err := e.customers.GetPreferences(ctx, customerID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	channel, recipient := pickChannel(c, prefs)
	if channel == "" {
		return nil
	}
	if prefs != nil && !categoryEnabled(prefs, templateID) {
		return nil
	}
	return e.outbox.EnqueueTx(ctx, tx, &model.OutboxMessage{
		TemplateID: templateID,
		Channel:    channel,
		Recipient:  recipient,
		Subject:    subject,
		Body:       body,
	})
}

// pickChannel chooses the first enabled channel the customer is reachable on.
// Email wins over SMS, SMS over WhatsApp. Missing preferences mean defaults,
// everything enabled.
func pickChannel(c *model.Customer, prefs *model.NotificationPreferences) (channel, recipient string) {
	emailOK := prefs == nil || prefs.EmailEnabled
	smsOK := prefs == nil || prefs.SMSEnabled
	waOK := prefs == nil || prefs.WhatsAppEnabled
	switch {
	case c.Email != "" && emailOK:
		return ChannelEmail, c.Email
	case c.Phone != "" && smsOK:
		return ChannelSMS, c.Phone
	case c.Phone != "" && waOK:
		return ChannelWhatsApp, c.Phone
	}
	return "", ""
}

func categoryEnabled(prefs *model.NotificationPreferences, templateID string) bool {
	switch templateID {
	case TemplatePurchase:
		return prefs.Purchases
	case TemplateReservation:
		return prefs.Reminders
	}
	return true
}

// PurchaseBody renders the plain-text purchase confirmation.
func PurchaseBody(eventName string, ticketNumbers []string) (subject, body string) {
	subject = "Your tickets for " + eventName
	body = fmt.Sprintf("Your purchase for %s is confirmed. Tickets: %v. Present the QR code at the entrance.", eventName, ticketNumbers)
	return subject, body
}

// ReservationLapsedBody renders the reminder sent when a reservation runs
// past its payment deadline and its seats return to the pool.
func ReservationLapsedBody(eventName string) (subject, body string) {
	subject = "Reservation lapsed: " + eventName
	body = fmt.Sprintf("Your reservation for %s lapsed past its payment deadline and the seats were released.", eventName)
	return subject, body
}
