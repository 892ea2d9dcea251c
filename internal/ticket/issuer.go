package ticket

import (
	"context"
	"database/sql"
	"time"

	"github.com/taquilla/taquilla/internal/model"
	"github.com/taquilla/taquilla/internal/repository"
)

// Issuer emits digital tickets inside the checkout transaction, one per unit
// of every transaction item.
type Issuer struct {
	codec   *Codec
	tickets *repository.TicketRepo
	now     func() time.Time
}

// NewIssuer wires the issuer.
func NewIssuer(codec *Codec, tickets *repository.TicketRepo) *Issuer {
	return &Issuer{codec: codec, tickets: tickets, now: time.Now}
}

// IssueTx creates item.Quantity tickets per item under the given series. The
// admission window opens one hour before the event and closes when it ends.
// Runs inside the caller's (checkout) transaction.
func (i *Issuer) IssueTx(ctx context.Context, tx *sql.Tx, txn *model.Transaction,
	items []model.TransactionItem, event *model.Event, series uint64, maxUsage uint32) ([]model.DigitalTicket, error) {
	if maxUsage == 0 {
		maxUsage = 1
	}
	now := i.now()
	validFrom := event.StartsAt.Add(-time.Hour)
	validUntil := event.EndsAt
	var out []model.DigitalTicket
	for idx, it := range items {
		for seq := uint32(1); seq <= it.Quantity; seq++ {
			number := Number(series, uint32(idx)+1, seq)
			t := model.DigitalTicket{
				TransactionID:  txn.ID,
				ItemID:         it.ID,
				EventID:        event.ID,
				CustomerID:     txn.CustomerID,
				ZoneID:         it.ZoneID,
				SeatID:         it.SeatID,
				TicketNumber:   number,
				Sequence:       seq,
				ValidationHash: ValidationHash(number, event.ID, txn.CustomerID),
				MaxUsage:       maxUsage,
				ValidFrom:      validFrom,
				ValidUntil:     validUntil,
				CreatedAt:      now,
			}
			if err := i.tickets.CreateTx(ctx, tx, &t); err != nil {
				return nil, err
			}
			payload, err := i.codec.Seal(Claims{
				TicketID:     t.ID,
				TicketNumber: t.TicketNumber,
				EventID:      t.EventID,
				CustomerID:   t.CustomerID,
				ZoneID:       t.ZoneID,
				SeatID:       t.SeatID,
				ValidFrom:    validFrom.Unix(),
				ValidUntil:   validUntil.Unix(),
				MaxUsage:     maxUsage,
				CreatedAt:    now.Unix(),
			})
			if err != nil {
				return nil, err
			}
			if err := i.tickets.SetPayloadTx(ctx, tx, t.ID, payload); err != nil {
				return nil, err
			}
			t.SignedPayload = payload
			out = append(out, t)
		}
	}
	return out, nil
}
