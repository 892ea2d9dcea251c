package inventory

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/taquilla/taquilla/internal/audit"
	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/model"
	"github.com/taquilla/taquilla/internal/notify"
	"github.com/taquilla/taquilla/internal/repository"
)

// ReservationSweeper cancels partially paid reservations whose settle
// deadline passed, returns their seats and capacity to the pool, and queues
// a reminder telling the customer the reservation lapsed.
type ReservationSweeper struct {
	tenants  *repository.TenantRepo
	txns     *repository.TransactionRepo
	seats    *repository.SeatRepo
	zones    *repository.ZoneRepo
	events   *repository.EventRepo
	auditor  *audit.Writer
	enqueuer *notify.Enqueuer
	deadline time.Duration
	interval time.Duration
	log      zerolog.Logger
	lastTick atomic.Int64
}

// NewReservationSweeper builds the sweeper. deadline is how long a reserved
// transaction may wait for the remaining payment.
func NewReservationSweeper(tenants *repository.TenantRepo, txns *repository.TransactionRepo,
	seats *repository.SeatRepo, zones *repository.ZoneRepo, events *repository.EventRepo,
	auditor *audit.Writer, enqueuer *notify.Enqueuer,
	deadline, interval time.Duration, log zerolog.Logger) *ReservationSweeper {
	return &ReservationSweeper{
		tenants:  tenants,
		txns:     txns,
		seats:    seats,
		zones:    zones,
		events:   events,
		auditor:  auditor,
		enqueuer: enqueuer,
		deadline: deadline,
		interval: interval,
		log:      log.With().Str("component", "reservation-sweeper").Logger(),
	}
}

// Run loops until the context is cancelled.
func (s *ReservationSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// Alive reports whether the polling loop completed a pass within the last
// minute, for the liveness probe.
func (s *ReservationSweeper) Alive() bool {
	last := s.lastTick.Load()
	return last > 0 && time.Since(time.Unix(last, 0)) < time.Minute
}

func (s *ReservationSweeper) tick(ctx context.Context) {
	tenants, err := s.tenants.ListActive(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("list tenants")
		return
	}
	for _, t := range tenants {
		tctx := domain.WithTenant(ctx, domain.TenantRef{ID: t.ID, Slug: t.Slug})
		n, err := s.SweepTenant(tctx)
		if err != nil {
			s.log.Error().Err(err).Str("tenant", t.Slug).Msg("sweep failed")
			continue
		}
		if n > 0 {
			s.log.Info().Str("tenant", t.Slug).Int("cancelled", n).Msg("lapsed reservations cancelled")
		}
	}
	s.lastTick.Store(time.Now().Unix())
}

// SweepTenant cancels every lapsed reservation of the tenant on the context
// and returns how many it cancelled. One reservation's failure is logged and
// does not stop the rest.
func (s *ReservationSweeper) SweepTenant(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.deadline)
	lapsed, err := s.txns.ListReservedPastDeadline(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	cancelled := 0
	for i := range lapsed {
		if err := s.cancelOne(ctx, &lapsed[i]); err != nil {
			s.log.Error().Err(err).Uint64("transaction_id", lapsed[i].ID).Msg("cancel reservation")
			continue
		}
		cancelled++
	}
	return cancelled, nil
}

func (s *ReservationSweeper) cancelOne(ctx context.Context, t *model.Transaction) error {
	items, err := s.txns.ItemsByTransaction(ctx, t.ID)
	if err != nil {
		return err
	}
	tx, err := s.txns.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	// The status CAS makes the sweep race-safe: a reservation settled
	// between list and cancel loses the guard and nothing else runs.
	if err := s.txns.TransitionTx(ctx, tx, t.ID, model.TxReserved, model.TxCancelled); err != nil {
		return err
	}
	for _, it := range items {
		if it.SeatID != nil {
			if err := s.seats.TransitionTx(ctx, tx, *it.SeatID, model.SeatReserved, model.SeatAvailable); err != nil {
				return err
			}
			continue
		}
		if err := s.zones.AddSoldTx(ctx, tx, it.ZoneID, -int64(it.Quantity)); err != nil {
			return err
		}
	}
	if err := s.auditor.AppendTx(ctx, tx, audit.Entry{
		Action:      "reservation.lapsed",
		ObjectType:  "transaction",
		ObjectID:    t.ID,
		Old:         t,
		Description: "reservation cancelled past payment deadline",
	}); err != nil {
		return err
	}
	eventName := "your event"
	if ev, err := s.events.GetByID(ctx, t.EventID); err == nil {
		eventName = ev.Name
	}
	subject, body := notify.ReservationLapsedBody(eventName)
	if err := s.enqueuer.EnqueueTx(ctx, tx, t.CustomerID, notify.TemplateReservation, subject, body); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
