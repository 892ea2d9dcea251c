package inventory

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/taquilla/taquilla/internal/audit"
	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/model"
	"github.com/taquilla/taquilla/internal/repository"
)

const expireBatch = 500

// Expirer periodically sweeps lapsed holds per tenant, returning seats and
// capacity to the pool and emitting audit entries. Availability math never
// depends on it; the sweep only reclaims rows that readers already ignore.
type Expirer struct {
	tenants  *repository.TenantRepo
	holds    *repository.HoldRepo
	seats    *repository.SeatRepo
	auditor  *audit.Writer
	interval time.Duration
	log      zerolog.Logger
	lastTick atomic.Int64 // unix seconds of the last completed pass
}

// NewExpirer builds a hold expirer sweeping at the given interval.
func NewExpirer(tenants *repository.TenantRepo, holds *repository.HoldRepo, seats *repository.SeatRepo, auditor *audit.Writer, interval time.Duration, log zerolog.Logger) *Expirer {
	return &Expirer{
		tenants:  tenants,
		holds:    holds,
		seats:    seats,
		auditor:  auditor,
		interval: interval,
		log:      log.With().Str("component", "hold-expirer").Logger(),
	}
}

// Run loops until the context is cancelled. Each tick sweeps every active
// tenant; one tenant's failure is logged and does not stop the others.
func (e *Expirer) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// Alive reports whether the polling loop completed a pass within the last
// minute, for the liveness probe.
func (e *Expirer) Alive() bool {
	last := e.lastTick.Load()
	return last > 0 && time.Since(time.Unix(last, 0)) < time.Minute
}

func (e *Expirer) tick(ctx context.Context) {
	tenants, err := e.tenants.ListActive(ctx)
	if err != nil {
		e.log.Error().Err(err).Msg("list tenants")
		return
	}
	for _, t := range tenants {
		tctx := domain.WithTenant(ctx, domain.TenantRef{ID: t.ID, Slug: t.Slug})
		n, err := e.SweepTenant(tctx)
		if err != nil {
			e.log.Error().Err(err).Str("tenant", t.Slug).Msg("sweep failed")
			continue
		}
		if n > 0 {
			e.log.Info().Str("tenant", t.Slug).Int("expired", n).Msg("holds expired")
		}
	}
	e.lastTick.Store(time.Now().Unix())
}

// SweepTenant expires due holds for the tenant on the context, returning the
// number expired. Exported so the sweep subcommand can run one-shot passes.
func (e *Expirer) SweepTenant(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := e.sweepBatch(ctx)
		if err != nil {
			return total, err
		}
		total += n
		if n < expireBatch {
			return total, nil
		}
	}
}

func (e *Expirer) sweepBatch(ctx context.Context) (int, error) {
	now := time.Now()
	tx, err := e.holds.DB().BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	due, err := e.holds.ExpireDueTx(ctx, tx, now, expireBatch)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}
	var seatIDs []uint64
	for _, h := range due {
		if h.SeatID != nil {
			seatIDs = append(seatIDs, *h.SeatID)
		}
	}
	// Held seats go back to available. General capacity needs no counter
	// change: expired holds simply stop counting against the zone.
	if err := e.seats.BulkTransitionTx(ctx, tx, seatIDs, model.SeatHeld, model.SeatAvailable); err != nil {
		return 0, err
	}
	for _, h := range due {
		if err := e.auditor.AppendTx(ctx, tx, audit.Entry{
			Action:      "hold.expired",
			ObjectType:  "hold",
			ObjectID:    h.ID,
			Old:         h,
			Description: "hold expired by sweep",
		}); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return len(due), nil
}
