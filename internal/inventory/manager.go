// Package inventory is the hold manager: atomic seat state transitions,
// general-admission capacity accounting and the background sweeps that
// return lapsed holds to the pool. Correctness never depends on the sweeps
// running on time; every availability read and every consume recomputes
// liveness from non-expired holds under the same lock.
package inventory

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/taquilla/taquilla/internal/audit"
	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/model"
	"github.com/taquilla/taquilla/internal/repository"
)

// Manager coordinates holds over seats and general-admission counters.
type Manager struct {
	holds      *repository.HoldRepo
	seats      *repository.SeatRepo
	zones      *repository.ZoneRepo
	auditor    *audit.Writer
	defaultTTL time.Duration
	now        func() time.Time
}

// NewManager wires the hold manager. defaultTTL applies when the event does
// not configure its own.
func NewManager(holds *repository.HoldRepo, seats *repository.SeatRepo, zones *repository.ZoneRepo, auditor *audit.Writer, defaultTTL time.Duration) *Manager {
	return &Manager{
		holds:      holds,
		seats:      seats,
		zones:      zones,
		auditor:    auditor,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// HoldRequest describes one hold acquisition.
type HoldRequest struct {
	ZoneID   uint64
	SeatID   *uint64 // required for numbered zones
	Quantity uint32  // required for general zones, ignored for numbered
	OwnerRef string  // cart/session id or offline block id
	Scope    string  // model.HoldScopeCart or model.HoldScopeOffline
	TTL      time.Duration
}

// Hold acquires a hold atomically. Numbered: compare-and-set the seat from
// available to held. General: insert the hold and re-check capacity under
// the zone row lock. A lost race returns domain.ErrConflict naming the
// contended resource.
func (m *Manager) Hold(ctx context.Context, req HoldRequest) (*model.Hold, error) {
	zone, err := m.zones.GetByID(ctx, req.ZoneID)
	if err != nil {
		return nil, err
	}
	ttl := req.TTL
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	if req.Scope == "" {
		req.Scope = model.HoldScopeCart
	}
	now := m.now()
	h := &model.Hold{
		ZoneID:    zone.ID,
		OwnerRef:  req.OwnerRef,
		Scope:     req.Scope,
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(ttl),
	}

	tx, err := m.holds.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	switch zone.Type {
	case model.ZoneNumbered:
		if req.SeatID == nil {
			return nil, domain.Validationf("seat is required for numbered zone %d", zone.ID)
		}
		seat, err := m.seats.GetByID(ctx, *req.SeatID)
		if err != nil {
			return nil, err
		}
		if seat.ZoneID != zone.ID {
			return nil, domain.Validationf("seat %d is not in zone %d", seat.ID, zone.ID)
		}
		// Lapsed holds are expired here, not left for the sweep: a seat whose
		// hold ran out must be acquirable immediately.
		if err := m.expireLapsedTx(ctx, tx, zone.ID, now); err != nil {
			return nil, err
		}
		if err := m.seats.TransitionTx(ctx, tx, seat.ID, model.SeatAvailable, model.SeatHeld); err != nil {
			return nil, err
		}
		h.SeatID = &seat.ID
		h.Quantity = 1
	case model.ZoneGeneral:
		if req.Quantity == 0 {
			return nil, domain.Validationf("quantity is required for general zone %d", zone.ID)
		}
		// Zone row lock serializes the capacity re-check against concurrent
		// hold inserts; availability counts only non-expired holds.
		locked, err := m.zones.GetForUpdateTx(ctx, tx, zone.ID)
		if err != nil {
			return nil, err
		}
		live, err := m.holds.LiveQuantityTx(ctx, tx, zone.ID, now)
		if err != nil {
			return nil, err
		}
		if uint64(locked.Sold)+uint64(live)+uint64(req.Quantity) > uint64(locked.Capacity) {
			return nil, domain.Conflictf("zone %d capacity exhausted", zone.ID)
		}
		h.Quantity = req.Quantity
	default:
		return nil, domain.Internalf("zone %d has unknown type %q", zone.ID, zone.Type)
	}

	if err := m.holds.CreateTx(ctx, tx, h); err != nil {
		return nil, err
	}
	if err := m.auditor.AppendTx(ctx, tx, audit.Entry{
		Action:      "hold.created",
		ObjectType:  "hold",
		ObjectID:    h.ID,
		New:         h,
		Description: "hold acquired",
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return h, nil
}

// expireLapsedTx expires the zone's lapsed holds inside tx, returning their
// held seats to available and auditing each transition. Acquisition and
// availability call this first; correctness never waits for the sweep.
func (m *Manager) expireLapsedTx(ctx context.Context, tx *sql.Tx, zoneID uint64, now time.Time) error {
	due, err := m.holds.ExpireDueForZoneTx(ctx, tx, zoneID, now)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}
	var seatIDs []uint64
	for _, h := range due {
		if h.SeatID != nil {
			seatIDs = append(seatIDs, *h.SeatID)
		}
	}
	if err := m.seats.BulkTransitionTx(ctx, tx, seatIDs, model.SeatHeld, model.SeatAvailable); err != nil {
		return err
	}
	for i := range due {
		if err := m.auditor.AppendTx(ctx, tx, audit.Entry{
			Action:      "hold.expired",
			ObjectType:  "hold",
			ObjectID:    due[i].ID,
			Old:         due[i],
			Description: "hold expired on access",
		}); err != nil {
			return err
		}
	}
	return nil
}

// Release returns a hold to the pool: hold active → released, seat held →
// available when the hold is the current holder. Releasing a hold that is
// already released, expired or consumed is a no-op.
func (m *Manager) Release(ctx context.Context, token string) error {
	tx, err := m.holds.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	h, err := m.holds.GetByTokenForUpdateTx(ctx, tx, token)
	if err != nil {
		return err
	}
	if h.State != model.HoldActive {
		return nil // idempotent re-release
	}
	if err := m.holds.TransitionTx(ctx, tx, h.ID, model.HoldActive, model.HoldReleased); err != nil {
		return err
	}
	if h.SeatID != nil {
		if err := m.seats.TransitionTx(ctx, tx, *h.SeatID, model.SeatHeld, model.SeatAvailable); err != nil {
			return err
		}
	}
	if err := m.auditor.AppendTx(ctx, tx, audit.Entry{
		Action:      "hold.released",
		ObjectType:  "hold",
		ObjectID:    h.ID,
		Old:         h,
		Description: "hold released",
	}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Extend pushes a live hold's expiry forward by ttl from now. A hold that is
// no longer active, or already past its expiry, cannot be extended.
func (m *Manager) Extend(ctx context.Context, token string, ttl time.Duration) (*model.Hold, error) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	now := m.now()
	tx, err := m.holds.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	h, err := m.holds.GetByTokenForUpdateTx(ctx, tx, token)
	if err != nil {
		return nil, err
	}
	newExpiry := now.Add(ttl)
	if err := m.holds.ExtendTx(ctx, tx, h.ID, newExpiry, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	h.ExpiresAt = newExpiry
	return h, nil
}

// ConsumeTx converts a hold into a sale inside the caller's (checkout)
// transaction: hold active → consumed, seat held → sold, or sold counter
// increment for general zones. Liveness is re-checked under the row lock; a
// hold that lapsed between payment and commit aborts the whole checkout.
func (m *Manager) ConsumeTx(ctx context.Context, tx *sql.Tx, h *model.Hold, transactionID uint64) error {
	now := m.now()
	if err := m.holds.ConsumeTx(ctx, tx, h.ID, transactionID, now); err != nil {
		return err
	}
	if err := m.auditor.AppendTx(ctx, tx, audit.Entry{
		Action:      "hold.consumed",
		ObjectType:  "hold",
		ObjectID:    h.ID,
		Old:         h,
		Description: "hold consumed by sale",
	}); err != nil {
		return err
	}
	if h.SeatID != nil {
		return m.seats.TransitionTx(ctx, tx, *h.SeatID, model.SeatHeld, model.SeatSold)
	}
	return m.zones.AddSoldTx(ctx, tx, h.ZoneID, int64(h.Quantity))
}

// ReserveTx converts a hold into a long-lived reservation (partial-payment
// path) inside the caller's transaction: seat held → reserved. The hold is
// consumed; the reservation is tracked on the transaction.
func (m *Manager) ReserveTx(ctx context.Context, tx *sql.Tx, h *model.Hold, transactionID uint64) error {
	now := m.now()
	if err := m.holds.ConsumeTx(ctx, tx, h.ID, transactionID, now); err != nil {
		return err
	}
	if err := m.auditor.AppendTx(ctx, tx, audit.Entry{
		Action:      "hold.consumed",
		ObjectType:  "hold",
		ObjectID:    h.ID,
		Old:         h,
		Description: "hold consumed by reservation",
	}); err != nil {
		return err
	}
	if h.SeatID != nil {
		return m.seats.TransitionTx(ctx, tx, *h.SeatID, model.SeatHeld, model.SeatReserved)
	}
	// General capacity for a reservation stays blocked via the sold counter
	// until the reservation settles or lapses.
	return m.zones.AddSoldTx(ctx, tx, h.ZoneID, int64(h.Quantity))
}

// Availability is the effective free capacity of a zone: for numbered zones
// the count of available seats after lapsed holds are expired; for general
// zones capacity minus sold minus live holds. Always recomputed from
// non-expired holds, never from sweep state.
func (m *Manager) Availability(ctx context.Context, zoneID uint64) (uint32, error) {
	zone, err := m.zones.GetByID(ctx, zoneID)
	if err != nil {
		return 0, err
	}
	now := m.now()
	tx, err := m.holds.DB().BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var free uint32
	if zone.Type == model.ZoneNumbered {
		if err := m.expireLapsedTx(ctx, tx, zoneID, now); err != nil {
			return 0, err
		}
		counts, err := m.seats.CountByStatesTx(ctx, tx, zoneID)
		if err != nil {
			return 0, err
		}
		free = counts[model.SeatAvailable]
	} else {
		live, err := m.holds.LiveQuantityTx(ctx, tx, zoneID, now)
		if err != nil {
			return 0, err
		}
		total := uint64(zone.Sold) + uint64(live)
		if total < uint64(zone.Capacity) {
			free = zone.Capacity - uint32(total)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return free, nil
}

// ResizeZone changes a general zone's capacity. The new capacity must still
// cover sold plus live holds; numbered zones resize through their seat list,
// never through this counter.
func (m *Manager) ResizeZone(ctx context.Context, zoneID uint64, capacity uint32, userID uint64) error {
	now := m.now()
	tx, err := m.holds.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	zone, err := m.zones.GetForUpdateTx(ctx, tx, zoneID)
	if err != nil {
		return err
	}
	if zone.Type != model.ZoneGeneral {
		return domain.Validationf("zone %d is numbered, its capacity follows the seat list", zoneID)
	}
	live, err := m.holds.LiveQuantityTx(ctx, tx, zoneID, now)
	if err != nil {
		return err
	}
	if uint64(capacity) < uint64(zone.Sold)+uint64(live) {
		return domain.Conflictf("capacity %d is below sold %d plus held %d", capacity, zone.Sold, live)
	}
	if err := m.zones.UpdateCapacityTx(ctx, tx, zoneID, capacity); err != nil {
		return err
	}
	if err := m.auditor.AppendTx(ctx, tx, audit.Entry{
		UserID:      &userID,
		Action:      "zone.resized",
		ObjectType:  "zone",
		ObjectID:    zoneID,
		Old:         zone,
		New:         map[string]uint32{"capacity": capacity},
		Description: "zone capacity changed",
	}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// OfflineBlock grabs a block of general capacity for offline selling under
// the usual hold semantics. It returns the block owner reference used later
// by Reconcile.
func (m *Manager) OfflineBlock(ctx context.Context, zoneID uint64, quantity uint32, ttl time.Duration) (*model.Hold, error) {
	return m.Hold(ctx, HoldRequest{
		ZoneID:   zoneID,
		Quantity: quantity,
		OwnerRef: "block-" + uuid.NewString(),
		Scope:    model.HoldScopeOffline,
		TTL:      ttl,
	})
}

// Reconcile settles an offline block: the sold portion moves to the zone's
// sold counter, the rest is released. Settlement bypasses the payment
// collaborator; fiscal certification of offline sales happens through the
// regular checkout with the reconciled quantity.
func (m *Manager) Reconcile(ctx context.Context, ownerRef string, soldQuantity uint32, userID uint64) error {
	now := m.now()
	tx, err := m.holds.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	holds, err := m.holds.ActiveByOwnerTx(ctx, tx, ownerRef, now)
	if err != nil {
		return err
	}
	if len(holds) == 0 {
		return domain.NotFoundf("offline block %s has no live holds", ownerRef)
	}
	var blocked uint32
	for _, h := range holds {
		blocked += h.Quantity
	}
	if soldQuantity > blocked {
		return domain.Validationf("reconciled quantity %d exceeds blocked %d", soldQuantity, blocked)
	}
	zoneID := holds[0].ZoneID
	for i := range holds {
		if err := m.holds.TransitionTx(ctx, tx, holds[i].ID, model.HoldActive, model.HoldConsumed); err != nil {
			return err
		}
		if err := m.auditor.AppendTx(ctx, tx, audit.Entry{
			UserID:      &userID,
			Action:      "hold.consumed",
			ObjectType:  "hold",
			ObjectID:    holds[i].ID,
			Old:         holds[i],
			Description: "offline block hold settled",
		}); err != nil {
			return err
		}
	}
	if soldQuantity > 0 {
		if err := m.zones.AddSoldTx(ctx, tx, zoneID, int64(soldQuantity)); err != nil {
			return err
		}
	}
	if err := m.auditor.AppendTx(ctx, tx, audit.Entry{
		UserID:      &userID,
		Action:      "offline_block.reconciled",
		ObjectType:  "zone",
		ObjectID:    zoneID,
		New:         map[string]uint32{"sold": soldQuantity, "released": blocked - soldQuantity},
		Description: "offline block reconciled",
	}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
