package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/model"
)

// VenueRepo provides CRUD for venues.
type VenueRepo struct {
	db *sql.DB
}

// NewVenueRepo returns a VenueRepo bound to the provided database.
func NewVenueRepo(db *sql.DB) *VenueRepo { return &VenueRepo{db: db} }

// DB exposes the handle so orchestrating handlers can open transactions.
func (r *VenueRepo) DB() *sql.DB { return r.db }

// Create inserts a venue under the context tenant.
func (r *VenueRepo) Create(ctx context.Context, v *model.Venue) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO venues (tenant_id, name, address) VALUES (?, ?, ?)`,
		tid, v.Name, v.Address)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	v.ID = uint64(id)
	v.TenantID = tid
	return nil
}

// GetByID fetches a venue within the context tenant.
func (r *VenueRepo) GetByID(ctx context.Context, id uint64) (*model.Venue, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	var v model.Venue
	err = r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, name, address, created_at, updated_at
		 FROM venues WHERE id = ? AND tenant_id = ?`, id, tid).
		Scan(&v.ID, &v.TenantID, &v.Name, &v.Address, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("venue %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// List returns all venues of the context tenant.
func (r *VenueRepo) List(ctx context.Context) ([]model.Venue, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tenant_id, name, address, created_at, updated_at
		 FROM venues WHERE tenant_id = ? ORDER BY id`, tid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Venue
	for rows.Next() {
		var v model.Venue
		if err := rows.Scan(&v.ID, &v.TenantID, &v.Name, &v.Address, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Update modifies name/address of a venue.
func (r *VenueRepo) Update(ctx context.Context, v *model.Venue) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE venues SET name = ?, address = ? WHERE id = ? AND tenant_id = ?`,
		v.Name, v.Address, v.ID, tid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundf("venue %d", v.ID)
	}
	return nil
}

// EventRepo provides CRUD and status transitions for events.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns an EventRepo bound to the provided database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// DB exposes the handle so orchestrating services can open transactions.
func (r *EventRepo) DB() *sql.DB { return r.db }

const eventCols = `id, tenant_id, venue_id, name, starts_at, ends_at, status, hold_ttl_secs, created_at, updated_at`

// Create inserts a draft event. Start must precede end.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	if !e.StartsAt.Before(e.EndsAt) {
		return domain.Validationf("event start must precede end")
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO events (tenant_id, venue_id, name, starts_at, ends_at, status, hold_ttl_secs)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tid, e.VenueID, e.Name, e.StartsAt.UTC(), e.EndsAt.UTC(), model.EventDraft, e.HoldTTLSecs)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	e.ID = uint64(id)
	e.TenantID = tid
	e.Status = model.EventDraft
	return nil
}

// GetByID fetches an event within the context tenant.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+eventCols+` FROM events WHERE id = ? AND tenant_id = ?`, id, tid)
	return scanEvent(row)
}

// ListByVenue returns the events of one venue.
func (r *EventRepo) ListByVenue(ctx context.Context, venueID uint64) ([]model.Event, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventCols+` FROM events WHERE venue_id = ? AND tenant_id = ? ORDER BY starts_at`,
		venueID, tid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.TenantID, &e.VenueID, &e.Name, &e.StartsAt, &e.EndsAt,
			&e.Status, &e.HoldTTLSecs, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListActive returns active events of the tenant, for the public browse path.
func (r *EventRepo) ListActive(ctx context.Context) ([]model.Event, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventCols+` FROM events WHERE tenant_id = ? AND status = ? ORDER BY starts_at`,
		tid, model.EventActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.TenantID, &e.VenueID, &e.Name, &e.StartsAt, &e.EndsAt,
			&e.Status, &e.HoldTTLSecs, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Transition performs a guarded status change. Allowed: draft→active,
// active→closed, active→cancelled. The guard runs as a conditional UPDATE so
// two concurrent transitions cannot both win.
func (r *EventRepo) Transition(ctx context.Context, id uint64, from, to string) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	if !validEventTransition(from, to) {
		return domain.Validationf("event transition %s -> %s", from, to)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE events SET status = ? WHERE id = ? AND tenant_id = ? AND status = ?`,
		to, id, tid, from)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Conflictf("event %d not in status %s", id, from)
	}
	return nil
}

func validEventTransition(from, to string) bool {
	switch from {
	case model.EventDraft:
		return to == model.EventActive
	case model.EventActive:
		return to == model.EventClosed || to == model.EventCancelled
	}
	return false
}

func scanEvent(row *sql.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.TenantID, &e.VenueID, &e.Name, &e.StartsAt, &e.EndsAt,
		&e.Status, &e.HoldTTLSecs, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("event")
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}
