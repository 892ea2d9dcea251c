package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/taquilla/taquilla/internal/model"
)

// AuditRepo is the append-only store of audit entries. There is deliberately
// no update or delete method on this type.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo returns an AuditRepo bound to the provided database.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// AppendTx writes one entry inside the transaction of the change it
// describes, so the entry commits if and only if the change does.
func (r *AuditRepo) AppendTx(ctx context.Context, tx *sql.Tx, e *model.AuditEntry) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO audit_entries
		 (tenant_id, user_id, action, object_type, object_id, series_number,
		  old_value, new_value, description, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tid, nullUint64(e.UserID), e.Action, e.ObjectType, e.ObjectID,
		nullUint64(e.SeriesNumber), e.OldValue, e.NewValue, e.Description,
		e.OccurredAt.UTC())
	return err
}

// Filter narrows an audit query. Zero values mean "no constraint".
type AuditFilter struct {
	Action     string
	ObjectType string
	ObjectID   uint64
	Since      time.Time
	Until      time.Time
	Limit      int
}

// List returns entries matching the filter in stable insertion order.
func (r *AuditRepo) List(ctx context.Context, f AuditFilter) ([]model.AuditEntry, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	q := `SELECT id, tenant_id, user_id, action, object_type, object_id, series_number,
	             old_value, new_value, description, occurred_at
	      FROM audit_entries WHERE tenant_id = ?`
	args := []any{tid}
	if f.Action != "" {
		q += ` AND action = ?`
		args = append(args, f.Action)
	}
	if f.ObjectType != "" {
		q += ` AND object_type = ?`
		args = append(args, f.ObjectType)
	}
	if f.ObjectID != 0 {
		q += ` AND object_id = ?`
		args = append(args, f.ObjectID)
	}
	if !f.Since.IsZero() {
		q += ` AND occurred_at >= ?`
		args = append(args, f.Since.UTC())
	}
	if !f.Until.IsZero() {
		q += ` AND occurred_at < ?`
		args = append(args, f.Until.UTC())
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q += ` ORDER BY id LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		var user, series sql.NullInt64
		if err := rows.Scan(&e.ID, &e.TenantID, &user, &e.Action, &e.ObjectType, &e.ObjectID,
			&series, &e.OldValue, &e.NewValue, &e.Description, &e.OccurredAt); err != nil {
			return nil, err
		}
		e.UserID = scanNullUint64(user)
		e.SeriesNumber = scanNullUint64(series)
		out = append(out, e)
	}
	return out, rows.Err()
}
