package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/model"
)

// OutboxRepo provides data access to the notification outbox. The request
// path only inserts; the dispatch worker claims and settles rows.
type OutboxRepo struct {
	db *sql.DB
}

// NewOutboxRepo returns an OutboxRepo bound to the provided database.
func NewOutboxRepo(db *sql.DB) *OutboxRepo { return &OutboxRepo{db: db} }

// EnqueueTx inserts a pending message inside the caller's transaction so the
// notification commits atomically with the change that triggered it.
func (r *OutboxRepo) EnqueueTx(ctx context.Context, tx *sql.Tx, m *model.OutboxMessage) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO notification_outbox
		 (tenant_id, template_id, channel, recipient, subject, body, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tid, m.TemplateID, m.Channel, m.Recipient, m.Subject, m.Body, model.OutboxPending)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	m.ID = uint64(id)
	m.TenantID = tid
	m.Status = model.OutboxPending
	return nil
}

// ClaimPending locks and returns up to limit pending rows across tenants for
// the dispatch worker. SKIP LOCKED lets several workers poll concurrently.
// The worker is deliberately cross-tenant: rows carry their tenant id.
func (r *OutboxRepo) ClaimPending(ctx context.Context, tx *sql.Tx, limit int) ([]model.OutboxMessage, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, tenant_id, template_id, channel, recipient, subject, body, status,
		        task_id, fail_reason, created_at, sent_at
		 FROM notification_outbox WHERE status = ?
		 ORDER BY id LIMIT ? FOR UPDATE SKIP LOCKED`,
		model.OutboxPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.OutboxMessage
	for rows.Next() {
		var m model.OutboxMessage
		var taskID, failReason sql.NullString
		var sentAt sql.NullTime
		if err := rows.Scan(&m.ID, &m.TenantID, &m.TemplateID, &m.Channel, &m.Recipient,
			&m.Subject, &m.Body, &m.Status, &taskID, &failReason, &m.CreatedAt, &sentAt); err != nil {
			return nil, err
		}
		m.TaskID = taskID.String
		m.FailReason = failReason.String
		m.SentAt = scanNullTime(sentAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkSentTx settles a dispatched row inside the worker's transaction.
func (r *OutboxRepo) MarkSentTx(ctx context.Context, tx *sql.Tx, id uint64, taskID string, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE notification_outbox SET status = ?, task_id = ?, sent_at = ? WHERE id = ? AND status = ?`,
		model.OutboxSent, taskID, at.UTC(), id, model.OutboxPending)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Conflictf("outbox message %d not pending", id)
	}
	return nil
}

// MarkFailedTx records a dispatch failure with its reason. Failed rows stay
// for operator inspection; the worker retries transient broker errors before
// settling on failed.
func (r *OutboxRepo) MarkFailedTx(ctx context.Context, tx *sql.Tx, id uint64, reason string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE notification_outbox SET status = ?, fail_reason = ? WHERE id = ? AND status = ?`,
		model.OutboxFailed, reason, id, model.OutboxPending)
	return err
}

// DB exposes the handle for the dispatch worker's claim transaction.
func (r *OutboxRepo) DB() *sql.DB { return r.db }
