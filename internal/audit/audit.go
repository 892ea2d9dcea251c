// Package audit writes the append-only audit trail. Every state-changing
// core operation produces exactly one entry, written inside the same DB
// transaction as the change it describes.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/taquilla/taquilla/internal/model"
	"github.com/taquilla/taquilla/internal/repository"
)

// Writer appends audit entries. It is a thin layer over the repository that
// standardizes snapshots and timestamps.
type Writer struct {
	repo *repository.AuditRepo
}

// NewWriter returns a Writer over the given repository.
func NewWriter(repo *repository.AuditRepo) *Writer {
	return &Writer{repo: repo}
}

// Entry describes one state change to record. Old and New are snapshotted
// to JSON; marshal failures degrade to empty snapshots rather than failing
// the business transaction for a logging concern.
type Entry struct {
	UserID       *uint64
	Action       string
	ObjectType   string
	ObjectID     uint64
	SeriesNumber *uint64
	Old          any
	New          any
	Description  string
}

// AppendTx records the entry inside tx.
func (w *Writer) AppendTx(ctx context.Context, tx *sql.Tx, e Entry) error {
	return w.repo.AppendTx(ctx, tx, &model.AuditEntry{
		UserID:       e.UserID,
		Action:       e.Action,
		ObjectType:   e.ObjectType,
		ObjectID:     e.ObjectID,
		SeriesNumber: e.SeriesNumber,
		OldValue:     snapshot(e.Old),
		NewValue:     snapshot(e.New),
		Description:  e.Description,
		OccurredAt:   time.Now().UTC(),
	})
}

func snapshot(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
