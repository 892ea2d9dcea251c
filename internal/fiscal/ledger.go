package fiscal

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/taquilla/taquilla/internal/audit"
	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/model"
	"github.com/taquilla/taquilla/internal/repository"
)

// Ledger drives fiscal-day lifecycle, report generation and series voiding.
// Series allocation itself happens inside the checkout transaction via
// repository.FiscalRepo.NextSeriesTx; the ledger owns everything around it.
type Ledger struct {
	fiscal  *repository.FiscalRepo
	tickets *repository.TicketRepo
	auditor *audit.Writer
}

// NewLedger wires the ledger to its repositories.
func NewLedger(fiscal *repository.FiscalRepo, tickets *repository.TicketRepo, auditor *audit.Writer) *Ledger {
	return &Ledger{fiscal: fiscal, tickets: tickets, auditor: auditor}
}

// DayBoundsUTC returns the UTC half-open interval covering one Caracas
// calendar date (YYYY-MM-DD).
func DayBoundsUTC(fiscalDate string) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", fiscalDate, domain.Caracas())
	if err != nil {
		return time.Time{}, time.Time{}, domain.Validationf("fiscal date %q", fiscalDate)
	}
	return day.UTC(), day.AddDate(0, 0, 1).UTC(), nil
}

// GenerateReport builds and persists an X or Z report for (user?, date). X
// reports never touch the day row; a Z report closes the (user, date) day
// and therefore requires a user scope.
func (l *Ledger) GenerateReport(ctx context.Context, reportType string, userID *uint64, fiscalDate string) (*model.FiscalReport, error) {
	if reportType != model.ReportX && reportType != model.ReportZ {
		return nil, domain.Validationf("report type %q", reportType)
	}
	if reportType == model.ReportZ && userID == nil {
		return nil, domain.Validationf("Z report requires a user scope")
	}
	from, to, err := DayBoundsUTC(fiscalDate)
	if err != nil {
		return nil, err
	}

	tx, err := l.fiscal.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	agg, err := l.fiscal.AggregateDayTx(ctx, tx, userID, from, to)
	if err != nil {
		return nil, err
	}
	number, err := l.fiscal.NextReportNumberTx(ctx, tx, reportType)
	if err != nil {
		return nil, err
	}
	breakdown, err := json.Marshal(agg.ByMethod)
	if err != nil {
		return nil, err
	}
	rep := &model.FiscalReport{
		Type:             reportType,
		ReportNumber:     number,
		FiscalDate:       fiscalDate,
		UserID:           userID,
		TransactionCount: agg.TransactionCount,
		TotalAmount:      agg.TotalAmount,
		TotalTax:         agg.TotalTax,
		MethodBreakdown:  string(breakdown),
		FirstSeries:      agg.FirstSeries,
		LastSeries:       agg.LastSeries,
	}
	if err := l.fiscal.InsertReportTx(ctx, tx, rep); err != nil {
		return nil, err
	}

	if reportType == model.ReportZ {
		// Closing an unopened day is valid when the user never sold: open it
		// so the close is recorded against a concrete row.
		if _, err := l.fiscal.OpenDayTx(ctx, tx, *userID, fiscalDate); err != nil {
			return nil, err
		}
		if err := l.fiscal.CloseDayTx(ctx, tx, *userID, fiscalDate, rep.ID); err != nil {
			return nil, err
		}
		if err := l.auditor.AppendTx(ctx, tx, audit.Entry{
			UserID:      userID,
			Action:      "fiscal_day.closed",
			ObjectType:  "fiscal_day",
			ObjectID:    rep.ID,
			New:         rep,
			Description: "fiscal day closed with Z report",
		}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return rep, nil
}

// VoidSeries marks a series voided with a reason and cancels the tickets of
// the certified transaction. The number is never reused. The whole operation
// is one transaction: a half-voided series would break the audit trail.
func (l *Ledger) VoidSeries(ctx context.Context, seriesNumber, voidedBy uint64, reason string) error {
	series, err := l.fiscal.GetSeries(ctx, seriesNumber)
	if err != nil {
		return err
	}
	tx, err := l.fiscal.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := l.fiscal.VoidSeriesTx(ctx, tx, seriesNumber, voidedBy, reason); err != nil {
		return err
	}
	if err := l.tickets.BulkStatusByTransactionTx(ctx, tx, series.TransactionID, model.TicketCancelled); err != nil {
		return err
	}
	if err := l.auditor.AppendTx(ctx, tx, audit.Entry{
		UserID:       &voidedBy,
		Action:       "fiscal_series.voided",
		ObjectType:   "fiscal_series",
		ObjectID:     series.ID,
		SeriesNumber: &seriesNumber,
		Old:          series,
		Description:  reason,
	}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// RequireOpenDayTx lazily opens (and locks) the seller's fiscal day for the
// given instant inside the checkout transaction. Sales against a closed day
// fail with AccessDenied; the next Caracas date opens a fresh day.
func (l *Ledger) RequireOpenDayTx(ctx context.Context, tx *sql.Tx, userID uint64, at time.Time) (*model.FiscalDay, error) {
	return l.fiscal.OpenDayTx(ctx, tx, userID, domain.FiscalDate(at))
}
