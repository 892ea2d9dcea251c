package checkout

import (
	"bytes"
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taquilla/taquilla/internal/audit"
	"github.com/taquilla/taquilla/internal/customer"
	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/fiscal"
	"github.com/taquilla/taquilla/internal/inventory"
	"github.com/taquilla/taquilla/internal/model"
	"github.com/taquilla/taquilla/internal/notify"
	"github.com/taquilla/taquilla/internal/pricing"
	"github.com/taquilla/taquilla/internal/repository"
	"github.com/taquilla/taquilla/internal/ticket"
)

var (
	holdCols     = []string{"id", "tenant_id", "zone_id", "seat_id", "quantity", "owner_ref", "scope", "token", "state", "expires_at", "transaction_id", "created_at"}
	zoneCols     = []string{"id", "tenant_id", "event_id", "name", "type", "capacity", "base_price", "sold", "created_at", "updated_at"}
	eventCols    = []string{"id", "tenant_id", "venue_id", "name", "starts_at", "ends_at", "status", "hold_ttl_secs", "created_at", "updated_at"}
	customerCols = []string{"id", "tenant_id", "name", "surname", "phone", "email", "identification", "is_active", "created_at", "updated_at"}
	stageCols    = []string{"id", "tenant_id", "event_id", "zone_id", "name", "ordinal", "starts_at", "ends_at", "type", "value", "is_active", "created_at"}
	taxCols      = []string{"id", "tenant_id", "event_id", "name", "type", "rate", "fixed_amount", "is_active", "effective_from"}
	dayCols      = []string{"id", "tenant_id", "user_id", "fiscal_date", "opened_at", "closed_at", "is_closed", "z_report_id"}
)

func testCtx() context.Context {
	return domain.WithTenant(context.Background(), domain.TenantRef{ID: 1, Slug: "acme"})
}

func newMockOrchestrator(t *testing.T) (*Orchestrator, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	holds := repository.NewHoldRepo(db)
	seats := repository.NewSeatRepo(db)
	zones := repository.NewZoneRepo(db)
	customers := repository.NewCustomerRepo(db)
	tickets := repository.NewTicketRepo(db)
	fiscalRepo := repository.NewFiscalRepo(db)
	auditor := audit.NewWriter(repository.NewAuditRepo(db))

	codec, err := ticket.NewCodec(bytes.Repeat([]byte("k"), 32))
	require.NoError(t, err)

	o := NewOrchestrator(
		customer.NewRegistry(customers),
		inventory.NewManager(holds, seats, zones, auditor, 5*time.Minute),
		holds, seats, zones,
		repository.NewEventRepo(db),
		repository.NewTransactionRepo(db),
		repository.NewTaxRepo(db),
		fiscalRepo,
		fiscal.NewLedger(fiscalRepo, tickets, auditor),
		pricing.NewResolver(zones, repository.NewPriceStageRepo(db), repository.NewRowPricingRepo(db)),
		ticket.NewIssuer(codec, tickets),
		tickets,
		notify.NewEnqueuer(repository.NewOutboxRepo(db), customers),
		auditor,
		CashProcessor{},
		time.Second,
	)
	return o, mock
}

// When the seller's fiscal day is already closed, the sale cannot be
// certified even though the charge captured. The checkout must not strand
// the transaction in pending: the holds go back to the pool and the
// transaction is parked in cancelled with the captured payment reference
// recorded for reversal.
func TestCheckoutClosedDayCancelsAndReleases(t *testing.T) {
	o, mock := newMockOrchestrator(t)
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return now }
	future := now.Add(5 * time.Minute)

	gaHold := func() *sqlmock.Rows {
		return sqlmock.NewRows(holdCols).
			AddRow(50, 1, 8, nil, 2, "cart-1", model.HoldScopeCart, "tok-50", model.HoldActive, future, nil, now)
	}

	// Quote: cart holds, zone, event, then the price resolution.
	mock.ExpectQuery("FROM holds WHERE owner_ref").WillReturnRows(gaHold())
	mock.ExpectQuery("FROM zones WHERE id").
		WillReturnRows(sqlmock.NewRows(zoneCols).
			AddRow(8, 1, 3, "Floor", model.ZoneGeneral, 100, "15.00", 40, now, now))
	mock.ExpectQuery("FROM events WHERE id").
		WillReturnRows(sqlmock.NewRows(eventCols).
			AddRow(3, 1, 2, "Gala", now.Add(time.Hour), now.Add(3*time.Hour), model.EventActive, 300, now, now))
	mock.ExpectQuery("FROM zones WHERE id").
		WillReturnRows(sqlmock.NewRows(zoneCols).
			AddRow(8, 1, 3, "Floor", model.ZoneGeneral, 100, "15.00", 40, now, now))
	mock.ExpectQuery("FROM price_stages").WillReturnRows(sqlmock.NewRows(stageCols))

	// Customer registry: no match on email, create with default preferences.
	mock.ExpectBegin()
	mock.ExpectQuery("FROM customers").WillReturnRows(sqlmock.NewRows(customerCols))
	mock.ExpectExec("INSERT INTO customers").WillReturnResult(sqlmock.NewResult(21, 1))
	mock.ExpectExec("INSERT INTO notification_preferences").WillReturnResult(sqlmock.NewResult(21, 1))
	mock.ExpectCommit()

	mock.ExpectQuery("FROM tax_configs").WillReturnRows(sqlmock.NewRows(taxCols))
	mock.ExpectExec("INSERT INTO transactions").WillReturnResult(sqlmock.NewResult(900, 1))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO audit_entries").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	// The cash charge captures without SQL; certification then finds the
	// seller's day closed and the branch rolls back.
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO fiscal_days").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM fiscal_days WHERE tenant_id").
		WillReturnRows(sqlmock.NewRows(dayCols).AddRow(3, 1, 9, "2026-08-25", now, now, true, 12))
	mock.ExpectRollback()

	// Abort: the hold is released first.
	mock.ExpectBegin()
	mock.ExpectQuery("FROM holds WHERE token").WillReturnRows(gaHold())
	mock.ExpectExec(`UPDATE holds SET state = \? WHERE id = \? AND tenant_id = \? AND state = \?`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_entries").WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	// Then the transaction is parked in cancelled, never left pending.
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE transactions SET status = \? WHERE id = \? AND tenant_id = \? AND status = \?`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_entries").WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()

	_, err := o.Checkout(testCtx(), Input{
		CartID:        "cart-1",
		Customer:      customer.Input{Name: "Ana", Email: "ana@example.com"},
		PaymentMethod: "cash",
		Currency:      "USD",
		UserID:        9,
	})
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
	assert.NoError(t, mock.ExpectationsWereMet())
}
