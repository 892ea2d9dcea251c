package checkout

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

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

// Input describes one checkout request.
type Input struct {
	CartID        string
	Customer      customer.Input
	PaymentMethod string
	Currency      string
	UserID        uint64 // seller whose fiscal day certifies the sale
	MaxUsage      uint32 // admissions per ticket, 0 means 1
	AmountPaid    decimal.Decimal // partial path: the deposit captured now
}

// Receipt is the checkout outcome.
type Receipt struct {
	Transaction  *model.Transaction    `json:"transaction"`
	SeriesNumber uint64                `json:"series_number"`
	Tickets      []model.DigitalTicket `json:"tickets"`
	TaxLines     []fiscal.TaxLine      `json:"tax_lines"`
}

// line pairs a cart hold with its priced item.
type line struct {
	hold model.Hold
	item model.TransactionItem
}

// Orchestrator drives checkout: quote, charge, then one DB transaction for
// the whole fiscal branch. The series counter lock taken inside that
// transaction is held through commit, serializing certification per tenant.
type Orchestrator struct {
	registry   *customer.Registry
	manager    *inventory.Manager
	holds      *repository.HoldRepo
	seats      *repository.SeatRepo
	zones      *repository.ZoneRepo
	events     *repository.EventRepo
	txns       *repository.TransactionRepo
	taxes      *repository.TaxRepo
	fiscalRepo *repository.FiscalRepo
	ledger     *fiscal.Ledger
	resolver   *pricing.Resolver
	issuer     *ticket.Issuer
	tickets    *repository.TicketRepo
	enqueuer   *notify.Enqueuer
	auditor    *audit.Writer
	payments   Processor
	deadline   time.Duration
	now        func() time.Time
}

// NewOrchestrator wires the checkout orchestrator.
func NewOrchestrator(registry *customer.Registry, manager *inventory.Manager,
	holds *repository.HoldRepo, seats *repository.SeatRepo, zones *repository.ZoneRepo,
	events *repository.EventRepo, txns *repository.TransactionRepo, taxes *repository.TaxRepo,
	fiscalRepo *repository.FiscalRepo, ledger *fiscal.Ledger, resolver *pricing.Resolver,
	issuer *ticket.Issuer, tickets *repository.TicketRepo, enqueuer *notify.Enqueuer,
	auditor *audit.Writer, payments Processor, deadline time.Duration) *Orchestrator {
	return &Orchestrator{
		registry:   registry,
		manager:    manager,
		holds:      holds,
		seats:      seats,
		zones:      zones,
		events:     events,
		txns:       txns,
		taxes:      taxes,
		fiscalRepo: fiscalRepo,
		ledger:     ledger,
		resolver:   resolver,
		issuer:     issuer,
		tickets:    tickets,
		enqueuer:   enqueuer,
		auditor:    auditor,
		payments:   payments,
		deadline:   deadline,
		now:        time.Now,
	}
}

// Checkout settles a cart in full. On payment failure, and equally when
// certification fails after the charge captured, every hold is released and
// the transaction is parked in cancelled for traceability.
func (o *Orchestrator) Checkout(ctx context.Context, in Input) (*Receipt, error) {
	now := o.now()
	lines, event, err := o.quoteCart(ctx, in.CartID, now)
	if err != nil {
		return nil, err
	}
	cust, err := o.registry.FindOrCreate(ctx, in.Customer)
	if err != nil {
		return nil, err
	}
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.item.TotalPrice)
	}
	cfgs, err := o.taxes.ActiveAt(ctx, event.ID, now)
	if err != nil {
		return nil, err
	}
	taxLines, taxTotal := fiscal.ComputeTaxes(subtotal, cfgs)

	txn := &model.Transaction{
		EventID:       event.ID,
		CustomerID:    cust.ID,
		UserID:        in.UserID,
		Subtotal:      subtotal,
		TaxTotal:      taxTotal,
		Total:         subtotal.Add(taxTotal),
		Currency:      in.Currency,
		PaymentMethod: in.PaymentMethod,
	}
	if err := o.createPending(ctx, txn); err != nil {
		return nil, err
	}

	res, err := charge(ctx, o.payments, o.deadline, ChargeRequest{
		TransactionID: txn.ID,
		Amount:        txn.Total,
		Currency:      txn.Currency,
		Method:        txn.PaymentMethod,
	})
	if err != nil {
		o.abort(ctx, txn, lines, "", err)
		return nil, err
	}

	rcpt, err := o.fiscalBranch(ctx, txn, event, lines, taxLines, res.Reference, in.UserID, in.MaxUsage, model.TxPending)
	if err != nil {
		// The charge captured but the sale was not certified (lapsed hold,
		// closed fiscal day). The transaction must not linger in pending.
		o.abort(ctx, txn, lines, res.Reference, err)
		return nil, err
	}
	return rcpt, nil
}

// Reserve runs the partial-payment path: capture the deposit, mark the
// transaction reserved and promote the holds to long-lived reservations.
// Settlement of the remainder later triggers the fiscal branch.
func (o *Orchestrator) Reserve(ctx context.Context, in Input) (*model.Transaction, error) {
	if !in.AmountPaid.IsPositive() {
		return nil, domain.Validationf("partial payment requires a positive deposit")
	}
	now := o.now()
	lines, event, err := o.quoteCart(ctx, in.CartID, now)
	if err != nil {
		return nil, err
	}
	cust, err := o.registry.FindOrCreate(ctx, in.Customer)
	if err != nil {
		return nil, err
	}
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.item.TotalPrice)
	}
	cfgs, err := o.taxes.ActiveAt(ctx, event.ID, now)
	if err != nil {
		return nil, err
	}
	taxLines, taxTotal := fiscal.ComputeTaxes(subtotal, cfgs)
	total := subtotal.Add(taxTotal)
	if in.AmountPaid.GreaterThanOrEqual(total) {
		return nil, domain.Validationf("deposit %s covers the total %s, use full checkout", in.AmountPaid, total)
	}

	txn := &model.Transaction{
		EventID:       event.ID,
		CustomerID:    cust.ID,
		UserID:        in.UserID,
		Subtotal:      subtotal,
		TaxTotal:      taxTotal,
		Total:         total,
		Currency:      in.Currency,
		PaymentMethod: in.PaymentMethod,
	}
	if err := o.createPending(ctx, txn); err != nil {
		return nil, err
	}
	res, err := charge(ctx, o.payments, o.deadline, ChargeRequest{
		TransactionID: txn.ID,
		Amount:        in.AmountPaid,
		Currency:      txn.Currency,
		Method:        txn.PaymentMethod,
	})
	if err != nil {
		o.abort(ctx, txn, lines, "", err)
		return nil, err
	}

	if err := o.reserveBranch(ctx, txn, lines, taxLines, res.Reference, in); err != nil {
		// Deposit captured but the reservation did not materialize.
		o.abort(ctx, txn, lines, res.Reference, err)
		return nil, err
	}
	txn.Status = model.TxReserved
	return txn, nil
}

// reserveBranch is the single DB transaction promoting a pending transaction
// and its cart holds into a long-lived reservation.
func (o *Orchestrator) reserveBranch(ctx context.Context, txn *model.Transaction, lines []line,
	taxLines []fiscal.TaxLine, paymentRef string, in Input) error {
	tx, err := o.txns.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := o.txns.TransitionTx(ctx, tx, txn.ID, model.TxPending, model.TxReserved); err != nil {
		return err
	}
	items := make([]model.TransactionItem, len(lines))
	for i, l := range lines {
		items[i] = l.item
		items[i].TransactionID = txn.ID
	}
	if err := o.txns.CreateItemsTx(ctx, tx, items); err != nil {
		return err
	}
	for i := range lines {
		h := lines[i].hold
		if err := o.manager.ReserveTx(ctx, tx, &h, txn.ID); err != nil {
			return err
		}
	}
	// The tax snapshot is taken now; settlement certifies these amounts even
	// if configs change before the remainder arrives.
	if err := o.recordTaxesTx(ctx, tx, txn.ID, taxLines); err != nil {
		return err
	}
	if err := o.auditor.AppendTx(ctx, tx, audit.Entry{
		UserID:      &in.UserID,
		Action:      "transaction.reserved",
		ObjectType:  "transaction",
		ObjectID:    txn.ID,
		New:         map[string]string{"deposit": in.AmountPaid.StringFixed(2), "payment_ref": paymentRef},
		Description: "partial payment reservation",
	}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Settle captures the remainder of a reserved transaction and runs the
// fiscal branch: series, completion, seat promotion, tickets.
func (o *Orchestrator) Settle(ctx context.Context, transactionID uint64, amount decimal.Decimal, in Input) (*Receipt, error) {
	txn, err := o.txns.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.Status != model.TxReserved {
		return nil, domain.Conflictf("transaction %d is %s, not reserved", txn.ID, txn.Status)
	}
	event, err := o.events.GetByID(ctx, txn.EventID)
	if err != nil {
		return nil, err
	}
	items, err := o.txns.ItemsByTransaction(ctx, txn.ID)
	if err != nil {
		return nil, err
	}
	res, err := charge(ctx, o.payments, o.deadline, ChargeRequest{
		TransactionID: txn.ID,
		Amount:        amount,
		Currency:      txn.Currency,
		Method:        in.PaymentMethod,
	})
	if err != nil {
		return nil, err
	}
	lines := make([]line, len(items))
	for i, it := range items {
		lines[i] = line{item: it}
	}
	return o.fiscalBranch(ctx, txn, event, lines, nil, res.Reference, in.UserID, in.MaxUsage, model.TxReserved)
}

// Refund reverses a completed sale: seats become refunded (never resold in
// this event instance), tickets are cancelled and the certifying series is
// voided with the reason. General capacity returns to the pool.
func (o *Orchestrator) Refund(ctx context.Context, transactionID, userID uint64, reason string) error {
	txn, err := o.txns.GetByID(ctx, transactionID)
	if err != nil {
		return err
	}
	if txn.SeriesNumber == nil {
		return domain.Validationf("transaction %d has no fiscal series", txn.ID)
	}
	items, err := o.txns.ItemsByTransaction(ctx, txn.ID)
	if err != nil {
		return err
	}
	tx, err := o.txns.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := o.txns.TransitionTx(ctx, tx, txn.ID, model.TxCompleted, model.TxRefunded); err != nil {
		return err
	}
	for _, it := range items {
		if it.SeatID != nil {
			if err := o.seats.TransitionTx(ctx, tx, *it.SeatID, model.SeatSold, model.SeatRefunded); err != nil {
				return err
			}
			continue
		}
		if err := o.zones.AddSoldTx(ctx, tx, it.ZoneID, -int64(it.Quantity)); err != nil {
			return err
		}
	}
	if err := o.fiscalRepo.VoidSeriesTx(ctx, tx, *txn.SeriesNumber, userID, reason); err != nil {
		return err
	}
	if err := o.tickets.BulkStatusByTransactionTx(ctx, tx, txn.ID, model.TicketCancelled); err != nil {
		return err
	}
	if err := o.auditor.AppendTx(ctx, tx, audit.Entry{
		UserID:       &userID,
		Action:       "transaction.refunded",
		ObjectType:   "transaction",
		ObjectID:     txn.ID,
		SeriesNumber: txn.SeriesNumber,
		Old:          txn,
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

// quoteCart loads the cart's live holds and prices each at instant now. All
// holds must target zones of one active event.
func (o *Orchestrator) quoteCart(ctx context.Context, cartID string, now time.Time) ([]line, *model.Event, error) {
	holds, err := o.holds.ActiveByOwner(ctx, cartID, now)
	if err != nil {
		return nil, nil, err
	}
	if len(holds) == 0 {
		return nil, nil, domain.Validationf("cart %s is empty or its holds expired", cartID)
	}
	var event *model.Event
	lines := make([]line, 0, len(holds))
	for _, h := range holds {
		zone, err := o.zones.GetByID(ctx, h.ZoneID)
		if err != nil {
			return nil, nil, err
		}
		if event == nil {
			if event, err = o.events.GetByID(ctx, zone.EventID); err != nil {
				return nil, nil, err
			}
			if event.Status != model.EventActive {
				return nil, nil, domain.Validationf("event %d is %s", event.ID, event.Status)
			}
		} else if zone.EventID != event.ID {
			return nil, nil, domain.Validationf("cart mixes events %d and %d", event.ID, zone.EventID)
		}
		rowLabel := ""
		if h.SeatID != nil {
			seat, err := o.seats.GetByID(ctx, *h.SeatID)
			if err != nil {
				return nil, nil, err
			}
			rowLabel = seat.RowLabel
		}
		quote, err := o.resolver.Resolve(ctx, h.ZoneID, rowLabel, now)
		if err != nil {
			return nil, nil, err
		}
		qty := decimal.NewFromInt(int64(h.Quantity))
		lines = append(lines, line{
			hold: h,
			item: model.TransactionItem{
				ZoneID:     h.ZoneID,
				SeatID:     h.SeatID,
				UnitPrice:  quote.UnitPrice,
				Quantity:   h.Quantity,
				TotalPrice: quote.UnitPrice.Mul(qty).Round(2),
			},
		})
	}
	return lines, event, nil
}

// createPending inserts the pending transaction and its creation audit entry.
func (o *Orchestrator) createPending(ctx context.Context, txn *model.Transaction) error {
	if err := o.txns.Create(ctx, txn); err != nil {
		return err
	}
	tx, err := o.txns.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := o.auditor.AppendTx(ctx, tx, audit.Entry{
		UserID:      &txn.UserID,
		Action:      "transaction.created",
		ObjectType:  "transaction",
		ObjectID:    txn.ID,
		New:         txn,
		Description: "checkout started",
	}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// abort releases every cart hold and parks the transaction in cancelled.
// paymentRef is empty when the charge itself failed; when set, the charge
// captured before the failure and the cancellation entry records the
// reference so the captured amount can be reversed.
func (o *Orchestrator) abort(ctx context.Context, txn *model.Transaction, lines []line, paymentRef string, cause error) {
	for _, l := range lines {
		_ = o.manager.Release(ctx, l.hold.Token)
	}
	tx, err := o.txns.DB().BeginTx(ctx, nil)
	if err != nil {
		return
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := o.txns.TransitionTx(ctx, tx, txn.ID, model.TxPending, model.TxCancelled); err != nil {
		return
	}
	entry := audit.Entry{
		UserID:      &txn.UserID,
		Action:      "transaction.cancelled",
		ObjectType:  "transaction",
		ObjectID:    txn.ID,
		Description: "checkout aborted: " + cause.Error(),
	}
	if paymentRef != "" {
		entry.New = map[string]string{"payment_ref": paymentRef, "disposition": "reversal required"}
	}
	if err := o.auditor.AppendTx(ctx, tx, entry); err != nil {
		return
	}
	if tx.Commit() == nil {
		committed = true
	}
}

// fiscalBranch is the single DB transaction certifying a sale: open fiscal
// day, allocate the series (counter row stays locked until commit), complete
// the transaction, move inventory, issue tickets, record taxes, audit,
// enqueue the confirmation. Any failure rolls the whole branch back and the
// counter never advances.
func (o *Orchestrator) fiscalBranch(ctx context.Context, txn *model.Transaction, event *model.Event,
	lines []line, taxLines []fiscal.TaxLine, paymentRef string, userID uint64, maxUsage uint32, fromStatus string) (*Receipt, error) {
	now := o.now()
	tx, err := o.txns.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := o.ledger.RequireOpenDayTx(ctx, tx, userID, now); err != nil {
		return nil, err
	}
	series, err := o.fiscalRepo.NextSeriesTx(ctx, tx, txn.ID, userID)
	if err != nil {
		return nil, err
	}
	if err := o.txns.CompleteTx(ctx, tx, txn.ID, series, paymentRef); err != nil {
		return nil, err
	}

	items := make([]model.TransactionItem, len(lines))
	switch fromStatus {
	case model.TxPending:
		for i := range lines {
			items[i] = lines[i].item
			items[i].TransactionID = txn.ID
		}
		if err := o.txns.CreateItemsTx(ctx, tx, items); err != nil {
			return nil, err
		}
		for i := range lines {
			h := lines[i].hold
			if err := o.manager.ConsumeTx(ctx, tx, &h, txn.ID); err != nil {
				return nil, err
			}
		}
	case model.TxReserved:
		// Items and capacity were settled at reservation time; only the
		// seats move forward.
		for i := range lines {
			items[i] = lines[i].item
			if items[i].SeatID != nil {
				if err := o.seats.TransitionTx(ctx, tx, *items[i].SeatID, model.SeatReserved, model.SeatSold); err != nil {
					return nil, err
				}
			}
		}
	default:
		return nil, domain.Internalf("fiscal branch from status %q", fromStatus)
	}

	tickets, err := o.issuer.IssueTx(ctx, tx, txn, items, event, series, maxUsage)
	if err != nil {
		return nil, err
	}
	if err := o.recordTaxesTx(ctx, tx, txn.ID, taxLines); err != nil {
		return nil, err
	}
	if err := o.auditor.AppendTx(ctx, tx, audit.Entry{
		UserID:       &userID,
		Action:       "transaction.completed",
		ObjectType:   "transaction",
		ObjectID:     txn.ID,
		SeriesNumber: &series,
		New:          txn,
		Description:  "sale certified",
	}); err != nil {
		return nil, err
	}
	numbers := make([]string, len(tickets))
	for i, t := range tickets {
		numbers[i] = t.TicketNumber
	}
	subject, body := notify.PurchaseBody(event.Name, numbers)
	if err := o.enqueuer.EnqueueTx(ctx, tx, txn.CustomerID, notify.TemplatePurchase, subject, body); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	txn.Status = model.TxCompleted
	txn.SeriesNumber = &series
	txn.PaymentRef = paymentRef
	return &Receipt{
		Transaction:  txn,
		SeriesNumber: series,
		Tickets:      tickets,
		TaxLines:     taxLines,
	}, nil
}

func (o *Orchestrator) recordTaxesTx(ctx context.Context, tx *sql.Tx, transactionID uint64, taxLines []fiscal.TaxLine) error {
	if len(taxLines) == 0 {
		return nil
	}
	calcs := make([]model.TaxCalculation, len(taxLines))
	for i, l := range taxLines {
		calcs[i] = model.TaxCalculation{
			TransactionID: transactionID,
			TaxConfigID:   l.Config.ID,
			BaseAmount:    l.Base,
			TaxAmount:     l.Amount,
		}
	}
	return o.taxes.RecordCalculationsTx(ctx, tx, calcs)
}
