package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/taquilla/taquilla/internal/domain"
)

// ChargeRequest is one capture attempt against the external acquirer.
type ChargeRequest struct {
	TransactionID uint64
	Amount        decimal.Decimal
	Currency      string
	Method        string // cash, card, transfer, ...
}

// ChargeResult carries the acquirer authorization reference.
type ChargeResult struct {
	Reference string
}

// Processor is the external payment collaborator. Implementations must
// respect the context deadline; the orchestrator treats an exceeded deadline
// as domain.ErrTimeout and aborts the sale.
type Processor interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

// charge runs the processor under the configured deadline and normalizes
// timeouts into the domain error kind.
func charge(ctx context.Context, p Processor, deadline time.Duration, req ChargeRequest) (ChargeResult, error) {
	cctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()
	res, err := p.Charge(cctx, req)
	if errors.Is(err, context.DeadlineExceeded) {
		return ChargeResult{}, domain.Timeoutf("payment for transaction %d", req.TransactionID)
	}
	return res, err
}

// CashProcessor settles immediately with a synthetic reference. Cash sales at
// the box office have no external acquirer leg.
type CashProcessor struct{}

// Charge implements Processor.
func (CashProcessor) Charge(_ context.Context, req ChargeRequest) (ChargeResult, error) {
	return ChargeResult{Reference: "cash-" + time.Now().UTC().Format("20060102150405")}, nil
}
