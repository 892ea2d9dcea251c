package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taquilla/taquilla/internal/domain"
)

type slowProcessor struct{ delay time.Duration }

func (p slowProcessor) Charge(ctx context.Context, _ ChargeRequest) (ChargeResult, error) {
	select {
	case <-time.After(p.delay):
		return ChargeResult{Reference: "slow-ok"}, nil
	case <-ctx.Done():
		return ChargeResult{}, ctx.Err()
	}
}

func TestChargeMapsDeadlineToTimeout(t *testing.T) {
	req := ChargeRequest{TransactionID: 1, Amount: decimal.NewFromInt(10), Currency: "USD", Method: "card"}

	_, err := charge(context.Background(), slowProcessor{delay: time.Second}, 10*time.Millisecond, req)
	assert.ErrorIs(t, err, domain.ErrTimeout)
}

func TestChargeFastPath(t *testing.T) {
	req := ChargeRequest{TransactionID: 1, Amount: decimal.NewFromInt(10), Currency: "USD", Method: "card"}

	res, err := charge(context.Background(), slowProcessor{delay: time.Millisecond}, time.Second, req)
	require.NoError(t, err)
	assert.Equal(t, "slow-ok", res.Reference)
}

func TestCashProcessorAlwaysSettles(t *testing.T) {
	res, err := charge(context.Background(), CashProcessor{}, time.Second, ChargeRequest{
		TransactionID: 7, Amount: decimal.NewFromInt(25), Currency: "VES", Method: "cash",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Reference)
}
