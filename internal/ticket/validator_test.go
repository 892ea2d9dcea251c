package ticket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/taquilla/taquilla/internal/model"
)

func TestNumberPattern(t *testing.T) {
	assert.True(t, numberRe.MatchString("1042-1-1"))
	assert.True(t, numberRe.MatchString("7-12-3"))
	assert.False(t, numberRe.MatchString("1042-1"))
	assert.False(t, numberRe.MatchString("abc-1-1"))
	assert.False(t, numberRe.MatchString(""))
	assert.False(t, numberRe.MatchString("1042-1-1-extra"))
}

func TestCheckOrdering(t *testing.T) {
	v := &Validator{now: time.Now}
	now := time.Now()
	base := func() *model.DigitalTicket {
		return &model.DigitalTicket{
			Status:     model.TicketActive,
			MaxUsage:   3,
			ValidFrom:  now.Add(-time.Hour),
			ValidUntil: now.Add(time.Hour),
		}
	}

	t.Run("usage limit reported before derived status", func(t *testing.T) {
		tk := base()
		tk.UsageCount = 3
		tk.Status = model.TicketUsed
		assert.Equal(t, "usage limit", v.check(context.Background(), tk, now))
	})

	t.Run("cancelled ticket", func(t *testing.T) {
		tk := base()
		tk.Status = model.TicketCancelled
		assert.Equal(t, "ticket cancelled", v.check(context.Background(), tk, now))
	})

	t.Run("before validity window", func(t *testing.T) {
		tk := base()
		tk.ValidFrom = now.Add(time.Minute)
		assert.Equal(t, "outside validity window", v.check(context.Background(), tk, now))
	})

	t.Run("after validity window", func(t *testing.T) {
		tk := base()
		tk.ValidUntil = now.Add(-time.Minute)
		assert.Equal(t, "outside validity window", v.check(context.Background(), tk, now))
	})
}
