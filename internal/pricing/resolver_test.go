package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/model"
)

type fakeZones struct{ zone *model.Zone }

func (f fakeZones) GetByID(_ context.Context, id uint64) (*model.Zone, error) {
	if f.zone == nil || f.zone.ID != id {
		return nil, domain.NotFoundf("zone %d", id)
	}
	return f.zone, nil
}

type fakeStages struct{ stages []model.PriceStage }

func (f fakeStages) ActiveAt(context.Context, uint64, uint64, time.Time) ([]model.PriceStage, error) {
	return f.stages, nil
}

type fakeRows struct{ offsets map[string]decimal.Decimal }

func (f fakeRows) Get(_ context.Context, zoneID uint64, row string) (*model.RowPricing, error) {
	off, ok := f.offsets[row]
	if !ok {
		return nil, domain.NotFoundf("row pricing")
	}
	return &model.RowPricing{ZoneID: zoneID, RowLabel: row, Offset: off}, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestApplyStages(t *testing.T) {
	cases := []struct {
		name   string
		start  string
		stages []model.PriceStage
		want   string
	}{
		{
			name:  "percentage then fixed",
			start: "100.00",
			stages: []model.PriceStage{
				{ID: 1, Type: model.StagePercentage, Value: dec("0.10")},
				{ID: 2, Type: model.StageFixedAdd, Value: dec("5.00")},
			},
			want: "115",
		},
		{
			name:  "order matters",
			start: "100.00",
			stages: []model.PriceStage{
				{ID: 2, Type: model.StageFixedAdd, Value: dec("5.00")},
				{ID: 1, Type: model.StagePercentage, Value: dec("0.10")},
			},
			want: "115.5",
		},
		{
			name:  "negative percentage discount",
			start: "80.00",
			stages: []model.PriceStage{
				{ID: 1, Type: model.StagePercentage, Value: dec("-0.25")},
			},
			want: "60",
		},
		{
			name:  "unknown type skipped",
			start: "50.00",
			stages: []model.PriceStage{
				{ID: 1, Type: "multiplier", Value: dec("3")},
				{ID: 2, Type: model.StageFixedAdd, Value: dec("1.00")},
			},
			want: "51",
		},
		{
			name:   "no stages",
			start:  "42.00",
			stages: nil,
			want:   "42",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, applied := ApplyStages(dec(tc.start), tc.stages)
			assert.True(t, got.Equal(dec(tc.want)), "got %s want %s", got, tc.want)
			known := 0
			for _, s := range tc.stages {
				if s.Type == model.StagePercentage || s.Type == model.StageFixedAdd {
					known++
				}
			}
			assert.Len(t, applied, known)
		})
	}
}

func TestResolveRowOffsetAndClamp(t *testing.T) {
	zone := &model.Zone{ID: 7, EventID: 3, BasePrice: dec("20.00")}
	r := NewResolver(
		fakeZones{zone: zone},
		fakeStages{stages: []model.PriceStage{
			{ID: 1, Type: model.StageFixedAdd, Value: dec("-50.00")},
		}},
		fakeRows{offsets: map[string]decimal.Decimal{"A": dec("10.00")}},
	)

	q, err := r.Resolve(context.Background(), 7, "A", time.Now())
	require.NoError(t, err)
	// 20 + 10 - 50 = -20, clamped to zero.
	assert.True(t, q.UnitPrice.IsZero())
	assert.True(t, q.Clamped)
	require.Len(t, q.Applied, 3)
	assert.Equal(t, "row_offset", q.Applied[0].Kind)
	assert.Equal(t, "clamp", q.Applied[2].Kind)
}

func TestResolveNoRowOffsetConfigured(t *testing.T) {
	zone := &model.Zone{ID: 7, EventID: 3, BasePrice: dec("20.00")}
	r := NewResolver(fakeZones{zone: zone}, fakeStages{}, fakeRows{})

	q, err := r.Resolve(context.Background(), 7, "Z", time.Now())
	require.NoError(t, err)
	assert.True(t, q.UnitPrice.Equal(dec("20")))
	assert.False(t, q.Clamped)
	assert.Empty(t, q.Applied)
}

func TestResolveRoundsToTwoPlaces(t *testing.T) {
	zone := &model.Zone{ID: 1, EventID: 1, BasePrice: dec("33.33")}
	r := NewResolver(
		fakeZones{zone: zone},
		fakeStages{stages: []model.PriceStage{
			{ID: 1, Type: model.StagePercentage, Value: dec("0.155")},
		}},
		fakeRows{},
	)
	q, err := r.Resolve(context.Background(), 1, "", time.Now())
	require.NoError(t, err)
	// 33.33 * 1.155 = 38.49615 → 38.50
	assert.Equal(t, "38.50", q.UnitPrice.StringFixed(2))
}

func TestResolveUnknownZone(t *testing.T) {
	r := NewResolver(fakeZones{}, fakeStages{}, fakeRows{})
	_, err := r.Resolve(context.Background(), 99, "", time.Now())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
