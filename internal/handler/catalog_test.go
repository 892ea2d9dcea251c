package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/model"
)

func TestBuildSeatsGenerated(t *testing.T) {
	z := &model.Zone{ID: 5, Capacity: 6, Type: model.ZoneNumbered}
	seats, err := buildSeats(z, zoneReq{Rows: 2, SeatsPerRow: 3})
	require.NoError(t, err)
	require.Len(t, seats, 6)

	assert.Equal(t, "A", seats[0].RowLabel)
	assert.Equal(t, uint32(1), seats[0].Number)
	assert.Equal(t, "A-1", seats[0].Label)
	assert.Equal(t, "B", seats[5].RowLabel)
	assert.Equal(t, uint32(3), seats[5].Number)
	assert.Equal(t, "B-3", seats[5].Label)
	for _, s := range seats {
		assert.Equal(t, uint64(5), s.ZoneID)
	}
}

func TestBuildSeatsExplicitList(t *testing.T) {
	z := &model.Zone{ID: 5, Capacity: 2, Type: model.ZoneNumbered}
	seats, err := buildSeats(z, zoneReq{Seats: []seatSpec{
		{Row: "AA", Number: 1},
		{Row: "AA", Number: 2},
	}})
	require.NoError(t, err)
	require.Len(t, seats, 2)
	assert.Equal(t, "AA-2", seats[1].Label)
}

func TestBuildSeatsCapacityMismatch(t *testing.T) {
	z := &model.Zone{ID: 5, Capacity: 10, Type: model.ZoneNumbered}
	_, err := buildSeats(z, zoneReq{Rows: 2, SeatsPerRow: 3})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestBuildSeatsRejectsBadSpecs(t *testing.T) {
	z := &model.Zone{ID: 5, Capacity: 1, Type: model.ZoneNumbered}

	_, err := buildSeats(z, zoneReq{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = buildSeats(z, zoneReq{Seats: []seatSpec{{Row: "", Number: 1}}})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = buildSeats(z, zoneReq{Rows: 27, SeatsPerRow: 1})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
