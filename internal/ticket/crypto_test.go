package ticket

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/model"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func sampleClaims() Claims {
	seat := uint64(42)
	return Claims{
		TicketID:     11,
		TicketNumber: "1042-1-1",
		EventID:      3,
		CustomerID:   9,
		ZoneID:       5,
		SeatID:       &seat,
		ValidFrom:    1700000000,
		ValidUntil:   1700090000,
		MaxUsage:     1,
		CreatedAt:    1699999000,
	}
}

func TestCodecRoundTrip(t *testing.T) {
	codec, err := NewCodec(testKey(t))
	require.NoError(t, err)

	in := sampleClaims()
	payload, err := codec.Seal(in)
	require.NoError(t, err)
	require.NotEmpty(t, payload)

	out, err := codec.Open(payload)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCodecNoncesDiffer(t *testing.T) {
	codec, err := NewCodec(testKey(t))
	require.NoError(t, err)

	a, err := codec.Seal(sampleClaims())
	require.NoError(t, err)
	b, err := codec.Seal(sampleClaims())
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCodecRejectsTampering(t *testing.T) {
	codec, err := NewCodec(testKey(t))
	require.NoError(t, err)

	payload, err := codec.Seal(sampleClaims())
	require.NoError(t, err)

	// Flip one character of the encoded blob.
	tampered := []byte(payload)
	if tampered[10] == 'A' {
		tampered[10] = 'B'
	} else {
		tampered[10] = 'A'
	}
	_, err = codec.Open(string(tampered))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCodecRejectsWrongKey(t *testing.T) {
	c1, err := NewCodec(testKey(t))
	require.NoError(t, err)
	c2, err := NewCodec(testKey(t))
	require.NoError(t, err)

	payload, err := c1.Seal(sampleClaims())
	require.NoError(t, err)
	_, err = c2.Open(payload)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCodecRejectsGarbage(t *testing.T) {
	codec, err := NewCodec(testKey(t))
	require.NoError(t, err)

	for _, bad := range []string{"", "!!!", "c2hvcnQ"} {
		_, err := codec.Open(bad)
		assert.ErrorIs(t, err, domain.ErrValidation, "input %q", bad)
	}
}

func TestNewCodecKeyLength(t *testing.T) {
	_, err := NewCodec(make([]byte, 16))
	assert.Error(t, err)
	_, err = NewCodec(nil)
	assert.Error(t, err)
}

func TestNumber(t *testing.T) {
	assert.Equal(t, "1042-1-1", Number(1042, 1, 1))
	assert.Equal(t, "7-3-12", Number(7, 3, 12))
}

func TestValidationHashIsStable(t *testing.T) {
	a := ValidationHash("1042-1-1", 3, 9)
	b := ValidationHash("1042-1-1", 3, 9)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, ValidationHash("1042-1-2", 3, 9))
	assert.NotEqual(t, a, ValidationHash("1042-1-1", 4, 9))
}

func ticketRow(c Claims, createdAt time.Time) *model.DigitalTicket {
	return &model.DigitalTicket{
		ID:           c.TicketID,
		TicketNumber: c.TicketNumber,
		EventID:      c.EventID,
		CustomerID:   c.CustomerID,
		ZoneID:       c.ZoneID,
		SeatID:       c.SeatID,
		MaxUsage:     c.MaxUsage,
		CreatedAt:    createdAt,
	}
}

func TestMatchClaims(t *testing.T) {
	created := time.Unix(1699999000, 0)
	c := sampleClaims()

	t.Run("exact match", func(t *testing.T) {
		assert.Empty(t, matchClaims(c, ticketRow(c, created)))
	})

	t.Run("within skew", func(t *testing.T) {
		assert.Empty(t, matchClaims(c, ticketRow(c, created.Add(30*time.Second))))
	})

	t.Run("stale payload", func(t *testing.T) {
		assert.Equal(t, "stale payload", matchClaims(c, ticketRow(c, created.Add(2*time.Minute))))
	})

	t.Run("field drift", func(t *testing.T) {
		row := ticketRow(c, created)
		row.EventID = 99
		assert.Equal(t, "payload does not match ticket", matchClaims(c, row))
	})

	t.Run("seat mismatch", func(t *testing.T) {
		row := ticketRow(c, created)
		row.SeatID = nil
		assert.Equal(t, "payload does not match ticket", matchClaims(c, row))

		other := uint64(43)
		row.SeatID = &other
		assert.Equal(t, "payload does not match ticket", matchClaims(c, row))
	})

	t.Run("general admission both nil", func(t *testing.T) {
		ga := c
		ga.SeatID = nil
		row := ticketRow(ga, created)
		assert.Empty(t, matchClaims(ga, row))
	})
}
