// Package ticket issues and validates digital tickets. The printed number
// ties a ticket to its fiscal series; the signed payload is an encrypted,
// authenticated copy of the ticket claims that a scanner can verify offline
// against the stored row.
package ticket

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/taquilla/taquilla/internal/domain"
)

// Claims is the payload encrypted into a ticket's signed code. Field values
// must match the stored row exactly; any drift fails validation.
type Claims struct {
	TicketID     uint64  `json:"ticket_id"`
	TicketNumber string  `json:"ticket_number"`
	EventID      uint64  `json:"event_id"`
	CustomerID   uint64  `json:"customer_id"`
	ZoneID       uint64  `json:"zone_id"`
	SeatID       *uint64 `json:"seat_id,omitempty"`
	ValidFrom    int64   `json:"valid_from"`  // unix seconds
	ValidUntil   int64   `json:"valid_until"` // unix seconds
	MaxUsage     uint32  `json:"max_usage"`
	CreatedAt    int64   `json:"created_at"` // unix seconds
}

// Codec seals and opens ticket claims with XChaCha20-Poly1305 under the
// deployment key. The random 24-byte nonce is prepended to the ciphertext and
// the whole blob is base64url encoded.
type Codec struct {
	key []byte
}

// NewCodec validates the key length and returns a codec.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("ticket key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &Codec{key: key}, nil
}

// Seal encrypts the claims into the transportable payload string.
func (c *Codec) Seal(claims Claims) (string, error) {
	plain, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, plain, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a payload string back into claims. Any tampering, truncation
// or wrong-key payload fails authentication and returns ErrValidation.
func (c *Codec) Open(payload string) (Claims, error) {
	var claims Claims
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return claims, domain.Validationf("ticket payload encoding")
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return claims, err
	}
	if len(raw) < aead.NonceSize() {
		return claims, domain.Validationf("ticket payload too short")
	}
	nonce, box := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, box, nil)
	if err != nil {
		return claims, domain.Validationf("ticket payload authentication failed")
	}
	if err := json.Unmarshal(plain, &claims); err != nil {
		return claims, domain.Validationf("ticket payload structure")
	}
	return claims, nil
}

// ValidationHash is the stored quick-authenticity digest:
// SHA-256(ticket_number || event_id || customer_id), hex encoded.
func ValidationHash(ticketNumber string, eventID, customerID uint64) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s%d%d", ticketNumber, eventID, customerID)))
	return hex.EncodeToString(h[:])
}

// Number renders the printed ticket number from the certifying series, the
// 1-based item index within the transaction and the 1-based unit sequence.
func Number(series uint64, itemIndex, sequence uint32) string {
	return fmt.Sprintf("%d-%d-%d", series, itemIndex, sequence)
}

// maxCreatedSkew bounds how far a payload's creation instant may drift from
// the stored row before the payload is treated as replayed.
const maxCreatedSkew = time.Minute
