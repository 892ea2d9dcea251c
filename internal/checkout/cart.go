// Package checkout turns a cart of holds into a certified, ticketed sale.
// The cart itself is not a table: it is the set of active holds sharing one
// owner reference, so cart expiry falls out of hold expiry with no second
// lifecycle to keep consistent.
package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/inventory"
	"github.com/taquilla/taquilla/internal/model"
	"github.com/taquilla/taquilla/internal/repository"
)

// CartLine is one hold viewed through the cart.
type CartLine struct {
	HoldToken string    `json:"hold_token"`
	ZoneID    uint64    `json:"zone_id"`
	SeatID    *uint64   `json:"seat_id,omitempty"`
	Quantity  uint32    `json:"quantity"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CartView is the read model returned to clients. ExpiresAt is the minimum
// of the lines' expiries; an empty cart has none.
type CartView struct {
	CartID    string     `json:"cart_id"`
	Lines     []CartLine `json:"lines"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// CartService manages carts over the hold manager.
type CartService struct {
	manager *inventory.Manager
	holds   *repository.HoldRepo
	now     func() time.Time
}

// NewCartService wires the cart service.
func NewCartService(manager *inventory.Manager, holds *repository.HoldRepo) *CartService {
	return &CartService{manager: manager, holds: holds, now: time.Now}
}

// NewCartID mints a cart identifier. There is nothing to persist until the
// first line is added.
func (s *CartService) NewCartID() string { return uuid.NewString() }

// AddLine acquires a hold owned by the cart and returns the updated view.
func (s *CartService) AddLine(ctx context.Context, cartID string, zoneID uint64, seatID *uint64, quantity uint32, ttl time.Duration) (*CartView, error) {
	if cartID == "" {
		return nil, domain.Validationf("cart id is required")
	}
	_, err := s.manager.Hold(ctx, inventory.HoldRequest{
		ZoneID:   zoneID,
		SeatID:   seatID,
		Quantity: quantity,
		OwnerRef: cartID,
		Scope:    model.HoldScopeCart,
		TTL:      ttl,
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, cartID)
}

// RemoveLine releases one hold from the cart. The hold must belong to the
// cart; otherwise the caller could release someone else's seat by token.
func (s *CartService) RemoveLine(ctx context.Context, cartID, holdToken string) (*CartView, error) {
	h, err := s.holds.GetByToken(ctx, holdToken)
	if err != nil {
		return nil, err
	}
	if h.OwnerRef != cartID {
		return nil, domain.AccessDeniedf("hold does not belong to cart %s", cartID)
	}
	if err := s.manager.Release(ctx, holdToken); err != nil {
		return nil, err
	}
	return s.Get(ctx, cartID)
}

// Get returns the live view of a cart. Lapsed holds are simply absent.
func (s *CartService) Get(ctx context.Context, cartID string) (*CartView, error) {
	holds, err := s.holds.ActiveByOwner(ctx, cartID, s.now())
	if err != nil {
		return nil, err
	}
	view := &CartView{CartID: cartID}
	for _, h := range holds {
		view.Lines = append(view.Lines, CartLine{
			HoldToken: h.Token,
			ZoneID:    h.ZoneID,
			SeatID:    h.SeatID,
			Quantity:  h.Quantity,
			ExpiresAt: h.ExpiresAt,
		})
		if view.ExpiresAt == nil || h.ExpiresAt.Before(*view.ExpiresAt) {
			t := h.ExpiresAt
			view.ExpiresAt = &t
		}
	}
	return view, nil
}
