package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/taquilla/taquilla/internal/checkout"
	"github.com/taquilla/taquilla/internal/customer"
	"github.com/taquilla/taquilla/internal/middleware"
	"github.com/taquilla/taquilla/internal/repository"
)

// SalesHandler covers the sale funnel: carts, full checkout, partial payment
// reservations, settlement and refunds.
type SalesHandler struct {
	Carts  *checkout.CartService
	Orch   *checkout.Orchestrator
	Txns   *repository.TransactionRepo
	Events *repository.EventRepo
	Zones  *repository.ZoneRepo
}

// NewSalesHandler wires the sales handler.
func NewSalesHandler(carts *checkout.CartService, orch *checkout.Orchestrator,
	txns *repository.TransactionRepo, events *repository.EventRepo, zones *repository.ZoneRepo) *SalesHandler {
	return &SalesHandler{Carts: carts, Orch: orch, Txns: txns, Events: events, Zones: zones}
}

// CreateCart mints a cart id. Nothing is persisted until the first line.
func (h *SalesHandler) CreateCart(c echo.Context) error {
	return c.JSON(http.StatusCreated, echo.Map{"cart_id": h.Carts.NewCartID()})
}

type cartLineReq struct {
	ZoneID   uint64  `json:"zone_id"`
	SeatID   *uint64 `json:"seat_id"`
	Quantity uint32  `json:"quantity"`
}

// AddCartLine acquires a hold for the cart. The hold TTL comes from the
// event's configuration, falling back to the server default.
func (h *SalesHandler) AddCartLine(c echo.Context) error {
	cartID := c.Param("cart_id")
	var req cartLineReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx := c.Request().Context()
	zone, err := h.Zones.GetByID(ctx, req.ZoneID)
	if err != nil {
		return writeErr(c, err)
	}
	event, err := h.Events.GetByID(ctx, zone.EventID)
	if err != nil {
		return writeErr(c, err)
	}
	ttl := time.Duration(event.HoldTTLSecs) * time.Second
	view, err := h.Carts.AddLine(ctx, cartID, req.ZoneID, req.SeatID, req.Quantity, ttl)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, view)
}

// RemoveCartLine releases one hold from the cart.
func (h *SalesHandler) RemoveCartLine(c echo.Context) error {
	view, err := h.Carts.RemoveLine(c.Request().Context(), c.Param("cart_id"), c.Param("token"))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// GetCart returns the live cart view.
func (h *SalesHandler) GetCart(c echo.Context) error {
	view, err := h.Carts.Get(c.Request().Context(), c.Param("cart_id"))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

type customerPart struct {
	Name           string `json:"name"`
	Surname        string `json:"surname"`
	Phone          string `json:"phone"`
	Email          string `json:"email"`
	Identification string `json:"identification"`
}

func (p customerPart) input() customer.Input {
	return customer.Input{
		Name:           p.Name,
		Surname:        p.Surname,
		Phone:          p.Phone,
		Email:          p.Email,
		Identification: p.Identification,
	}
}

type checkoutReq struct {
	CartID        string          `json:"cart_id"`
	Customer      customerPart    `json:"customer"`
	PaymentMethod string          `json:"payment_method"`
	Currency      string          `json:"currency"`
	MaxUsage      uint32          `json:"max_usage"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
}

func (r checkoutReq) input(userID uint64) checkout.Input {
	return checkout.Input{
		CartID:        r.CartID,
		Customer:      r.Customer.input(),
		PaymentMethod: r.PaymentMethod,
		Currency:      r.Currency,
		UserID:        userID,
		MaxUsage:      r.MaxUsage,
		AmountPaid:    r.AmountPaid,
	}
}

// Checkout settles a cart in full and returns the certified receipt.
func (h *SalesHandler) Checkout(c echo.Context) error {
	var req checkoutReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	receipt, err := h.Orch.Checkout(c.Request().Context(), req.input(middleware.UserID(c)))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, receipt)
}

// Reserve takes a deposit and parks the cart as a long-lived reservation.
func (h *SalesHandler) Reserve(c echo.Context) error {
	var req checkoutReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	txn, err := h.Orch.Reserve(c.Request().Context(), req.input(middleware.UserID(c)))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, txn)
}

type settleReq struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	MaxUsage      uint32          `json:"max_usage"`
}

// Settle captures the remainder of a reserved transaction and certifies it.
func (h *SalesHandler) Settle(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeErr(c, err)
	}
	var req settleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	receipt, err := h.Orch.Settle(c.Request().Context(), id, req.Amount, checkout.Input{
		PaymentMethod: req.PaymentMethod,
		UserID:        middleware.UserID(c),
		MaxUsage:      req.MaxUsage,
	})
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, receipt)
}

// Refund reverses a completed sale.
func (h *SalesHandler) Refund(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeErr(c, err)
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil || req.Reason == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reason required"})
	}
	if err := h.Orch.Refund(c.Request().Context(), id, middleware.UserID(c), req.Reason); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "refunded"})
}

// GetTransaction returns one transaction with its items.
func (h *SalesHandler) GetTransaction(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeErr(c, err)
	}
	ctx := c.Request().Context()
	txn, err := h.Txns.GetByID(ctx, id)
	if err != nil {
		return writeErr(c, err)
	}
	items, err := h.Txns.ItemsByTransaction(ctx, id)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"transaction": txn, "items": items})
}
