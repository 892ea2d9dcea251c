package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taquilla/taquilla/internal/repository"
	"github.com/taquilla/taquilla/internal/ticket"
)

// TicketHandler is the scanner-facing surface: single and bulk validation,
// plus ticket lookup for support.
type TicketHandler struct {
	Validator *ticket.Validator
	Tickets   *repository.TicketRepo
}

// NewTicketHandler wires the ticket handler.
func NewTicketHandler(v *ticket.Validator, t *repository.TicketRepo) *TicketHandler {
	return &TicketHandler{Validator: v, Tickets: t}
}

// Validate runs one validation attempt. Invalid tickets still answer 200:
// "checked and rejected" is a successful validation from the scanner's view.
func (h *TicketHandler) Validate(c echo.Context) error {
	var req ticket.Request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Identifier == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "identifier required"})
	}
	res, err := h.Validator.Validate(c.Request().Context(), req)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

type bulkValidateReq struct {
	Tickets []ticket.Request `json:"tickets"`
}

// ValidateBulk validates up to the bulk limit in one call, for gate openings
// where a group arrives together.
func (h *TicketHandler) ValidateBulk(c echo.Context) error {
	var req bulkValidateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	results, summary, err := h.Validator.ValidateBulk(c.Request().Context(), req.Tickets)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"results": results, "summary": summary})
}

// ListByTransaction returns the tickets of one sale.
func (h *TicketHandler) ListByTransaction(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeErr(c, err)
	}
	out, err := h.Tickets.ListByTransaction(c.Request().Context(), id)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"tickets": out})
}

// GetByNumber returns one ticket by its printed number.
func (h *TicketHandler) GetByNumber(c echo.Context) error {
	t, err := h.Tickets.GetByNumber(c.Request().Context(), c.Param("number"))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, t)
}
