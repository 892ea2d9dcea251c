package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/fiscal"
	"github.com/taquilla/taquilla/internal/middleware"
	"github.com/taquilla/taquilla/internal/model"
	"github.com/taquilla/taquilla/internal/repository"
)

// FiscalHandler covers the fiscal ledger surface: series lookup and voiding,
// X/Z reports and fiscal day state. The audit trail read side lives here too
// since it is the same compliance audience.
type FiscalHandler struct {
	Ledger *fiscal.Ledger
	Fiscal *repository.FiscalRepo
	Audit  *repository.AuditRepo
}

// NewFiscalHandler wires the fiscal handler.
func NewFiscalHandler(ledger *fiscal.Ledger, fr *repository.FiscalRepo, ar *repository.AuditRepo) *FiscalHandler {
	return &FiscalHandler{Ledger: ledger, Fiscal: fr, Audit: ar}
}

// GetSeries returns one fiscal series record by number.
func (h *FiscalHandler) GetSeries(c echo.Context) error {
	number, err := pathID(c, "number")
	if err != nil {
		return writeErr(c, err)
	}
	s, err := h.Fiscal.GetSeries(c.Request().Context(), number)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

// VoidSeries voids a series with a mandatory reason. The number is burned,
// never reallocated.
func (h *FiscalHandler) VoidSeries(c echo.Context) error {
	number, err := pathID(c, "number")
	if err != nil {
		return writeErr(c, err)
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil || req.Reason == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reason required"})
	}
	if err := h.Ledger.VoidSeries(c.Request().Context(), number, middleware.UserID(c), req.Reason); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "voided"})
}

type reportReq struct {
	Type       string  `json:"type"` // X or Z
	UserID     *uint64 `json:"user_id"`
	FiscalDate string  `json:"fiscal_date"` // YYYY-MM-DD, defaults to today
}

// GenerateReport builds an X or Z report. A Z report without an explicit
// user scope closes the caller's own day.
func (h *FiscalHandler) GenerateReport(c echo.Context) error {
	var req reportReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.FiscalDate == "" {
		req.FiscalDate = domain.FiscalDate(time.Now())
	}
	if req.Type == model.ReportZ && req.UserID == nil {
		self := middleware.UserID(c)
		req.UserID = &self
	}
	rep, err := h.Ledger.GenerateReport(c.Request().Context(), req.Type, req.UserID, req.FiscalDate)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, rep)
}

// GetDay returns the fiscal day row for (user, date). user_id defaults to
// the caller; date defaults to today.
func (h *FiscalHandler) GetDay(c echo.Context) error {
	userID := middleware.UserID(c)
	if s := c.QueryParam("user_id"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id"})
		}
		userID = v
	}
	date := c.QueryParam("date")
	if date == "" {
		date = domain.FiscalDate(time.Now())
	}
	day, err := h.Fiscal.GetDay(c.Request().Context(), userID, date)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, day)
}

// ListAudit returns audit entries narrowed by query parameters.
func (h *FiscalHandler) ListAudit(c echo.Context) error {
	var f repository.AuditFilter
	f.Action = c.QueryParam("action")
	f.ObjectType = c.QueryParam("object_type")
	if s := c.QueryParam("object_id"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "object_id"})
		}
		f.ObjectID = v
	}
	if s := c.QueryParam("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "since"})
		}
		f.Since = t
	}
	if s := c.QueryParam("until"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "until"})
		}
		f.Until = t
	}
	if s := c.QueryParam("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit"})
		}
		f.Limit = v
	}
	entries, err := h.Audit.List(c.Request().Context(), f)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"entries": entries})
}
