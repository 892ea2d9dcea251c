package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taquilla/taquilla/internal/customer"
	"github.com/taquilla/taquilla/internal/model"
	"github.com/taquilla/taquilla/internal/repository"
)

// CustomerHandler covers the customer registry and notification preferences.
type CustomerHandler struct {
	Registry  *customer.Registry
	Customers *repository.CustomerRepo
}

// NewCustomerHandler wires the customer handler.
func NewCustomerHandler(reg *customer.Registry, repo *repository.CustomerRepo) *CustomerHandler {
	return &CustomerHandler{Registry: reg, Customers: repo}
}

// FindOrCreate resolves a customer by identification, email or phone,
// creating the record on first contact. Checkout calls the same path
// internally; this endpoint lets operators pre-register walk-ins.
func (h *CustomerHandler) FindOrCreate(c echo.Context) error {
	var req customerPart
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	cust, err := h.Registry.FindOrCreate(c.Request().Context(), req.input())
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, cust)
}

// Get returns one customer.
func (h *CustomerHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeErr(c, err)
	}
	cust, err := h.Customers.GetByID(c.Request().Context(), id)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, cust)
}

// GetPreferences returns a customer's notification preferences. Absent rows
// surface as the defaults.
func (h *CustomerHandler) GetPreferences(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeErr(c, err)
	}
	prefs, err := h.Customers.GetPreferences(c.Request().Context(), id)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, prefs)
}

type preferencesReq struct {
	EmailEnabled    bool   `json:"email_enabled"`
	SMSEnabled      bool   `json:"sms_enabled"`
	WhatsAppEnabled bool   `json:"whatsapp_enabled"`
	Purchases       bool   `json:"purchases"`
	Reminders       bool   `json:"reminders"`
	Marketing       bool   `json:"marketing"`
	PreferredHours  string `json:"preferred_hours"`
	Language        string `json:"language"`
}

// UpdatePreferences replaces a customer's notification preferences.
func (h *CustomerHandler) UpdatePreferences(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeErr(c, err)
	}
	var req preferencesReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	p := &model.NotificationPreferences{
		CustomerID:      id,
		EmailEnabled:    req.EmailEnabled,
		SMSEnabled:      req.SMSEnabled,
		WhatsAppEnabled: req.WhatsAppEnabled,
		Purchases:       req.Purchases,
		Reminders:       req.Reminders,
		Marketing:       req.Marketing,
		PreferredHours:  req.PreferredHours,
		Language:        req.Language,
	}
	if err := h.Customers.UpdatePreferences(c.Request().Context(), p); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, p)
}
