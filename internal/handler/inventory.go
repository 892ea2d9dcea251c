package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taquilla/taquilla/internal/inventory"
	"github.com/taquilla/taquilla/internal/middleware"
)

// InventoryHandler exposes direct hold operations, availability reads and
// the offline block workflow for box-office selling.
type InventoryHandler struct {
	Manager *inventory.Manager
}

// NewInventoryHandler wires the inventory handler.
func NewInventoryHandler(m *inventory.Manager) *InventoryHandler {
	return &InventoryHandler{Manager: m}
}

// Availability returns the effective free capacity of a zone.
func (h *InventoryHandler) Availability(c echo.Context) error {
	zoneID, err := pathID(c, "id")
	if err != nil {
		return writeErr(c, err)
	}
	free, err := h.Manager.Availability(c.Request().Context(), zoneID)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"zone_id": zoneID, "available": free})
}

type extendReq struct {
	TTLSecs uint32 `json:"ttl_secs"`
}

// ExtendHold pushes a live hold's expiry forward.
func (h *InventoryHandler) ExtendHold(c echo.Context) error {
	var req extendReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	hold, err := h.Manager.Extend(c.Request().Context(), c.Param("token"),
		time.Duration(req.TTLSecs)*time.Second)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, hold)
}

// ReleaseHold returns a hold to the pool.
func (h *InventoryHandler) ReleaseHold(c echo.Context) error {
	if err := h.Manager.Release(c.Request().Context(), c.Param("token")); err != nil {
		return writeErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type resizeZoneReq struct {
	Capacity uint32 `json:"capacity"`
}

// ResizeZone changes a general zone's capacity; the new value must still
// cover sold plus live holds.
func (h *InventoryHandler) ResizeZone(c echo.Context) error {
	zoneID, err := pathID(c, "id")
	if err != nil {
		return writeErr(c, err)
	}
	var req resizeZoneReq
	if err := c.Bind(&req); err != nil || req.Capacity == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity required"})
	}
	if err := h.Manager.ResizeZone(c.Request().Context(), zoneID, req.Capacity, middleware.UserID(c)); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"zone_id": zoneID, "capacity": req.Capacity})
}

type offlineBlockReq struct {
	ZoneID   uint64 `json:"zone_id"`
	Quantity uint32 `json:"quantity"`
	TTLSecs  uint32 `json:"ttl_secs"`
}

// OfflineBlock grabs general capacity for offline selling.
func (h *InventoryHandler) OfflineBlock(c echo.Context) error {
	var req offlineBlockReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	hold, err := h.Manager.OfflineBlock(c.Request().Context(), req.ZoneID, req.Quantity,
		time.Duration(req.TTLSecs)*time.Second)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"owner_ref":  hold.OwnerRef,
		"hold_token": hold.Token,
		"expires_at": hold.ExpiresAt,
	})
}

type reconcileReq struct {
	OwnerRef     string `json:"owner_ref"`
	SoldQuantity uint32 `json:"sold_quantity"`
}

// Reconcile settles an offline block: sold quantity moves to the zone
// counter, the rest returns to the pool.
func (h *InventoryHandler) Reconcile(c echo.Context) error {
	var req reconcileReq
	if err := c.Bind(&req); err != nil || req.OwnerRef == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "owner_ref required"})
	}
	if err := h.Manager.Reconcile(c.Request().Context(), req.OwnerRef, req.SoldQuantity, middleware.UserID(c)); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "reconciled"})
}
