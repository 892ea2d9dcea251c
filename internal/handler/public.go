package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taquilla/taquilla/internal/inventory"
	"github.com/taquilla/taquilla/internal/model"
	"github.com/taquilla/taquilla/internal/repository"
)

// PublicHandler is the unauthenticated browse surface: active events, their
// zones with live availability, and seat maps. These routes sit behind the
// response cache; everything transactional stays uncached and authenticated.
type PublicHandler struct {
	Events  *repository.EventRepo
	Zones   *repository.ZoneRepo
	Seats   *repository.SeatRepo
	Manager *inventory.Manager
}

// NewPublicHandler wires the public handler.
func NewPublicHandler(events *repository.EventRepo, zones *repository.ZoneRepo,
	seats *repository.SeatRepo, manager *inventory.Manager) *PublicHandler {
	return &PublicHandler{Events: events, Zones: zones, Seats: seats, Manager: manager}
}

// ListEvents returns the tenant's active events.
func (h *PublicHandler) ListEvents(c echo.Context) error {
	out, err := h.Events.ListActive(c.Request().Context())
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"events": out})
}

type publicZone struct {
	Zone      model.Zone `json:"zone"`
	Available uint32     `json:"available"`
}

// EventZones returns an active event's zones with live availability.
func (h *PublicHandler) EventZones(c echo.Context) error {
	eventID, err := pathID(c, "id")
	if err != nil {
		return writeErr(c, err)
	}
	ctx := c.Request().Context()
	event, err := h.Events.GetByID(ctx, eventID)
	if err != nil {
		return writeErr(c, err)
	}
	if event.Status != model.EventActive {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	}
	zones, err := h.Zones.ListByEvent(ctx, eventID)
	if err != nil {
		return writeErr(c, err)
	}
	out := make([]publicZone, 0, len(zones))
	for _, z := range zones {
		free, err := h.Manager.Availability(ctx, z.ID)
		if err != nil {
			return writeErr(c, err)
		}
		out = append(out, publicZone{Zone: z, Available: free})
	}
	return c.JSON(http.StatusOK, echo.Map{"event": event, "zones": out})
}

// ZoneSeats returns a numbered zone's seat map with states, so the picker
// can grey out anything not available.
func (h *PublicHandler) ZoneSeats(c echo.Context) error {
	zoneID, err := pathID(c, "id")
	if err != nil {
		return writeErr(c, err)
	}
	ctx := c.Request().Context()
	zone, err := h.Zones.GetByID(ctx, zoneID)
	if err != nil {
		return writeErr(c, err)
	}
	if zone.Type != model.ZoneNumbered {
		return c.JSON(http.StatusOK, echo.Map{"seats": []model.Seat{}})
	}
	seats, err := h.Seats.ListByZone(ctx, zoneID)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"seats": seats})
}
