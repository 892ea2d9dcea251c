package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/model"
	"github.com/taquilla/taquilla/internal/repository"
)

// CatalogHandler covers the operator-facing catalog: venues, events, zones,
// seats, price stages, row pricing and tax configs.
type CatalogHandler struct {
	Venues *repository.VenueRepo
	Events *repository.EventRepo
	Zones  *repository.ZoneRepo
	Seats  *repository.SeatRepo
	Stages *repository.PriceStageRepo
	Rows   *repository.RowPricingRepo
	Taxes  *repository.TaxRepo
}

// NewCatalogHandler wires the catalog handler.
func NewCatalogHandler(venues *repository.VenueRepo, events *repository.EventRepo,
	zones *repository.ZoneRepo, seats *repository.SeatRepo, stages *repository.PriceStageRepo,
	rows *repository.RowPricingRepo, taxes *repository.TaxRepo) *CatalogHandler {
	return &CatalogHandler{Venues: venues, Events: events, Zones: zones, Seats: seats,
		Stages: stages, Rows: rows, Taxes: taxes}
}

// ----- venues -----

type venueReq struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// CreateVenue registers a venue.
func (h *CatalogHandler) CreateVenue(c echo.Context) error {
	var req venueReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	v := &model.Venue{Name: req.Name, Address: req.Address}
	if err := h.Venues.Create(c.Request().Context(), v); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, v)
}

// ListVenues returns every venue of the tenant.
func (h *CatalogHandler) ListVenues(c echo.Context) error {
	out, err := h.Venues.List(c.Request().Context())
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"venues": out})
}

// UpdateVenue modifies a venue's name/address.
func (h *CatalogHandler) UpdateVenue(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeErr(c, err)
	}
	var req venueReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	v := &model.Venue{ID: id, Name: req.Name, Address: req.Address}
	if err := h.Venues.Update(c.Request().Context(), v); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// ----- events -----

type eventReq struct {
	VenueID     uint64    `json:"venue_id"`
	Name        string    `json:"name"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	HoldTTLSecs uint32    `json:"hold_ttl_secs"`
}

// CreateEvent registers a draft event under an existing venue.
func (h *CatalogHandler) CreateEvent(c echo.Context) error {
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	ctx := c.Request().Context()
	if _, err := h.Venues.GetByID(ctx, req.VenueID); err != nil {
		return writeErr(c, err)
	}
	e := &model.Event{
		VenueID:     req.VenueID,
		Name:        req.Name,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		HoldTTLSecs: req.HoldTTLSecs,
	}
	if err := h.Events.Create(ctx, e); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, e)
}

// GetEvent returns one event.
func (h *CatalogHandler) GetEvent(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeErr(c, err)
	}
	e, err := h.Events.GetByID(c.Request().Context(), id)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

// ListEventsByVenue returns the events of one venue.
func (h *CatalogHandler) ListEventsByVenue(c echo.Context) error {
	venueID, err := pathID(c, "id")
	if err != nil {
		return writeErr(c, err)
	}
	out, err := h.Events.ListByVenue(c.Request().Context(), venueID)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"events": out})
}

// ActivateEvent moves draft → active after verifying every numbered zone's
// seat map matches its declared capacity. Capacity-affecting edits are
// rejected once the event is active, so this is the last consistency gate.
func (h *CatalogHandler) ActivateEvent(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeErr(c, err)
	}
	ctx := c.Request().Context()
	zones, err := h.Zones.ListByEvent(ctx, id)
	if err != nil {
		return writeErr(c, err)
	}
	if len(zones) == 0 {
		return writeErr(c, domain.Validationf("event %d has no zones", id))
	}
	for _, z := range zones {
		if z.Type != model.ZoneNumbered {
			continue
		}
		seats, err := h.Seats.ListByZone(ctx, z.ID)
		if err != nil {
			return writeErr(c, err)
		}
		if uint32(len(seats)) != z.Capacity {
			return writeErr(c, domain.Validationf(
				"zone %d declares capacity %d but has %d seats", z.ID, z.Capacity, len(seats)))
		}
	}
	if err := h.Events.Transition(ctx, id, model.EventDraft, model.EventActive); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": model.EventActive})
}

// TransitionEvent closes or cancels an active event.
func (h *CatalogHandler) TransitionEvent(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeErr(c, err)
	}
	var req struct {
		To string `json:"to"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Events.Transition(c.Request().Context(), id, model.EventActive, req.To); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": req.To})
}

// ----- zones & seats -----

type seatSpec struct {
	Row    string `json:"row"`
	Number uint32 `json:"number"`
}

type zoneReq struct {
	EventID     uint64          `json:"event_id"`
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Capacity    uint32          `json:"capacity"`
	BasePrice   decimal.Decimal `json:"base_price"`
	Rows        uint32          `json:"rows"`
	SeatsPerRow uint32          `json:"seats_per_row"`
	Seats       []seatSpec      `json:"seats"`
}

// CreateZone registers a zone. Numbered zones generate their seat map here,
// either rows × seats_per_row with A.. row labels or an explicit seat list;
// either way the map size must equal the declared capacity. Zones cannot be
// added once the event is active.
func (h *CatalogHandler) CreateZone(c echo.Context) error {
	var req zoneReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx := c.Request().Context()
	e, err := h.Events.GetByID(ctx, req.EventID)
	if err != nil {
		return writeErr(c, err)
	}
	if e.Status != model.EventDraft {
		return writeErr(c, domain.Validationf("event %d is %s, zones are fixed", e.ID, e.Status))
	}
	z := &model.Zone{
		EventID:   req.EventID,
		Name:      req.Name,
		Type:      req.Type,
		Capacity:  req.Capacity,
		BasePrice: req.BasePrice,
	}
	if err := h.Zones.Create(ctx, z); err != nil {
		return writeErr(c, err)
	}
	if z.Type == model.ZoneNumbered {
		seats, err := buildSeats(z, req)
		if err != nil {
			return writeErr(c, err)
		}
		if err := h.Seats.CreateBulk(ctx, seats); err != nil {
			return writeErr(c, err)
		}
	}
	return c.JSON(http.StatusCreated, z)
}

// buildSeats materializes the seat map of a numbered zone.
func buildSeats(z *model.Zone, req zoneReq) ([]model.Seat, error) {
	var seats []model.Seat
	switch {
	case len(req.Seats) > 0:
		for _, s := range req.Seats {
			if s.Row == "" || s.Number == 0 {
				return nil, domain.Validationf("seat spec requires row and number")
			}
			seats = append(seats, model.Seat{
				ZoneID:   z.ID,
				RowLabel: s.Row,
				Number:   s.Number,
				Label:    fmt.Sprintf("%s-%d", s.Row, s.Number),
			})
		}
	case req.Rows > 0 && req.SeatsPerRow > 0:
		if req.Rows > 26 {
			return nil, domain.Validationf("generated rows are limited to 26 (A..Z)")
		}
		for r := uint32(0); r < req.Rows; r++ {
			label := string(rune('A' + r))
			for n := uint32(1); n <= req.SeatsPerRow; n++ {
				seats = append(seats, model.Seat{
					ZoneID:   z.ID,
					RowLabel: label,
					Number:   n,
					Label:    fmt.Sprintf("%s-%d", label, n),
				})
			}
		}
	default:
		return nil, domain.Validationf("numbered zone needs rows/seats_per_row or a seat list")
	}
	if uint32(len(seats)) != z.Capacity {
		return nil, domain.Validationf("capacity %d does not match %d seats", z.Capacity, len(seats))
	}
	return seats, nil
}

// ListZones returns the zones of an event.
func (h *CatalogHandler) ListZones(c echo.Context) error {
	eventID, err := pathID(c, "id")
	if err != nil {
		return writeErr(c, err)
	}
	out, err := h.Zones.ListByEvent(c.Request().Context(), eventID)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"zones": out})
}

// UpdateZonePricing changes a zone's base price. Capacity is immutable here.
func (h *CatalogHandler) UpdateZonePricing(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeErr(c, err)
	}
	var req struct {
		BasePrice decimal.Decimal `json:"base_price"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx := c.Request().Context()
	z, err := h.Zones.GetByID(ctx, id)
	if err != nil {
		return writeErr(c, err)
	}
	z.BasePrice = req.BasePrice
	if err := h.Zones.UpdatePricing(ctx, z); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, z)
}

// ListSeats returns the seat map of a zone with live states.
func (h *CatalogHandler) ListSeats(c echo.Context) error {
	zoneID, err := pathID(c, "id")
	if err != nil {
		return writeErr(c, err)
	}
	out, err := h.Seats.ListByZone(c.Request().Context(), zoneID)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"seats": out})
}

// BlockSeat takes a seat out of sale (available → blocked).
func (h *CatalogHandler) BlockSeat(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeErr(c, err)
	}
	if err := h.Seats.Block(c.Request().Context(), id); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"state": model.SeatBlocked})
}

// UnblockSeat returns a blocked or refunded seat to the pool. This is the
// only path by which a refunded seat re-enters sale, and it is an explicit
// admin decision.
func (h *CatalogHandler) UnblockSeat(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeErr(c, err)
	}
	var req struct {
		From string `json:"from"` // blocked or refunded
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.From == "" {
		req.From = model.SeatBlocked
	}
	if err := h.Seats.Unblock(c.Request().Context(), id, req.From); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"state": model.SeatAvailable})
}

// ----- price stages -----

type stageReq struct {
	EventID  uint64          `json:"event_id"`
	ZoneID   *uint64         `json:"zone_id"`
	Name     string          `json:"name"`
	Ordinal  uint32          `json:"ordinal"`
	StartsAt time.Time       `json:"starts_at"`
	EndsAt   time.Time       `json:"ends_at"`
	Type     string          `json:"type"`
	Value    decimal.Decimal `json:"value"`
}

// CreateStage registers a time-windowed price modifier. Overlapping windows
// in the same scope are rejected by the repository.
func (h *CatalogHandler) CreateStage(c echo.Context) error {
	var req stageReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	s := &model.PriceStage{
		EventID:  req.EventID,
		ZoneID:   req.ZoneID,
		Name:     req.Name,
		Ordinal:  req.Ordinal,
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
		Type:     req.Type,
		Value:    req.Value,
	}
	if err := h.Stages.Create(c.Request().Context(), s); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, s)
}

// DeactivateStage retires a price stage.
func (h *CatalogHandler) DeactivateStage(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeErr(c, err)
	}
	if err := h.Stages.Deactivate(c.Request().Context(), id); err != nil {
		return writeErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ----- row pricing -----

type rowPricingReq struct {
	RowLabel string          `json:"row_label"`
	Offset   decimal.Decimal `json:"offset"`
}

// UpsertRowPricing sets the additive offset for one row of a zone.
func (h *CatalogHandler) UpsertRowPricing(c echo.Context) error {
	zoneID, err := pathID(c, "id")
	if err != nil {
		return writeErr(c, err)
	}
	var req rowPricingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.RowLabel == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "row_label required"})
	}
	rp := &model.RowPricing{ZoneID: zoneID, RowLabel: req.RowLabel, Offset: req.Offset}
	if err := h.Rows.Upsert(c.Request().Context(), rp); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, rp)
}

// DeleteRowPricing removes the offset of one row.
func (h *CatalogHandler) DeleteRowPricing(c echo.Context) error {
	zoneID, err := pathID(c, "id")
	if err != nil {
		return writeErr(c, err)
	}
	row := c.Param("row")
	if err := h.Rows.Delete(c.Request().Context(), zoneID, row); err != nil {
		return writeErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ----- tax configs -----

type taxReq struct {
	EventID     *uint64         `json:"event_id"`
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Rate        decimal.Decimal `json:"rate"`
	FixedAmount decimal.Decimal `json:"fixed_amount"`
}

// CreateTax registers a tax config, tenant-wide or event-scoped.
func (h *CatalogHandler) CreateTax(c echo.Context) error {
	var req taxReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	t := &model.TaxConfig{
		EventID:     req.EventID,
		Name:        req.Name,
		Type:        req.Type,
		Rate:        req.Rate,
		FixedAmount: req.FixedAmount,
	}
	if err := h.Taxes.Create(c.Request().Context(), t); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// DeactivateTax retires a tax config.
func (h *CatalogHandler) DeactivateTax(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeErr(c, err)
	}
	if err := h.Taxes.Deactivate(c.Request().Context(), id); err != nil {
		return writeErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
