package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/consultation-booking/internal/catalog"
	"github.com/iliyamo/consultation-booking/internal/model"
)

type slotView struct {
	model.ScheduleSlot
	Occupancy *model.Occupancy `json:"occupancy,omitempty"`
}

// CreateSlot handles POST /v1/offerings/:id/slots.
func (h *CatalogHandler) CreateSlot(c echo.Context) error {
	actor, err := caller(c)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	offeringID, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Logger, err)
	}
	var in catalog.SlotInput
	if err := bind(c, &in); err != nil {
		return fail(c, h.Logger, err)
	}
	s, err := h.Catalog.CreateSlot(c.Request().Context(), actor, offeringID, in)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, s)
}

// UpdateSlot handles PATCH /v1/slots/:id.  Absent fields are unchanged.
func (h *CatalogHandler) UpdateSlot(c echo.Context) error {
	actor, err := caller(c)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Logger, err)
	}
	var in catalog.SlotInput
	if err := bind(c, &in); err != nil {
		return fail(c, h.Logger, err)
	}
	s, err := h.Catalog.UpdateSlot(c.Request().Context(), actor, id, in)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, s)
}

// ListSlots handles GET /v1/offerings/:id/slots.  Each slot carries its
// current occupancy.
func (h *CatalogHandler) ListSlots(c echo.Context) error {
	offeringID, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Logger, err)
	}
	ctx := c.Request().Context()
	slots, err := h.Catalog.ListSlots(ctx, offeringID)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	out := make([]slotView, 0, len(slots))
	for _, s := range slots {
		occ, err := h.Engine.GetOccupancy(ctx, s.ID)
		if err != nil {
			return fail(c, h.Logger, err)
		}
		out = append(out, slotView{ScheduleSlot: s, Occupancy: &occ})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetSlot handles GET /v1/slots/:id.
func (h *CatalogHandler) GetSlot(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Logger, err)
	}
	s, err := h.Catalog.GetSlot(c.Request().Context(), id)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, slotView{ScheduleSlot: s})
}

// Occupancy handles GET /v1/slots/:id/occupancy.
func (h *CatalogHandler) Occupancy(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Logger, err)
	}
	occ, err := h.Engine.GetOccupancy(c.Request().Context(), id)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, occ)
}
