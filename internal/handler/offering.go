package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/consultation-booking/internal/booking"
	"github.com/iliyamo/consultation-booking/internal/catalog"
	"github.com/iliyamo/consultation-booking/internal/model"
	"github.com/iliyamo/consultation-booking/internal/repository"
)

// CatalogHandler exposes offerings and their schedule slots.
type CatalogHandler struct {
	Catalog *catalog.Catalog
	Engine  *booking.Engine // occupancy only
	Logger  *zap.Logger
}

// NewCatalogHandler panics if a dependency is missing.
func NewCatalogHandler(c *catalog.Catalog, e *booking.Engine, logger *zap.Logger) *CatalogHandler {
	if c == nil || e == nil || logger == nil {
		panic("nil dependency passed to NewCatalogHandler")
	}
	return &CatalogHandler{Catalog: c, Engine: e, Logger: logger}
}

type offeringPage struct {
	Items []model.Offering `json:"items"`
	Total int              `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

// CreateOffering handles POST /v1/offerings.
func (h *CatalogHandler) CreateOffering(c echo.Context) error {
	actor, err := caller(c)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	var in catalog.OfferingInput
	if err := bind(c, &in); err != nil {
		return fail(c, h.Logger, err)
	}
	o, err := h.Catalog.CreateOffering(c.Request().Context(), actor, in)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, o)
}

// UpdateOffering handles PUT /v1/offerings/:id.
func (h *CatalogHandler) UpdateOffering(c echo.Context) error {
	actor, err := caller(c)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Logger, err)
	}
	var in catalog.OfferingInput
	if err := bind(c, &in); err != nil {
		return fail(c, h.Logger, err)
	}
	o, err := h.Catalog.UpdateOffering(c.Request().Context(), actor, id, in)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, o)
}

// DeactivateOffering handles DELETE /v1/offerings/:id.  The offering is kept
// so that its reservations still resolve.
func (h *CatalogHandler) DeactivateOffering(c echo.Context) error {
	actor, err := caller(c)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Logger, err)
	}
	if err := h.Catalog.DeactivateOffering(c.Request().Context(), actor, id); err != nil {
		return fail(c, h.Logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetOffering handles GET /v1/offerings/:id.
func (h *CatalogHandler) GetOffering(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Logger, err)
	}
	o, err := h.Catalog.GetOffering(c.Request().Context(), id)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, o)
}

// SearchOfferings handles GET /v1/offerings?q=&day=&page=&limit=.
func (h *CatalogHandler) SearchOfferings(c echo.Context) error {
	p := repository.SearchParams{Text: strings.TrimSpace(c.QueryParam("q"))}
	if d := c.QueryParam("day"); d != "" {
		day, err := model.ParseDay(d)
		if err != nil {
			return fail(c, h.Logger, err)
		}
		p.Day = day
	}
	page := queryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := queryInt(c, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	p.Limit, p.Offset = limit, (page-1)*limit

	items, total, err := h.Catalog.Search(c.Request().Context(), p)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	if items == nil {
		items = []model.Offering{}
	}
	return c.JSON(http.StatusOK, offeringPage{Items: items, Total: total, Page: page, Limit: limit})
}

// FacultyOfferings handles GET /v1/faculty/:id/offerings.  Inactive
// offerings are included with ?inactive=true.
func (h *CatalogHandler) FacultyOfferings(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Logger, err)
	}
	items, err := h.Catalog.FindByFaculty(c.Request().Context(), id, c.QueryParam("inactive") == "true")
	if err != nil {
		return fail(c, h.Logger, err)
	}
	if items == nil {
		items = []model.Offering{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
