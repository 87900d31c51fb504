package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/consultation-booking/internal/booking"
	"github.com/iliyamo/consultation-booking/internal/model"
)

// ReservationHandler exposes the booking engine.
type ReservationHandler struct {
	Engine *booking.Engine
	Logger *zap.Logger
}

// NewReservationHandler panics if a dependency is missing.
func NewReservationHandler(e *booking.Engine, logger *zap.Logger) *ReservationHandler {
	if e == nil || logger == nil {
		panic("nil dependency passed to NewReservationHandler")
	}
	return &ReservationHandler{Engine: e, Logger: logger}
}

type statusRequest struct {
	Status string `json:"status"`
}

type purposeRequest struct {
	Purpose string `json:"purpose"`
}

type markReadRequest struct {
	IDs []uint64 `json:"ids"`
}

type listResponse struct {
	Items []model.ReservationDetail `json:"items"`
}

// Create handles POST /v1/reservations.  A successful admission returns
// 201 with the pending reservation.
func (h *ReservationHandler) Create(c echo.Context) error {
	actor, err := caller(c)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	var req booking.Request
	if err := bind(c, &req); err != nil {
		return fail(c, h.Logger, err)
	}
	d, err := h.Engine.RequestReservation(c.Request().Context(), actor, req)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, d)
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	actor, err := caller(c)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Logger, err)
	}
	d, err := h.Engine.GetReservation(c.Request().Context(), actor, id)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, d)
}

// SetStatus handles PATCH /v1/reservations/:id/status.
func (h *ReservationHandler) SetStatus(c echo.Context) error {
	actor, err := caller(c)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Logger, err)
	}
	var body statusRequest
	if err := bind(c, &body); err != nil {
		return fail(c, h.Logger, err)
	}
	d, err := h.Engine.SetStatus(c.Request().Context(), actor, id, strings.ToLower(strings.TrimSpace(body.Status)))
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, d)
}

// SetPurpose handles PATCH /v1/reservations/:id/purpose.
func (h *ReservationHandler) SetPurpose(c echo.Context) error {
	actor, err := caller(c)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Logger, err)
	}
	var body purposeRequest
	if err := bind(c, &body); err != nil {
		return fail(c, h.Logger, err)
	}
	d, err := h.Engine.SetPurpose(c.Request().Context(), actor, id, body.Purpose)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, d)
}

// ListForFaculty handles GET /v1/faculty/:id/reservations?page=&limit=.
func (h *ReservationHandler) ListForFaculty(c echo.Context) error {
	actor, err := caller(c)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Logger, err)
	}
	p, err := h.Engine.ListForFaculty(c.Request().Context(), actor, id, queryInt(c, "page", 1), queryInt(c, "limit", 20))
	if err != nil {
		return fail(c, h.Logger, err)
	}
	if p.Items == nil {
		p.Items = []model.ReservationDetail{}
	}
	return c.JSON(http.StatusOK, p)
}

// ListForStudent handles GET /v1/students/:id/reservations.
func (h *ReservationHandler) ListForStudent(c echo.Context) error {
	actor, err := caller(c)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Logger, err)
	}
	items, err := h.Engine.ListForStudent(c.Request().Context(), actor, id)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, listOf(items))
}

// ListForSection handles GET /v1/sections/:section/reservations.
func (h *ReservationHandler) ListForSection(c echo.Context) error {
	actor, err := caller(c)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	items, err := h.Engine.ListForSection(c.Request().Context(), actor, strings.TrimSpace(c.Param("section")))
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, listOf(items))
}

// MarkRead handles POST /v1/me/reservations/read.
func (h *ReservationHandler) MarkRead(c echo.Context) error {
	actor, err := caller(c)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	var body markReadRequest
	if err := bind(c, &body); err != nil {
		return fail(c, h.Logger, err)
	}
	n, err := h.Engine.MarkRead(c.Request().Context(), actor, body.IDs)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"updated": n})
}

// UnreadCount handles GET /v1/me/reservations/unread-count.
func (h *ReservationHandler) UnreadCount(c echo.Context) error {
	actor, err := caller(c)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	n, err := h.Engine.UnreadCount(c.Request().Context(), actor)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"unread": n})
}

// Mine handles GET /v1/me/reservations: the caller's own reservations, as
// a student or as the assigned faculty member.
func (h *ReservationHandler) Mine(c echo.Context) error {
	actor, err := caller(c)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	ctx := c.Request().Context()
	if actor.Role == model.RoleFaculty {
		p, err := h.Engine.ListForFaculty(ctx, actor, actor.ID, queryInt(c, "page", 1), queryInt(c, "limit", 20))
		if err != nil {
			return fail(c, h.Logger, err)
		}
		if p.Items == nil {
			p.Items = []model.ReservationDetail{}
		}
		return c.JSON(http.StatusOK, p)
	}
	items, err := h.Engine.ListForStudent(ctx, actor, actor.ID)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, listOf(items))
}

// PurgeOrphans handles POST /v1/admin/orphans/purge.  Per-record failures
// are reported in the body, not as an error status.
func (h *ReservationHandler) PurgeOrphans(c echo.Context) error {
	actor, err := caller(c)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	report, err := h.Engine.PurgeOrphans(c.Request().Context(), actor)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	if report.Results == nil {
		report.Results = []booking.PurgeResult{}
	}
	return c.JSON(http.StatusOK, report)
}

func listOf(items []model.ReservationDetail) listResponse {
	if items == nil {
		items = []model.ReservationDetail{}
	}
	return listResponse{Items: items}
}
