package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/consultation-booking/internal/handler"
	"github.com/iliyamo/consultation-booking/internal/middleware"
	"github.com/iliyamo/consultation-booking/internal/model"
)

// RegisterReservations registers booking routes on the authenticated group.
// Role guards here are coarse; the engine enforces ownership.
func RegisterReservations(g *echo.Group, h *handler.ReservationHandler) {
	student := middleware.RequireRole(model.RoleStudent)
	staff := middleware.RequireRole(model.RoleFaculty, model.RoleAdmin)

	g.POST("/reservations", h.Create, student)
	g.GET("/reservations/:id", h.Get)
	g.PATCH("/reservations/:id/status", h.SetStatus, staff)
	g.PATCH("/reservations/:id/purpose", h.SetPurpose, staff)

	g.GET("/me/reservations", h.Mine)
	g.POST("/me/reservations/read", h.MarkRead, student)
	g.GET("/me/reservations/unread-count", h.UnreadCount, student)

	g.GET("/faculty/:id/reservations", h.ListForFaculty, staff)
	g.GET("/students/:id/reservations", h.ListForStudent)
	g.GET("/sections/:section/reservations", h.ListForSection, staff)

	admin := g.Group("/admin", middleware.RequireRole(model.RoleAdmin))
	admin.POST("/orphans/purge", h.PurgeOrphans)
}
