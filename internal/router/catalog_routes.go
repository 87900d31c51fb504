package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/consultation-booking/internal/handler"
	"github.com/iliyamo/consultation-booking/internal/middleware"
	"github.com/iliyamo/consultation-booking/internal/model"
)

// RegisterCatalog registers offering and slot routes on the authenticated
// group.  Reads are open to every role; cache wraps the listings whose
// output does not depend on the caller.
func RegisterCatalog(g *echo.Group, h *handler.CatalogHandler, cache echo.MiddlewareFunc) {
	g.GET("/offerings", h.SearchOfferings, cache)
	g.GET("/offerings/:id", h.GetOffering)
	g.GET("/offerings/:id/slots", h.ListSlots, cache)
	g.GET("/faculty/:id/offerings", h.FacultyOfferings)
	g.GET("/slots/:id", h.GetSlot)
	g.GET("/slots/:id/occupancy", h.Occupancy)

	staff := middleware.RequireRole(model.RoleFaculty, model.RoleAdmin)
	g.POST("/offerings", h.CreateOffering, middleware.RequireRole(model.RoleFaculty))
	g.PUT("/offerings/:id", h.UpdateOffering, middleware.RequireRole(model.RoleFaculty))
	g.DELETE("/offerings/:id", h.DeactivateOffering, staff)
	g.POST("/offerings/:id/slots", h.CreateSlot, staff)
	g.PATCH("/slots/:id", h.UpdateSlot, staff)
}
