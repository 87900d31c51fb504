// Package router registers the HTTP routes of the consultation service.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/consultation-booking/internal/config"
	"github.com/iliyamo/consultation-booking/internal/handler"
	"github.com/iliyamo/consultation-booking/internal/identity"
	"github.com/iliyamo/consultation-booking/internal/middleware"
)

// Deps is everything the routes need.  Redis may be nil, which disables
// rate limiting and response caching.
type Deps struct {
	DB           *sql.DB
	Directory    identity.Directory
	Catalog      *handler.CatalogHandler
	Reservations *handler.ReservationHandler
	Redis        *redis.Client
	RateLimit    config.RateLimitConfig
	Cache        config.CacheConfig
	Logger       *zap.Logger
}

// New builds the echo instance with the global middleware chain and every
// route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(
		echomw.RequestID(),
		middleware.AccessLog(d.Logger),
		middleware.Recover(d.Logger),
		echomw.BodyLimit("1M"),
	)

	RegisterRoutes(e, d.DB)

	v1 := e.Group("/v1",
		middleware.Authenticate(d.Directory),
		middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Logger),
	)
	RegisterCatalog(v1, d.Catalog, middleware.NewRedisCache(d.Cache, d.Redis))
	RegisterReservations(v1, d.Reservations)
	return e
}

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
}
