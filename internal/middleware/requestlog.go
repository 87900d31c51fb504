package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AccessLog writes one structured line per request.  Mount it after the
// echo RequestID middleware so the id is on the response.
func AccessLog(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			res := c.Response()
			fields := []zap.Field{
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.String("route", c.Path()),
				zap.Int("status", res.Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
				zap.String("ip", c.RealIP()),
			}
			if id, ok := CurrentIdentity(c); ok {
				fields = append(fields, zap.Uint64("user_id", id.ID), zap.String("role", string(id.Role)))
			}
			switch {
			case res.Status >= 500:
				logger.Error("request", fields...)
			case res.Status >= 400:
				logger.Info("request", fields...)
			default:
				logger.Debug("request", fields...)
			}
			return nil
		}
	}
}

// Recover turns handler panics into 500 responses and logs the value.
func Recover(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("panic in handler", zap.Any("panic", r), zap.String("route", c.Path()), zap.Stack("stack"))
					err = c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error", "message": "internal server error"})
				}
			}()
			return next(c)
		}
	}
}
