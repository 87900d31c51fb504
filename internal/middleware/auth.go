package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/consultation-booking/internal/apperr"
	"github.com/iliyamo/consultation-booking/internal/identity"
)

// Authenticate resolves the Authorization bearer token through dir and
// stores the resulting identity on the context.  Requests without a valid
// token are rejected with 401.
func Authenticate(dir identity.Directory) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Request().Header.Get(echo.HeaderAuthorization)
			scheme, raw, ok := strings.Cut(h, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
				return deny(c, apperr.New(apperr.ErrAuthentication, "missing bearer token"))
			}
			id, err := dir.Resolve(c.Request().Context(), strings.TrimSpace(raw))
			if err != nil {
				return deny(c, err)
			}
			SetIdentity(c, id)
			return next(c)
		}
	}
}
