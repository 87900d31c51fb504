package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/consultation-booking/internal/apperr"
	"github.com/iliyamo/consultation-booking/internal/model"
)

// RequireRole allows the request through only when the authenticated
// identity has one of roles.  It must run after Authenticate.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := CurrentIdentity(c)
			if !ok {
				return deny(c, apperr.New(apperr.ErrAuthentication, "not authenticated"))
			}
			if _, ok := allowed[id.Role]; !ok {
				return deny(c, apperr.New(apperr.ErrAuthorization, "forbidden"))
			}
			return next(c)
		}
	}
}
