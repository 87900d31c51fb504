package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/consultation-booking/internal/apperr"
	"github.com/iliyamo/consultation-booking/internal/model"
)

const identityKey = "identity"

// SetIdentity stores the resolved caller on the request context.
func SetIdentity(c echo.Context, id model.Identity) { c.Set(identityKey, id) }

// CurrentIdentity returns the caller resolved by Authenticate.
func CurrentIdentity(c echo.Context) (model.Identity, bool) {
	id, ok := c.Get(identityKey).(model.Identity)
	return id, ok && id.ID != 0
}

// deny writes the same error envelope the handlers use.
func deny(c echo.Context, err error) error {
	body := echo.Map{"error": apperr.Code(err), "message": apperr.Message(err)}
	if apperr.Retryable(err) {
		body["retryable"] = true
	}
	status := apperr.Status(err)
	if status == http.StatusUnauthorized {
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Bearer realm="consultations"`)
	}
	return c.JSON(status, body)
}
