package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/consultation-booking/internal/apperr"
	"github.com/iliyamo/consultation-booking/internal/middleware"
	"github.com/iliyamo/consultation-booking/internal/model"
)

// errorBody is the envelope of every non-2xx response.
type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// fail renders err with its stable code.  Errors outside the taxonomy are
// logged and reported as internal errors without their text.
func fail(c echo.Context, logger *zap.Logger, err error) error {
	status := apperr.Status(err)
	if status == http.StatusInternalServerError {
		logger.Error("unhandled error", zap.String("route", c.Path()), zap.Error(err))
	}
	return c.JSON(status, errorBody{
		Error:     apperr.Code(err),
		Message:   apperr.Message(err),
		Retryable: apperr.Retryable(err),
	})
}

// caller returns the authenticated identity.  Routes are mounted behind
// middleware.Authenticate, so a missing identity is an authentication error.
func caller(c echo.Context) (model.Identity, error) {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		return model.Identity{}, apperr.New(apperr.ErrAuthentication, "not authenticated")
	}
	return id, nil
}

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.New(apperr.ErrValidation, "invalid %s", name)
	}
	return id, nil
}

// bind decodes the JSON body into v.  Field-level errors from custom
// unmarshalers (times, days) keep their validation message.
func bind(c echo.Context, v any) error {
	err := c.Bind(v)
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if inner, ok := he.Internal.(error); ok && errors.Is(inner, apperr.ErrValidation) {
			return inner
		}
	}
	if errors.Is(err, apperr.ErrValidation) {
		return err
	}
	return apperr.New(apperr.ErrValidation, "invalid request body")
}

func queryInt(c echo.Context, name string, def int) int {
	if v := c.QueryParam(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
