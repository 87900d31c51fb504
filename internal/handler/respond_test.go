package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/consultation-booking/internal/apperr"
	"github.com/iliyamo/consultation-booking/internal/catalog"
)

func TestFailEnvelope(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zapcore.ErrorLevel)
	logger := zap.New(core)
	e := echo.New()

	cases := []struct {
		err       error
		status    int
		code      string
		message   string
		retryable bool
	}{
		{apperr.New(apperr.ErrCapacityExceeded, "slot is fully booked"), http.StatusConflict, "capacity_exceeded", "slot is fully booked", false},
		{apperr.Wrap(apperr.ErrDependency, errors.New("dial tcp: refused"), "store unavailable"), http.StatusServiceUnavailable, "dependency_unavailable", "store unavailable", true},
		{errors.New("sql: driver text"), http.StatusInternalServerError, "internal_error", "internal server error", false},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		if err := fail(c, logger, tc.err); err != nil {
			t.Fatalf("fail: %v", err)
		}
		var body errorBody
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if rec.Code != tc.status || body.Error != tc.code || body.Message != tc.message || body.Retryable != tc.retryable {
			t.Errorf("%v: got %d %+v, want %d %s %q retryable=%v", tc.err, rec.Code, body, tc.status, tc.code, tc.message, tc.retryable)
		}
	}
	if logs.Len() != 1 {
		t.Errorf("logged errors: got %d, want 1 (only the unclassified one)", logs.Len())
	}
}

func TestBindKeepsFieldValidation(t *testing.T) {
	t.Parallel()
	e := echo.New()
	newCtx := func(body string) echo.Context {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		return e.NewContext(req, httptest.NewRecorder())
	}

	var in catalog.OfferingInput
	err := bind(newCtx(`{"code":"CS101","window":{"day":"Mon","start":"25:00","end":"10:00"}}`), &in)
	if !errors.Is(err, apperr.ErrValidation) || !strings.Contains(apperr.Message(err), "25:00") {
		t.Errorf("bad time: got %v", err)
	}
	err = bind(newCtx(`{"code":`), &in)
	if !errors.Is(err, apperr.ErrValidation) || apperr.Message(err) != "invalid request body" {
		t.Errorf("truncated body: got %v", err)
	}
}

func TestPathID(t *testing.T) {
	t.Parallel()
	e := echo.New()
	for _, v := range []string{"0", "-1", "abc", ""} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues(v)
		if _, err := pathID(c, "id"); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("pathID(%q): got %v, want validation error", v, err)
		}
	}
}
