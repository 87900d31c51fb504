package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/consultation-booking/internal/apperr"
	"github.com/iliyamo/consultation-booking/internal/config"
	"github.com/iliyamo/consultation-booking/internal/model"
)

type fakeDirectory map[string]model.Identity

func (f fakeDirectory) Resolve(_ context.Context, token string) (model.Identity, error) {
	if token == "down" {
		return model.Identity{}, apperr.New(apperr.ErrDependency, "identity lookup failed")
	}
	id, ok := f[token]
	if !ok {
		return model.Identity{}, apperr.New(apperr.ErrAuthentication, "invalid token")
	}
	return id, nil
}

func newTestServer() *echo.Echo {
	dir := fakeDirectory{
		"stu": {ID: 7, Role: model.RoleStudent, Name: "Ana"},
		"fac": {ID: 3, Role: model.RoleFaculty, Name: "Dr. Cruz"},
	}
	e := echo.New()
	g := e.Group("/v1", Authenticate(dir))
	g.GET("/whoami", func(c echo.Context) error {
		id, _ := CurrentIdentity(c)
		return c.JSON(http.StatusOK, id)
	})
	g.GET("/faculty-only", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		RequireRole(model.RoleFaculty, model.RoleAdmin))
	return e
}

func do(e *echo.Echo, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()
	e := newTestServer()

	rec := do(e, "/v1/whoami", "stu")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var id model.Identity
	if err := json.Unmarshal(rec.Body.Bytes(), &id); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if id.ID != 7 || id.Role != model.RoleStudent {
		t.Errorf("identity: got %+v", id)
	}

	cases := []struct {
		token  string
		status int
		code   string
	}{
		{"", http.StatusUnauthorized, "authentication_error"},
		{"nope", http.StatusUnauthorized, "authentication_error"},
		{"down", http.StatusServiceUnavailable, "dependency_unavailable"},
	}
	for _, tc := range cases {
		rec := do(e, "/v1/whoami", tc.token)
		if rec.Code != tc.status {
			t.Errorf("token %q: got %d, want %d", tc.token, rec.Code, tc.status)
		}
		var body map[string]any
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
		if body["error"] != tc.code {
			t.Errorf("token %q: got error %v, want %s", tc.token, body["error"], tc.code)
		}
	}
	if got := do(e, "/v1/whoami", "").Header().Get(echo.HeaderWWWAuthenticate); got == "" {
		t.Errorf("401 without WWW-Authenticate header")
	}
}

func TestRequireRole(t *testing.T) {
	t.Parallel()
	e := newTestServer()
	if rec := do(e, "/v1/faculty-only", "fac"); rec.Code != http.StatusNoContent {
		t.Errorf("faculty: got %d, want 204", rec.Code)
	}
	if rec := do(e, "/v1/faculty-only", "stu"); rec.Code != http.StatusForbidden {
		t.Errorf("student: got %d, want 403", rec.Code)
	}
}

func TestRateKeyUsesIdentity(t *testing.T) {
	t.Parallel()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/reservations", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.9")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/reservations")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_user_route"}
	if got, want := buildRateKey(cfg, c), "rl:ip:10.0.0.9:user:anon:route:POST /v1/reservations"; got != want {
		t.Errorf("anonymous key: got %q, want %q", got, want)
	}
	SetIdentity(c, model.Identity{ID: 42, Role: model.RoleStudent})
	cfg.KeyStrategy = "user"
	if got, want := buildRateKey(cfg, c), "rl:user:42"; got != want {
		t.Errorf("user key: got %q, want %q", got, want)
	}
}

func TestCachePayload(t *testing.T) {
	t.Parallel()
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"items":[]}`))
	if err != nil {
		t.Fatalf("encodePayload: %v", err)
	}
	status, gotHdr, body, ok := decodePayload(bs)
	if !ok || status != http.StatusOK || string(body) != `{"items":[]}` || gotHdr.Get("Content-Type") != "application/json" {
		t.Errorf("decodePayload: got %d %v %q %v", status, gotHdr, body, ok)
	}
	if _, _, _, ok := decodePayload(bs[:6]); ok {
		t.Errorf("decodePayload(truncated): want not ok")
	}
}

func TestCacheKeyIncludesPathParams(t *testing.T) {
	t.Parallel()
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}
	key := func(id string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/offerings/"+id+"/slots", nil), httptest.NewRecorder())
		c.SetPath("/v1/offerings/:id/slots")
		c.SetParamNames("id")
		c.SetParamValues(id)
		return cacheKeyFrom(cfg, c)
	}
	if key("1") == key("2") {
		t.Errorf("cache key ignores path parameters")
	}
}

func TestAccessLogAndRecover(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	e := echo.New()
	e.Use(echomw.RequestID(), AccessLog(logger), Recover(logger))
	e.GET("/boom", func(echo.Context) error { panic("kaboom") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", rec.Code)
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Errorf("missing request id header")
	}
	if logs.FilterMessage("panic in handler").Len() != 1 {
		t.Errorf("panic not logged")
	}
	entries := logs.FilterMessage("request").All()
	if len(entries) != 1 || entries[0].ContextMap()["status"] != int64(500) {
		t.Errorf("access log: got %+v", entries)
	}
}
