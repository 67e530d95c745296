package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/lounge-reservation/internal/config"
	"github.com/iliyamo/lounge-reservation/internal/model"
	"github.com/iliyamo/lounge-reservation/internal/utils"
)

const secret = "test-secret"

func serve(t *testing.T, h echo.HandlerFunc, mw []echo.MiddlewareFunc, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.GET("/v1/slots", h, mw...)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func whoami(c echo.Context) error {
	id, ok := UserID(c)
	return c.JSON(http.StatusOK, echo.Map{"user_id": id, "signed_in": ok})
}

func bearer(t *testing.T, userID uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, userID, role, time.Minute)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func TestJWTAuth(t *testing.T) {
	mw := []echo.MiddlewareFunc{JWTAuth(secret)}

	req := httptest.NewRequest(http.MethodGet, "/v1/slots", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(t, whoami, mw, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/slots", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, serve(t, whoami, mw, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/slots", nil)
	req.Header.Set("Authorization", bearer(t, 42, model.RoleCustomer))
	rec := serve(t, whoami, mw, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":42,"signed_in":true}`, rec.Body.String())
}

func TestJWTAuthRejectsOtherSecret(t *testing.T) {
	tok, err := utils.NewAccessToken("someone-else", 1, model.RoleAdmin, time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/v1/slots", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	assert.Equal(t, http.StatusUnauthorized, serve(t, whoami, []echo.MiddlewareFunc{JWTAuth(secret)}, req).Code)
}

func TestOptionalJWT(t *testing.T) {
	mw := []echo.MiddlewareFunc{OptionalJWT(secret)}

	req := httptest.NewRequest(http.MethodGet, "/v1/slots", nil)
	rec := serve(t, whoami, mw, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":0,"signed_in":false}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/v1/slots", nil)
	req.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, http.StatusUnauthorized, serve(t, whoami, mw, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/slots", nil)
	req.Header.Set("Authorization", bearer(t, 9, model.RoleCustomer))
	assert.JSONEq(t, `{"user_id":9,"signed_in":true}`, serve(t, whoami, mw, req).Body.String())
}

func TestRequireRole(t *testing.T) {
	mw := []echo.MiddlewareFunc{JWTAuth(secret), RequireRole(model.RoleAdmin)}

	req := httptest.NewRequest(http.MethodGet, "/v1/slots", nil)
	req.Header.Set("Authorization", bearer(t, 1, model.RoleCustomer))
	assert.Equal(t, http.StatusForbidden, serve(t, whoami, mw, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/slots", nil)
	req.Header.Set("Authorization", bearer(t, 1, model.RoleAdmin))
	assert.Equal(t, http.StatusOK, serve(t, whoami, mw, req).Code)
}

func TestUserIDShapes(t *testing.T) {
	e := echo.New()
	for _, v := range []any{uint64(5), 5, int64(5), float64(5), "5"} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.Set(ContextUserID, v)
		id, ok := UserID(c)
		assert.True(t, ok, "%T", v)
		assert.Equal(t, uint64(5), id)
	}
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	_, ok := UserID(c)
	assert.False(t, ok)
	assert.Equal(t, "guest", userKey(c))
}

func TestCacheKeyIsDateScoped(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "avail", KeyStrategy: "route_query"}

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/slots?date=2026-01-15", nil), httptest.NewRecorder())
	c.SetPath("/v1/slots")
	key, ok := cacheKeyFrom(cfg, c)
	require.True(t, ok)
	assert.Regexp(t, `^avail:2026-01-15:[0-9a-f]{40}$`, key)

	other := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/availability?date=2026-01-15&time=18:00", nil), httptest.NewRecorder())
	other.SetPath("/v1/availability")
	otherKey, ok := cacheKeyFrom(cfg, other)
	require.True(t, ok)
	assert.NotEqual(t, key, otherKey)
	assert.Equal(t, dateScope("avail", "2026-01-15"), otherKey[:len("avail:2026-01-15:")])

	bad := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/slots?date=tomorrow", nil), httptest.NewRecorder())
	_, ok = cacheKeyFrom(cfg, bad)
	assert.False(t, ok)
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": []string{"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, hdr, got)
	assert.Equal(t, `{"ok":true}`, string(body))

	_, _, _, ok = decodePayload(bs[:6])
	assert.False(t, ok)
}

func TestCaptureWriterLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	_, _ = cw.Write([]byte("abc"))
	_, _ = cw.Write([]byte("defg"))
	assert.Equal(t, "abcd", cw.buf.String())
	assert.Equal(t, int64(7), cw.size)
	assert.Equal(t, "abcdefg", rec.Body.String())
}

func TestParseDecision(t *testing.T) {
	d, err := parseDecision([]interface{}{int64(0), int64(0), int64(1500)})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 1500*time.Millisecond, d.RetryAfter)

	d, err = parseDecision([]interface{}{int64(1), int64(9), int64(0)})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(9), d.Remaining)

	_, err = parseDecision("OK")
	assert.Error(t, err)
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/bookings", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.7")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/bookings")
	c.Set(ContextUserID, float64(3))

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_user_route"}
	assert.Equal(t, "rl:ip:10.0.0.7:user:3:route:POST /v1/bookings", buildRateKey(cfg, c))
	cfg.KeyStrategy = "ip"
	assert.Equal(t, "rl:ip:10.0.0.7", buildRateKey(cfg, c))
}
