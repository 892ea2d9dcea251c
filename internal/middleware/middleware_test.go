package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taquilla/taquilla/internal/config"
	"github.com/taquilla/taquilla/internal/domain"
)

func TestSubdomain(t *testing.T) {
	cases := []struct {
		host string
		want string
	}{
		{"acme.taquilla.example", "acme"},
		{"acme.taquilla.example:8080", "acme"},
		{"www.taquilla.example", ""},
		{"api.taquilla.example", ""},
		{"taquilla.example", ""},
		{"localhost", ""},
		{"localhost:8080", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, subdomain(tc.host), "host %q", tc.host)
	}
}

func TestCachePayloadRoundTrip(t *testing.T) {
	hdr := http.Header{}
	hdr.Set("Content-Type", "application/json")
	body := []byte(`{"ok":true}`)

	bs, err := encodePayload(http.StatusOK, hdr, body)
	require.NoError(t, err)

	status, gotHdr, gotBody, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", gotHdr.Get("Content-Type"))
	assert.Equal(t, body, gotBody)
}

func TestCachePayloadRejectsTruncation(t *testing.T) {
	_, _, _, ok := decodePayload([]byte{1, 2, 3})
	assert.False(t, ok)
	_, _, _, ok = decodePayload(nil)
	assert.False(t, ok)
}

func newCtx(t *testing.T, tenantID uint64) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/public/events?page=2", nil)
	if tenantID != 0 {
		req = req.WithContext(domain.WithTenant(req.Context(), domain.TenantRef{ID: tenantID}))
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/public/events")
	return c
}

func TestCacheKeyIsTenantScoped(t *testing.T) {
	cfg := config.CacheConfig{Prefix: "cache"}
	k1 := cacheKeyFrom(cfg, newCtx(t, 1))
	k2 := cacheKeyFrom(cfg, newCtx(t, 2))
	assert.NotEqual(t, k1, k2)
	assert.Equal(t, k1, cacheKeyFrom(cfg, newCtx(t, 1)))
}

func TestRateKeyIsTenantScoped(t *testing.T) {
	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "route"}
	k1 := buildRateKey(cfg, newCtx(t, 1))
	k2 := buildRateKey(cfg, newCtx(t, 2))
	assert.NotEqual(t, k1, k2)
	assert.Contains(t, k1, "rl:t:1")
	assert.Contains(t, k2, "rl:t:2")
}

func TestTenantKeyWithoutTenant(t *testing.T) {
	assert.Equal(t, "none", tenantKey(newCtx(t, 0)))
}
