package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/noah-isme/backoffice-api/internal/config"
)

type stubChecker struct{ dbErr error }

func (s stubChecker) PingDB(context.Context, time.Duration) error    { return s.dbErr }
func (s stubChecker) PingRedis(context.Context, time.Duration) error { return nil }

func testRouter(t *testing.T, rate limiter.Rate) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{
		AppEnv:         "test",
		VATRate:        0.18,
		CurrencyCode:   "USD",
		BodyLimitBytes: 1 << 10,
		IdempotencyTTL: time.Minute,
		PprofEnabled:   true,
		PprofUser:      "ops",
		PprofPass:      "secret",
	}
	return NewRouter(cfg, RouterDeps{
		Redis:   rdb,
		Health:  stubChecker{},
		Limiter: limiter.New(memory.NewStore(), rate),
		Logger:  zerolog.Nop(),
	})
}

func TestRouterServesPricing(t *testing.T) {
	h := testRouter(t, limiter.Rate{Period: time.Minute, Limit: 100})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/pricing/words?amount=2500", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"words":"two thousand five hundred"`)
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	require.Equal(t, "100", rr.Header().Get("X-RateLimit-Limit"))

	rr = httptest.NewRecorder()
	body := `{"kind":"invoice","items":[{"description":"Consulting","quantity":2,"unitPrice":1180}]}`
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/pricing/quote", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"amountInWords":"two thousand three hundred sixty"`)
}

func TestRouterRateLimits(t *testing.T) {
	h := testRouter(t, limiter.Rate{Period: time.Minute, Limit: 1})

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/v1/pricing/words?amount=1", nil))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/v1/pricing/words?amount=1", nil))
	require.Equal(t, http.StatusTooManyRequests, second.Code)

	// Health sits outside the limited group.
	live := httptest.NewRecorder()
	h.ServeHTTP(live, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, live.Code)
}

func TestRouterRejectsOversizedBody(t *testing.T) {
	h := testRouter(t, limiter.Rate{Period: time.Minute, Limit: 100})

	rr := httptest.NewRecorder()
	payload := `{"items":[{"description":"` + strings.Repeat("x", 2048) + `","quantity":1,"unitPrice":1}]}`
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/pricing/quote", strings.NewReader(payload)))
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestRouterReadinessAndPprofAuth(t *testing.T) {
	h := testRouter(t, limiter.Rate{Period: time.Minute, Limit: 100})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	req.SetBasicAuth("ops", "secret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}
