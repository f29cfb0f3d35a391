package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/auth"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/http/middleware"
)

func newRedisClient(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	srv, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	return client, func() {
		_ = client.Close()
		srv.Close()
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(handler http.Handler, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "10.0.0.7:51234"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiterEnforcesBurst(t *testing.T) {
	client, cleanup := newRedisClient(t)
	defer cleanup()

	limiter := middleware.NewRateLimiter(client,
		middleware.RateConfig{Rate: 0.5, Burst: 2},
		middleware.RateConfig{Rate: 0.5, Burst: 2})
	handler := limiter.Middleware(okHandler())

	require.Equal(t, http.StatusOK, doRequest(handler, http.MethodPost, "/bookings", "").Code)
	require.Equal(t, http.StatusOK, doRequest(handler, http.MethodPost, "/bookings", "").Code)

	rec := doRequest(handler, http.MethodPost, "/bookings", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimiterScopesReadsAndWrites(t *testing.T) {
	client, cleanup := newRedisClient(t)
	defer cleanup()

	limiter := middleware.NewRateLimiter(client,
		middleware.RateConfig{Rate: 100, Burst: 100},
		middleware.RateConfig{Rate: 0.1, Burst: 1})
	handler := limiter.Middleware(okHandler())

	require.Equal(t, http.StatusOK, doRequest(handler, http.MethodPost, "/bookings", "").Code)
	require.Equal(t, http.StatusTooManyRequests, doRequest(handler, http.MethodPost, "/bookings", "").Code)

	// the read bucket is untouched by exhausted writes
	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, doRequest(handler, http.MethodGet, "/quotes", "").Code)
	}
}

func TestRateLimiterKeysByRider(t *testing.T) {
	client, cleanup := newRedisClient(t)
	defer cleanup()

	const secret = "test-secret"
	riderA, err := auth.Issue(secret, "0b36884e-07a9-4a6f-9a5a-111111111111", auth.RoleRider, time.Hour)
	require.NoError(t, err)
	riderB, err := auth.Issue(secret, "0b36884e-07a9-4a6f-9a5a-222222222222", auth.RoleRider, time.Hour)
	require.NoError(t, err)

	limiter := middleware.NewRateLimiter(client,
		middleware.RateConfig{Rate: 0.1, Burst: 1},
		middleware.RateConfig{Rate: 0.1, Burst: 1})
	handler := auth.Middleware(secret)(limiter.Middleware(okHandler()))

	require.Equal(t, http.StatusOK, doRequest(handler, http.MethodPost, "/bookings", riderA).Code)
	require.Equal(t, http.StatusTooManyRequests, doRequest(handler, http.MethodPost, "/bookings", riderA).Code)

	// a different rider behind the same IP has a fresh bucket
	require.Equal(t, http.StatusOK, doRequest(handler, http.MethodPost, "/bookings", riderB).Code)
}

func TestRateLimiterFailsOpenWhenRedisDown(t *testing.T) {
	srv, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	limiter := middleware.NewRateLimiter(client,
		middleware.RateConfig{Rate: 1, Burst: 1},
		middleware.RateConfig{Rate: 1, Burst: 1})
	handler := limiter.Middleware(okHandler())

	srv.Close()
	require.Equal(t, http.StatusOK, doRequest(handler, http.MethodPost, "/bookings", "").Code)
}
