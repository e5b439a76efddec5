package ratelimit_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	limiter "github.com/ulule/limiter/v3"

	"github.com/nearexpiry/backend-nearexpiry/internal/ratelimit"
)

func newMiddleware(t *testing.T, max int64) ratelimit.Middleware {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	lim, err := ratelimit.New(client, limiter.Rate{Period: time.Minute, Limit: max})
	require.NoError(t, err)
	return ratelimit.Middleware{Limiter: lim}
}

func fire(t *testing.T, handler http.Handler, ip string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.RemoteAddr = ip + ":4040"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestMiddlewareThrottlesPerIP(t *testing.T) {
	mw := newMiddleware(t, 2)
	handler := mw.Handle(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 0; i < 2; i++ {
		rec := fire(t, handler, "10.0.0.1")
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	rec := fire(t, handler, "10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	// A different client still gets through.
	rec = fire(t, handler, "10.0.0.2")
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMiddlewareWithoutLimiterPassesThrough(t *testing.T) {
	mw := ratelimit.Middleware{}
	handler := mw.Handle(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := fire(t, handler, "10.0.0.3")
	require.Equal(t, http.StatusNoContent, rec.Code)
}
