package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/mapofwonders/auth-service/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSecurityHeaders(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.SecurityHeaders())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.NoError(t, err)

	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Equal(t, "1; mode=block", resp.Header.Get("X-XSS-Protection"))
	assert.Equal(t, "max-age=31536000; includeSubDomains", resp.Header.Get("Strict-Transport-Security"))
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	app := fiber.New()
	app.Use(requestid.New())
	app.Use(middleware.Logger(zap.New(core)))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })
	app.Get("/boom", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusTeapot, "short and stout") })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Forwarded-For", "10.1.2.3")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(http.StatusOK), fields["status"])
	assert.Equal(t, "/ping", fields["path"])
	assert.Equal(t, resp.Header.Get("X-Request-ID"), fields["request_id"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	failed := logs.FilterMessage("request failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, int64(http.StatusTeapot), failed[0].ContextMap()["status"])
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := middleware.NewMetrics(middleware.MetricsOptions{Registerer: reg})
	require.NoError(t, err)

	app := fiber.New()
	app.Use(metrics.Handler())
	app.Get("/users/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	app.Get("/fail", func(c *fiber.Ctx) error { return fiber.ErrBadGateway })

	for _, path := range []string{"/users/1", "/users/2", "/fail", "/nope/1", "/nope/2"} {
		_, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Requests.WithLabelValues("GET", "/users/:id", "204")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Requests.WithLabelValues("GET", "/fail", "502")))
	// Unknown paths share one series instead of one per raw path.
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Requests.WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.InFlight))
	assert.Equal(t, 3, testutil.CollectAndCount(metrics.Duration))
	assert.Equal(t, 3, testutil.CollectAndCount(metrics.Requests))
}

func TestNewMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first, err := middleware.NewMetrics(middleware.MetricsOptions{Registerer: reg})
	require.NoError(t, err)
	second, err := middleware.NewMetrics(middleware.MetricsOptions{Registerer: reg})
	require.NoError(t, err)

	assert.Same(t, first.Requests, second.Requests)
	assert.Same(t, first.Duration, second.Duration)
}

func TestThrottle(t *testing.T) {
	throttle := middleware.NewThrottle(0.001, 3)

	app := fiber.New()
	app.Use(throttle.Handler())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-Forwarded-For", ip)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, send("1.2.3.4"))
	}
	assert.Equal(t, http.StatusTooManyRequests, send("1.2.3.4"))
	assert.Equal(t, http.StatusOK, send("5.6.7.8"))

	throttle.Reset()
	assert.Equal(t, http.StatusOK, send("1.2.3.4"))
}

func TestThrottle_IsolatesInterleavedClients(t *testing.T) {
	throttle := middleware.NewThrottle(0.001, 2)

	app := fiber.New()
	app.Use(throttle.Handler())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-Forwarded-For", ip)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, send("1.2.3.4"))
	assert.Equal(t, http.StatusOK, send("5.6.7.8"))
	assert.Equal(t, http.StatusOK, send("1.2.3.4"))
	assert.Equal(t, http.StatusTooManyRequests, send("1.2.3.4"))

	// Each request reuses the previous request's buffers; a stored key that
	// aliased them would now read as a different client.
	assert.Equal(t, http.StatusOK, send("5.6.7.8"))
	assert.Equal(t, http.StatusTooManyRequests, send("5.6.7.8"))
	assert.Equal(t, http.StatusOK, send("9.9.9.9"))
	assert.Equal(t, http.StatusTooManyRequests, send("1.2.3.4"))
	assert.Equal(t, 3, throttle.Len())
}

func TestThrottle_EvictsIdleBuckets(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	throttle := middleware.NewThrottle(0.001, 1).WithClock(clock).WithIdleTimeout(time.Minute)

	app := fiber.New()
	app.Use(throttle.Handler())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-Forwarded-For", ip)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, send("1.1.1.1"))
	assert.Equal(t, http.StatusOK, send("2.2.2.2"))
	assert.Equal(t, http.StatusTooManyRequests, send("1.1.1.1"))
	require.Equal(t, 2, throttle.Len())

	advance(30 * time.Second)
	assert.Equal(t, 0, throttle.Sweep())
	assert.Equal(t, http.StatusTooManyRequests, send("2.2.2.2"))

	// 1.1.1.1 was last seen 30s before 2.2.2.2.
	advance(30 * time.Second)
	assert.Equal(t, 1, throttle.Sweep())
	assert.Equal(t, 1, throttle.Len())

	advance(30 * time.Second)
	assert.Equal(t, 1, throttle.Sweep())
	assert.Equal(t, 0, throttle.Len())

	// An evicted client starts over with a full bucket.
	assert.Equal(t, http.StatusOK, send("1.1.1.1"))
}
