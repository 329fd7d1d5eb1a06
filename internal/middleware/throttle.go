package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"golang.org/x/time/rate"
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Throttle caps the request rate per client IP with a token bucket. It is a
// coarse guard in front of the auth endpoints and is separate from the login
// lockout. Buckets idle for longer than the idle timeout are evicted by Sweep.
type Throttle struct {
	limit   rate.Limit
	burst   int
	idle    time.Duration
	buckets map[string]*bucket
	mu      sync.Mutex
	now     func() time.Time
}

const defaultThrottleIdle = 10 * time.Minute

func NewThrottle(rps float64, burst int) *Throttle {
	if burst < 1 {
		burst = 1
	}
	return &Throttle{
		limit:   rate.Limit(rps),
		burst:   burst,
		idle:    defaultThrottleIdle,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// WithClock replaces the time source used for idle tracking.
func (t *Throttle) WithClock(now func() time.Time) *Throttle {
	t.now = now
	return t
}

// WithIdleTimeout sets how long an unused bucket survives a sweep.
func (t *Throttle) WithIdleTimeout(idle time.Duration) *Throttle {
	if idle > 0 {
		t.idle = idle
	}
	return t
}

// allow takes a token for key. key may alias the request buffer; it is
// copied before being stored.
func (t *Throttle) allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	b, ok := t.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.buckets[utils.CopyString(key)] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Sweep drops buckets idle longer than the idle timeout and returns how many
// were removed.
func (t *Throttle) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0
	for key, b := range t.buckets {
		if now.Sub(b.lastSeen) >= t.idle {
			delete(t.buckets, key)
			removed++
		}
	}
	return removed
}

// Run sweeps idle buckets every interval until ctx is cancelled.
func (t *Throttle) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep()
		}
	}
}

// Len reports the number of live buckets.
func (t *Throttle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buckets)
}

// Reset drops all buckets.
func (t *Throttle) Reset() {
	t.mu.Lock()
	t.buckets = make(map[string]*bucket)
	t.mu.Unlock()
}

func (t *Throttle) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.IP()
		if ips := c.IPs(); len(ips) > 0 && ips[0] != "" {
			key = ips[0]
		}

		if !t.allow(key) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Too many requests"})
		}
		return c.Next()
	}
}
