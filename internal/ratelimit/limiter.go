package ratelimit

//go:generate mockgen -destination=../mocks/mock_limiter.go -package=mocks github.com/mapofwonders/auth-service/internal/ratelimit Limiter

import (
	"context"
	"time"
)

const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 15 * time.Minute
)

// Limiter bounds failed login attempts per client key.
//
// Check returns a positive retryAfter while the key is locked out. A lockout
// is not an error; err is reserved for backend failures.
type Limiter interface {
	Check(ctx context.Context, key string) (retryAfter time.Duration, err error)
	RecordFailure(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

type Options struct {
	MaxAttempts int
	Window      time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	return o
}
