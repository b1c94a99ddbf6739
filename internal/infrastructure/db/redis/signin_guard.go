package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultMaxAttempts = 10
	defaultWindow      = 15 * time.Minute
)

// SignInGuard counts failed sign-ins per key in a fixed window.
// Key format: signin:<normalized email>
type SignInGuard struct {
	client      redis.UniversalClient
	maxAttempts int
	window      time.Duration
}

// NewSignInGuard creates a SignInGuard. Non-positive limits fall back to the
// defaults.
func NewSignInGuard(client redis.UniversalClient, maxAttempts int, window time.Duration) *SignInGuard {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if window <= 0 {
		window = defaultWindow
	}
	return &SignInGuard{client: client, maxAttempts: maxAttempts, window: window}
}

// Allow reports whether another attempt may be made for key.
func (g *SignInGuard) Allow(ctx context.Context, key string) (bool, error) {
	n, err := g.client.Get(ctx, g.key(key)).Int()
	if errors.Is(err, redis.Nil) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("signin guard check: %w", err)
	}
	return n < g.maxAttempts, nil
}

// Fail records a failed attempt. The window starts at the first failure.
func (g *SignInGuard) Fail(ctx context.Context, key string) error {
	k := g.key(key)
	_, err := g.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, g.window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("signin guard record: %w", err)
	}
	return nil
}

// Reset clears the counter after a successful sign-in.
func (g *SignInGuard) Reset(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, g.key(key)).Err(); err != nil {
		return fmt.Errorf("signin guard reset: %w", err)
	}
	return nil
}

func (g *SignInGuard) key(k string) string {
	return "signin:" + k
}
