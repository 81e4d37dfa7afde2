package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// WindowCounter counts hits for a key inside a fixed window.
type WindowCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
}

// RedisCounter implements WindowCounter with INCR and EXPIRE.
type RedisCounter struct {
	client *redis.Client
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

// Hit increments key and makes sure it expires. A key found without a TTL
// gets one even when it was not created by this call, so a lost EXPIRE
// cannot pin a client at the limit.
func (r *RedisCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis incr: %w", err)
	}
	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis ttl: %w", err)
	}
	if ttl < 0 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("redis expire: %w", err)
		}
		ttl = window
	}
	return count, ttl, nil
}

// RateLimitConfig configures the submission rate limiter.
type RateLimitConfig struct {
	Counter   WindowCounter
	Limit     int
	Window    time.Duration
	KeyPrefix string
}

// RateLimit rejects clients that exceed Limit requests per Window with 429.
// Counter errors let the request through.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rl:"
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.RealIP()
			if id == "" {
				id = "anonymous"
			}
			key := cfg.KeyPrefix + c.Path() + ":" + id

			count, ttl, err := cfg.Counter.Hit(c.Request().Context(), key, cfg.Window)
			if err != nil {
				slog.Warn("rate limiter unavailable", "error", err)
				return next(c)
			}

			reset := int(ttl.Seconds())
			if reset < 0 {
				reset = 0
			}
			remaining := cfg.Limit - int(count)
			if remaining < 0 {
				remaining = 0
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.Itoa(reset))

			if count > int64(cfg.Limit) {
				h.Set("Retry-After", strconv.Itoa(reset))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
