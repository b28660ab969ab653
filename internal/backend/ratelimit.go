package backend

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

const rateLimitKeyPrefix = "imagestore:ratelimit:"

// incrementWindow counts one hit and starts the window on the first one.
// Counters without a TTL get one too, so a key can never outlive its window.
var incrementWindow = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if redis.call('PTTL', KEYS[1]) < 0 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return count
`)

// RateLimiter counts mutating requests per client IP in fixed windows stored in Redis.
type RateLimiter struct {
	client   redis.Cmdable
	requests int
	window   time.Duration
}

func NewRateLimiter(client redis.Cmdable, requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client:   client,
		requests: requests,
		window:   window,
	}
}

// Allow records one request for key and reports whether it fits the current window
// along with the number of requests left in it.
func (limiter *RateLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	redisKey := rateLimitKeyPrefix + key

	count, err := incrementWindow.Run(ctx, limiter.client, []string{redisKey}, limiter.window.Milliseconds()).Int64()
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	remaining := limiter.requests - int(count)
	if remaining < 0 {
		return false, 0, nil
	}
	return true, remaining, nil
}

// Middleware rejects requests over the limit with 429. Redis failures let the request through.
func (limiter *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			allowed, remaining, err := limiter.Allow(ctx.Request().Context(), ctx.RealIP())
			if err != nil {
				slog.Error("rateLimiter: limiter unavailable, allowing request", "error", err, "ip", ctx.RealIP())
				return next(ctx)
			}

			header := ctx.Response().Header()
			header.Set("X-RateLimit-Limit", strconv.Itoa(limiter.requests))
			header.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				header.Set("Retry-After", strconv.Itoa(int(limiter.window.Seconds())))
				slog.Warn("rateLimiter: request rejected", "ip", ctx.RealIP(), "path", ctx.Path())
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests")
			}
			return next(ctx)
		}
	}
}
