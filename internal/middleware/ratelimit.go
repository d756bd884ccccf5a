package middleware

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/searchai/api/pkg/response"
)

type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient}
}

// Limit creates a fixed-window rate limiting middleware keyed by the
// authenticated user, or by client IP when auth is off.
func (rl *RateLimiter) Limit(keyPrefix string, maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if maxRequests <= 0 {
			return c.Next()
		}

		caller := GetUserID(c)
		if caller == "" {
			caller = "ip:" + c.IP()
		}

		key := fmt.Sprintf("ratelimit:%s:%s", keyPrefix, caller)
		ctx := c.UserContext()

		// Increment counter
		count, err := rl.redis.Incr(ctx, key).Result()
		if err != nil {
			// If Redis fails, allow the request but log the error
			slog.WarnContext(ctx, "rate limiter unavailable", "error", err)
			return c.Next()
		}

		// Set expiration on first request
		if count == 1 {
			rl.redis.Expire(ctx, key, window)
		}

		if count > int64(maxRequests) {
			ttl, _ := rl.redis.TTL(ctx, key).Result()
			return response.RateLimited(c, int(ttl.Seconds()))
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(maxRequests-int(count)))

		return c.Next()
	}
}

// SearchLimit limits search submissions per hour
func (rl *RateLimiter) SearchLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("search", maxPerHour, time.Hour)
}

// AskLimit limits contextual questions per minute
func (rl *RateLimiter) AskLimit(maxPerMin int) fiber.Handler {
	return rl.Limit("ask", maxPerMin, time.Minute)
}
