package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "storefront:rl:"

// RateLimit caps attempts per minute for scope, keyed by the JSON body field
// after normalize (falling back to the client IP when normalize returns "").
// A nil normalize lower-cases and trims. It is a no-op without Redis and
// fails open on cache errors.
func RateLimit(cache *redis.Client, scope, field string, maxPerMin int, normalize func(string) string) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	if normalize == nil {
		normalize = func(v string) string { return strings.ToLower(strings.TrimSpace(v)) }
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		var body map[string]any
		_ = c.BodyParser(&body)
		raw, _ := body[field].(string)
		subject := normalize(raw)
		if subject == "" {
			subject = c.IP()
		}

		key := rateLimitPrefix + scope + ":" + subject
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many attempts, try again later")
		}
		return c.Next()
	}
}
