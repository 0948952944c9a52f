package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Handlers that set their own header win.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet {
			return err
		}
		if existing := c.GetRespHeader("Cache-Control"); existing != "" {
			return err
		}
		if ttl := cacheControlFor(c.Path()); ttl != "" {
			c.Set("Cache-Control", ttl)
		}
		return err
	}
}

func cacheControlFor(path string) string {
	switch {
	case path == "/v1/health" || path == "/v1/ready":
		return "public, max-age=10"
	case path == "/metrics":
		return "no-cache"
	case path == "/graphql":
		return "private, max-age=0"
	case strings.HasPrefix(path, "/ws"):
		return "no-store"
	case strings.HasPrefix(path, "/v1/geocode/"):
		// postal centers practically never move
		return "public, max-age=86400"
	case path == "/v1/restaurants" || path == "/v1/restaurants/nearby":
		// live results change as places open and close
		return "public, max-age=120"
	case strings.HasPrefix(path, "/v1/restaurants/"):
		return "public, max-age=600"
	case strings.HasPrefix(path, "/v1/recommendations/"):
		return "public, max-age=300"
	case strings.HasPrefix(path, "/docs"):
		return "public, max-age=3600"
	case strings.HasPrefix(path, "/v1/"):
		return "public, max-age=300"
	}
	return ""
}
