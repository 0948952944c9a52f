package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// BreakerReporter is an upstream client guarded by a circuit breaker.
type BreakerReporter interface {
	BreakerState() string
}

type driverNamer interface {
	Driver() string
}

// HealthHandler is the liveness probe. It reports the catalog backend so an
// operator can tell an embedded deployment from a PostGIS one.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()
	catalog := "unknown"
	if d, ok := deps.DB.(driverNamer); ok {
		catalog = d.Driver()
	}

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "dineradar-api",
			"catalog": catalog,
			"uptime":  time.Since(startedAt).Round(time.Second).String(),
		})
	}
}

// ReadyHandler gates traffic on the catalog. NATS and the cache are optional
// and only fail readiness when configured but broken. An open upstream
// breaker is reported without failing: nearby answers degrade to the catalog.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		checks := make(map[string]string)
		ready := true

		switch {
		case deps.DB == nil:
			checks["catalog"] = "not configured"
			ready = false
		default:
			if err := deps.DB.Ping(ctx); err != nil {
				checks["catalog"] = "error: " + err.Error()
				ready = false
			} else {
				checks["catalog"] = "ok"
			}
		}

		switch {
		case deps.NATS == nil:
			checks["nats"] = "not configured"
		case deps.NATS.IsConnected():
			checks["nats"] = "ok"
		default:
			checks["nats"] = "disconnected"
			ready = false
		}

		if deps.Cache == nil {
			checks["cache"] = "not configured"
		} else if err := deps.Cache.Ping(ctx); err != nil {
			checks["cache"] = "error: " + err.Error()
			ready = false
		} else {
			checks["cache"] = "ok"
		}

		for name, b := range deps.Breakers {
			state := b.BreakerState()
			if state == "open" {
				state = "open (degraded)"
			}
			checks[name] = state
		}

		status, code := "ready", fiber.StatusOK
		if !ready {
			status, code = "not ready", fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
