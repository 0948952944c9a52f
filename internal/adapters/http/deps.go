package http

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/dineradar/internal/core/usecases"
)

// Pinger is a backing store that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Restaurants *usecases.RestaurantService
	// MapSession carries the collaborators shared by every WebSocket map
	// session. The sink and logger are filled in per connection.
	MapSession usecases.MapSessionDeps
	MapOptions usecases.MapSessionOptions
	NATS       *nats.Conn
	DB         Pinger
	Cache      Pinger
	// Breakers names upstream clients whose breaker state is reported by
	// the readiness probe.
	Breakers map[string]BreakerReporter
	Log      *slog.Logger
}

func (d *Dependencies) logger() *slog.Logger {
	if d.Log != nil {
		return d.Log
	}
	return slog.Default()
}
