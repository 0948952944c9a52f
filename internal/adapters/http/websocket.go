package http

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/dineradar/internal/adapters/nats"
	"github.com/samirrijal/dineradar/internal/core/domain"
	"github.com/samirrijal/dineradar/internal/core/ports"
	"github.com/samirrijal/dineradar/internal/core/usecases"
	"github.com/samirrijal/dineradar/internal/pkg/metrics"
)

// wsClientMessage is sent from the map client.
//
//	{"type":"center","lat":40.75,"lng":-73.99}
//	{"type":"lookup","lat":40.75,"lng":-73.99}
//	{"type":"bounds","min_lat":..,"min_lng":..,"max_lat":..,"max_lng":..}
//	{"type":"postal","postal_code":"10001"}
//	{"type":"filter","postal_code":""}
//	{"type":"focus","id":"abc"}
type wsClientMessage struct {
	Type       string   `json:"type"`
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
	MinLat     float64  `json:"min_lat"`
	MinLng     float64  `json:"min_lng"`
	MaxLat     float64  `json:"max_lat"`
	MaxLng     float64  `json:"max_lng"`
	PostalCode string   `json:"postal_code"`
	ID         string   `json:"id"`
}

type wsViewMessage struct {
	Type string `json:"type"`
	domain.MapView
}

type wsFlyToMessage struct {
	Type        string  `json:"type"`
	ID          string  `json:"id"`
	RequestedID string  `json:"requested_id"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

type wsErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// wsSink implements ports.MapSink over one WebSocket connection. Writes are
// serialized since the session pushes from timer goroutines.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

var _ ports.MapSink = (*wsSink)(nil)

func (s *wsSink) writeJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsSink) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

func (s *wsSink) SendView(view domain.MapView) error {
	return s.writeJSON(wsViewMessage{Type: "view", MapView: view})
}

func (s *wsSink) SendFlyTo(target domain.FlyTo) error {
	return s.writeJSON(wsFlyToMessage{
		Type:        "fly_to",
		ID:          target.ID,
		RequestedID: target.RequestedID,
		Lat:         target.Coordinates.Lat,
		Lng:         target.Coordinates.Lng,
	})
}

func (s *wsSink) sendError(msg string) {
	_ = s.writeJSON(wsErrorMessage{Type: "error", Message: msg})
}

// MapSessionHandler returns a handler that runs one map session per
// WebSocket connection. The session starts on the first center or postal
// message and reloads its catalog snapshot whenever a catalog sync is
// announced on NATS.
func MapSessionHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		log := deps.logger().With("remote_addr", c.RemoteAddr().String())
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sink := &wsSink{conn: c}
		sessionDeps := deps.MapSession
		sessionDeps.Sink = sink
		sessionDeps.Log = log
		session := usecases.NewMapSession(ctx, sessionDeps, deps.MapOptions)
		defer session.Close()

		metrics.ActiveMapSessions.Inc()
		defer metrics.ActiveMapSessions.Dec()
		log = log.With("session_id", session.ID())
		log.Info("map session opened")

		if deps.NATS != nil {
			sub, err := deps.NATS.Subscribe(natsadapter.SubjectCatalogSynced, func(*nats.Msg) {
				if err := session.RefreshCatalog(ctx); err != nil {
					log.Warn("catalog refresh failed", "error", err)
				}
			})
			if err != nil {
				log.Warn("catalog sync subscribe failed", "error", err)
			} else {
				defer func() { _ = sub.Unsubscribe() }()
			}
		}

		// Keep-alive ping
		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := sink.ping(); err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		started := false
		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsClientMessage
			if err := json.Unmarshal(raw, &m); err != nil {
				sink.sendError("invalid JSON")
				continue
			}

			if err := handleMapMessage(ctx, session, m, &started); err != nil {
				sink.sendError(err.Error())
			}
		}

		log.Info("map session closed")
	}
}

var errNotStarted = errors.New("send a center or postal message first")

func handleMapMessage(ctx context.Context, session *usecases.MapSession, m wsClientMessage, started *bool) error {
	switch m.Type {
	case "center", "lookup":
		if m.Lat == nil || m.Lng == nil {
			return errors.New("lat and lng are required")
		}
		center := domain.GeoPoint{Lat: *m.Lat, Lng: *m.Lng}
		if !center.Valid() {
			return domain.ErrInvalidCoordinates
		}
		if !*started {
			if err := session.Start(ctx, center); err != nil {
				return err
			}
			*started = true
			return nil
		}
		if m.Type == "lookup" {
			session.OnLookupCenter(center)
		} else {
			session.OnCenterChange(center)
		}

	case "postal":
		if !*started {
			if err := session.RefreshCatalog(ctx); err != nil {
				return err
			}
		}
		if err := session.JumpToPostalCode(ctx, m.PostalCode); err != nil {
			return err
		}
		*started = true

	case "filter":
		if !*started {
			return errNotStarted
		}
		session.SetPostalFilter(m.PostalCode)

	case "bounds":
		if !*started {
			return errNotStarted
		}
		b := domain.Bounds{MinLat: m.MinLat, MinLng: m.MinLng, MaxLat: m.MaxLat, MaxLng: m.MaxLng}
		if !b.Valid() {
			return errors.New("invalid bounds")
		}
		session.OnBoundsChange(b)

	case "focus":
		if !*started {
			return errNotStarted
		}
		if _, err := session.FocusRestaurant(m.ID); err != nil {
			return err
		}

	default:
		return errors.New("unknown message type: " + m.Type)
	}
	return nil
}
