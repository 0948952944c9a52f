package domain

import "time"

// FetchState is the viewport fetch controller state.
type FetchState string

const (
	FetchIdle       FetchState = "idle"
	FetchDebouncing FetchState = "debouncing"
	FetchFetching   FetchState = "fetching"
)

// MapView is the committed list/map state pushed to a map client.
type MapView struct {
	SessionID   string       `json:"session_id"`
	Center      *GeoPoint    `json:"center,omitempty"`
	PostalCode  string       `json:"postal_code,omitempty"`
	Restaurants []Restaurant `json:"restaurants"`
	Visible     []Restaurant `json:"visible,omitempty"`
	FocusedID   string       `json:"focused_id,omitempty"`
	State       FetchState   `json:"state"`
}

// FlyTo instructs the map surface to focus a plotted restaurant. ID is the
// resolved id, which may differ from the one requested.
type FlyTo struct {
	ID          string   `json:"id"`
	RequestedID string   `json:"requested_id"`
	Coordinates GeoPoint `json:"coordinates"`
}

// CatalogSyncedEvent announces new persisted rows around a center.
type CatalogSyncedEvent struct {
	Center       GeoPoint  `json:"center"`
	RadiusMeters float64   `json:"radius_meters"`
	Inserted     int       `json:"inserted"`
	SyncedAt     time.Time `json:"synced_at"`
}

// ViewportFetchedEvent is emitted after a live fetch commits.
type ViewportFetchedEvent struct {
	SessionID string    `json:"session_id"`
	Center    GeoPoint  `json:"center"`
	Returned  int       `json:"returned"`
	Added     int       `json:"added"`
	Total     int       `json:"total"`
	FetchedAt time.Time `json:"fetched_at"`
}

// FocusEvent records a focus request and how it resolved.
type FocusEvent struct {
	SessionID   string    `json:"session_id"`
	RequestedID string    `json:"requested_id"`
	ResolvedID  string    `json:"resolved_id,omitempty"`
	Outcome     string    `json:"outcome"`
	At          time.Time `json:"at"`
}
