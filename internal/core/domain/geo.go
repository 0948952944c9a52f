package domain

import "math"

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether both axes are finite and inside WGS 84 range.
func (p GeoPoint) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// Valid reports whether the box is ordered and inside WGS 84 range.
func (b Bounds) Valid() bool {
	return GeoPoint{Lat: b.MinLat, Lng: b.MinLng}.Valid() &&
		GeoPoint{Lat: b.MaxLat, Lng: b.MaxLng}.Valid() &&
		b.MinLat <= b.MaxLat && b.MinLng <= b.MaxLng
}
