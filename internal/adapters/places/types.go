package places

import "github.com/samirrijal/dineradar/internal/core/ports"

type nearbyResponse struct {
	Results      []placeResult `json:"results"`
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

type placeResult struct {
	PlaceID    string   `json:"place_id"`
	Name       string   `json:"name"`
	Vicinity   string   `json:"vicinity"`
	Geometry   geometry `json:"geometry"`
	Types      []string `json:"types"`
	Rating     *float64 `json:"rating,omitempty"`
	PriceLevel *int     `json:"price_level,omitempty"`
}

type geometry struct {
	Location *location `json:"location"`
}

type location struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func (p placeResult) toPort() ports.PlaceResult {
	out := ports.PlaceResult{
		PlaceID:    p.PlaceID,
		Name:       p.Name,
		Vicinity:   p.Vicinity,
		Types:      p.Types,
		Rating:     p.Rating,
		PriceLevel: p.PriceLevel,
	}
	if p.Geometry.Location != nil {
		out.Lat = p.Geometry.Location.Lat
		out.Lng = p.Geometry.Location.Lng
	}
	return out
}
