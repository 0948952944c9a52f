package domain

import (
	"strconv"
	"strings"
)

// LiveIDPrefix marks ids minted for live place-search results.
const LiveIDPrefix = "live-"

// Provenance records which source last supplied a record's identity fields.
type Provenance string

const (
	ProvenancePersisted Provenance = "persisted"
	ProvenanceLive      Provenance = "live"
)

// Attributes is the enrichment schema accumulated on catalog records.
// Every field is optional; scores are 0-100.
type Attributes struct {
	Quietness            *int     `json:"quietness,omitempty" validate:"omitempty,min=0,max=100"`
	Atmosphere           *int     `json:"atmosphere,omitempty" validate:"omitempty,min=0,max=100"`
	ServiceSpeed         *int     `json:"service_speed,omitempty" validate:"omitempty,min=0,max=100"`
	Cleanliness          *int     `json:"cleanliness,omitempty" validate:"omitempty,min=0,max=100"`
	KidFriendly          *bool    `json:"kid_friendly,omitempty"`
	OutdoorSeating       *bool    `json:"outdoor_seating,omitempty"`
	WheelchairAccessible *bool    `json:"wheelchair_accessible,omitempty"`
	Tags                 []string `json:"tags,omitempty" validate:"omitempty,max=20,dive,min=1,max=40"`
}

// Clone returns a deep copy.
func (a *Attributes) Clone() *Attributes {
	if a == nil {
		return nil
	}
	c := &Attributes{
		Quietness:            clonePtr(a.Quietness),
		Atmosphere:           clonePtr(a.Atmosphere),
		ServiceSpeed:         clonePtr(a.ServiceSpeed),
		Cleanliness:          clonePtr(a.Cleanliness),
		KidFriendly:          clonePtr(a.KidFriendly),
		OutdoorSeating:       clonePtr(a.OutdoorSeating),
		WheelchairAccessible: clonePtr(a.WheelchairAccessible),
	}
	if a.Tags != nil {
		c.Tags = append([]string(nil), a.Tags...)
	}
	return c
}

// Restaurant is the canonical restaurant record shared by both sources.
type Restaurant struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Address     string      `json:"address,omitempty"`
	PostalCode  string      `json:"postal_code,omitempty"`
	Coordinates GeoPoint    `json:"coordinates"`
	CuisineType []string    `json:"cuisine_type,omitempty"`
	PriceRange  *int        `json:"price_range,omitempty"`
	Rating      *float64    `json:"rating,omitempty"`
	Attributes  *Attributes `json:"attributes,omitempty"`
	Provenance  Provenance  `json:"provenance"`
	DistanceKm  *float64    `json:"distance_km,omitempty"` // computed field
}

// Clone returns a deep copy so callers can modify the result freely.
func (r Restaurant) Clone() Restaurant {
	c := r
	if r.CuisineType != nil {
		c.CuisineType = append([]string(nil), r.CuisineType...)
	}
	c.PriceRange = clonePtr(r.PriceRange)
	c.Rating = clonePtr(r.Rating)
	c.Attributes = r.Attributes.Clone()
	c.DistanceKm = clonePtr(r.DistanceKm)
	return c
}

// IsLive reports whether the id was minted for a live search result.
func IsLive(id string) bool {
	return strings.HasPrefix(id, LiveIDPrefix)
}

// IdentityKey returns the cross-source identity of a restaurant: the
// lower-cased name plus both coordinates at 4 decimal places.
func IdentityKey(r Restaurant) string {
	return strings.ToLower(r.Name) + "|" + coordKey(r.Coordinates.Lat) + "|" + coordKey(r.Coordinates.Lng)
}

func coordKey(v float64) string {
	s := strconv.FormatFloat(v, 'f', 4, 64)
	if s == "-0.0000" {
		return "0.0000"
	}
	return s
}

// MatchType classifies why a restaurant was recommended.
type MatchType string

const (
	MatchPersonalFavorite     MatchType = "personal-favorite"
	MatchFriendRecommendation MatchType = "friend-recommendation"
	MatchSmart                MatchType = "smart-match"
	MatchTrending             MatchType = "trending"
	MatchAll                  MatchType = "all-restaurants"
)

// Recommendation is a restaurant plus ranking metadata. It is recomputed on
// every ranking pass and never stored.
type Recommendation struct {
	Restaurant    Restaurant `json:"restaurant"`
	MatchScore    float64    `json:"match_score"`
	MatchType     MatchType  `json:"match_type"`
	Reasons       []string   `json:"reasons"`
	AdjustedScore *float64   `json:"adjusted_score,omitempty"`
}

// Preferences drives match scoring for a diner.
type Preferences struct {
	FavoriteIDs []string `json:"favorite_ids,omitempty"`
	FriendIDs   []string `json:"friend_ids,omitempty"`
	Cuisines    []string `json:"cuisines,omitempty"`
	MaxPrice    *int     `json:"max_price,omitempty" validate:"omitempty,min=1,max=4"`
	MinRating   *float64 `json:"min_rating,omitempty" validate:"omitempty,min=0,max=5"`
	PreferQuiet bool     `json:"prefer_quiet,omitempty"`
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// StoredID is the catalog id for a record: live ids lose their prefix so a
// promoted place keeps its upstream place id.
func StoredID(id string) string {
	return strings.TrimPrefix(id, LiveIDPrefix)
}
