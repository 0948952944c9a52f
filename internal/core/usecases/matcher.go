package usecases

import (
	"fmt"
	"math"
	"strings"

	"github.com/samirrijal/dineradar/internal/core/domain"
)

const (
	smartMatchThreshold = 70.0
	trendingRating      = 4.5
)

// Recommend scores each restaurant against prefs and classifies the match.
// Precedence: personal favorite, friend recommendation, smart match,
// trending, then all restaurants.
func Recommend(restaurants []domain.Restaurant, prefs domain.Preferences) []domain.Recommendation {
	favorites := toSet(prefs.FavoriteIDs)
	friends := toSet(prefs.FriendIDs)
	cuisines := make(map[string]bool, len(prefs.Cuisines))
	for _, c := range prefs.Cuisines {
		cuisines[strings.ToLower(strings.TrimSpace(c))] = true
	}

	out := make([]domain.Recommendation, 0, len(restaurants))
	for _, r := range restaurants {
		score, reasons := matchScore(r, prefs, cuisines)

		rec := domain.Recommendation{Restaurant: r, MatchScore: score}
		switch {
		case favorites[r.ID]:
			rec.MatchType = domain.MatchPersonalFavorite
			reasons = append([]string{"One of your favorites"}, reasons...)
		case friends[r.ID]:
			rec.MatchType = domain.MatchFriendRecommendation
			reasons = append([]string{"Recommended by a friend"}, reasons...)
		case score >= smartMatchThreshold:
			rec.MatchType = domain.MatchSmart
		case r.Rating != nil && *r.Rating >= trendingRating:
			rec.MatchType = domain.MatchTrending
			reasons = append([]string{"Trending nearby"}, reasons...)
		default:
			rec.MatchType = domain.MatchAll
		}
		if len(reasons) == 0 {
			reasons = []string{"Near you"}
		}
		rec.Reasons = reasons
		out = append(out, rec)
	}
	return out
}

// matchScore returns a 0-100 score and the reasons behind it, strongest first.
func matchScore(r domain.Restaurant, prefs domain.Preferences, cuisines map[string]bool) (float64, []string) {
	score := 40.0
	var reasons []string

	if r.Rating != nil {
		score += (*r.Rating - 3) * 10
		if *r.Rating >= 4 {
			reasons = append(reasons, fmt.Sprintf("Rated %.1f", *r.Rating))
		}
		if prefs.MinRating != nil && *r.Rating < *prefs.MinRating {
			score -= 20
		}
	}

	for _, c := range r.CuisineType {
		if cuisines[strings.ToLower(c)] {
			score += 25
			reasons = append([]string{"Serves " + c}, reasons...)
			break
		}
	}

	if prefs.MaxPrice != nil && r.PriceRange != nil {
		if *r.PriceRange <= *prefs.MaxPrice {
			score += 10
			reasons = append(reasons, "Within your budget")
		} else {
			score -= 15
		}
	}

	if prefs.PreferQuiet && r.Attributes != nil && r.Attributes.Quietness != nil {
		q := *r.Attributes.Quietness
		score += float64(q-50) / 5
		if q >= 70 {
			reasons = append(reasons, "Quiet atmosphere")
		}
	}

	return math.Max(0, math.Min(100, score)), reasons
}

func toSet(ids []string) map[string]bool {
	s := make(map[string]bool, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}
