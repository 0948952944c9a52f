package usecases

import (
	"math/rand"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samirrijal/dineradar/internal/core/domain"
)

// DefaultTopK is the number of top picks returned when K is unset.
const DefaultTopK = 3

// Ranker orders recommendations for display.
type Ranker interface {
	Rank(recs []domain.Recommendation, day time.Time) []domain.Recommendation
}

// DailySeed returns year*10000 + month*100 + day for the calendar day of t.
func DailySeed(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// DailyRanker produces the "top picks": base match score plus a small
// perturbation seeded by the calendar day. The same input on the same day
// always ranks identically.
type DailyRanker struct {
	K int
}

// Rank dedupes by restaurant id (first wins), drops unnamed entries, scores
// and returns the top K in descending adjusted score.
func (r DailyRanker) Rank(recs []domain.Recommendation, day time.Time) []domain.Recommendation {
	k := r.K
	if k <= 0 {
		k = DefaultTopK
	}

	seed := DailySeed(day)
	ranked := dedupeRecommendations(recs)
	for i := range ranked {
		n := utf8.RuneCountInString(ranked[i].Restaurant.Name)
		adj := ranked[i].MatchScore + float64(seed%n) - 2.5
		ranked[i].AdjustedScore = &adj
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return *ranked[i].AdjustedScore > *ranked[j].AdjustedScore
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// ShuffleRanker blends ambient recommendations in a random order. Unlike
// DailyRanker it is not reproducible across calls.
type ShuffleRanker struct {
	Cap  int
	Rand *rand.Rand
}

// Rank dedupes, caps and shuffles. The day is ignored.
func (r ShuffleRanker) Rank(recs []domain.Recommendation, _ time.Time) []domain.Recommendation {
	out := dedupeRecommendations(recs)
	if r.Cap > 0 && len(out) > r.Cap {
		out = out[:r.Cap]
	}

	shuffle := rand.Shuffle
	if r.Rand != nil {
		shuffle = r.Rand.Shuffle
	}
	shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// dedupeRecommendations keeps the first entry per restaurant id and drops
// entries without a usable name. The result is a fresh slice.
func dedupeRecommendations(recs []domain.Recommendation) []domain.Recommendation {
	seen := make(map[string]bool, len(recs))
	out := make([]domain.Recommendation, 0, len(recs))
	for _, rec := range recs {
		if seen[rec.Restaurant.ID] {
			continue
		}
		seen[rec.Restaurant.ID] = true
		if strings.TrimSpace(rec.Restaurant.Name) == "" {
			continue
		}
		c := rec
		c.Reasons = append([]string(nil), rec.Reasons...)
		c.AdjustedScore = nil
		out = append(out, c)
	}
	return out
}
