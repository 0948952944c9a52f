package usecases

import (
	"github.com/samirrijal/dineradar/internal/core/domain"
	"github.com/samirrijal/dineradar/internal/pkg/metrics"
)

// Merge combines persisted and live restaurants into one collection keyed by
// domain.IdentityKey.
//
// When a live record shares a key with a persisted one, the live record
// supplies id, name, address and coordinates while every enrichment field is
// kept from the persisted record; enrichment the persisted record lacks is
// filled from the live one. The merged record has live provenance. Two live
// records on the same key resolve last-write-wins.
//
// The result lists keys in order of first appearance. Inputs are not modified.
func Merge(persisted, live []domain.Restaurant) []domain.Restaurant {
	index := make(map[string]int, len(persisted)+len(live))
	out := make([]domain.Restaurant, 0, len(persisted)+len(live))

	for _, p := range persisted {
		r := p.Clone()
		r.Provenance = domain.ProvenancePersisted
		key := domain.IdentityKey(r)
		if i, ok := index[key]; ok {
			out[i] = r
			continue
		}
		index[key] = len(out)
		out = append(out, r)
	}

	// enrichment source per key, captured before the first live overlay so a
	// repeated live key replaces the earlier live fields only
	base := make(map[string]domain.Restaurant, len(live))
	fromLive := make(map[string]bool, len(live))

	for _, l := range live {
		r := l.Clone()
		r.Provenance = domain.ProvenanceLive
		key := domain.IdentityKey(r)

		i, ok := index[key]
		switch {
		case !ok:
			index[key] = len(out)
			out = append(out, r)
		case fromLive[key]:
			if b, ok := base[key]; ok {
				out[i] = mergeRecord(b, r)
			} else {
				out[i] = r
			}
		default:
			metrics.MergeCollisions.Inc()
			base[key] = out[i]
			out[i] = mergeRecord(out[i], r)
		}
		fromLive[key] = true
	}

	return out
}

// mergeRecord overlays the identity fields of live onto existing.
func mergeRecord(existing, live domain.Restaurant) domain.Restaurant {
	m := existing
	m.ID = live.ID
	m.Name = live.Name
	m.Address = live.Address
	m.Coordinates = live.Coordinates
	m.Provenance = domain.ProvenanceLive

	if m.PostalCode == "" {
		m.PostalCode = live.PostalCode
	}
	if len(m.CuisineType) == 0 {
		m.CuisineType = live.CuisineType
	}
	if m.PriceRange == nil {
		m.PriceRange = live.PriceRange
	}
	if m.Rating == nil {
		m.Rating = live.Rating
	}
	if m.Attributes == nil {
		m.Attributes = live.Attributes
	}
	return m
}

// UnionByIdentity appends the items of next whose identity key is not yet in
// base. Existing entries are left untouched. It returns the new collection and
// the number of items added.
func UnionByIdentity(base, next []domain.Restaurant) ([]domain.Restaurant, int) {
	seen := make(map[string]bool, len(base)+len(next))
	out := make([]domain.Restaurant, 0, len(base)+len(next))
	for _, r := range base {
		seen[domain.IdentityKey(r)] = true
		out = append(out, r)
	}
	added := 0
	for _, r := range next {
		key := domain.IdentityKey(r)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r.Clone())
		added++
	}
	return out, added
}
