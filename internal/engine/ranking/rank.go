// Package ranking orders a catalog page by proximity to the consumer.
package ranking

import (
	"cmp"
	"slices"

	"github.com/rendis/catalogtap/internal/engine/geo"
	"github.com/rendis/catalogtap/internal/model"
)

const (
	TierCommune = 1
	TierRegion  = 2
	TierOther   = 3
)

// Tier returns the proximity bucket of a producer location relative to the
// consumer. Matching is exact; both sides come from the same admin table.
func Tier(pl model.ProducerLocation, loc *model.ConsumerLocation) int {
	if loc == nil {
		return TierOther
	}
	if loc.Commune != "" && loc.Commune == pl.Commune {
		return TierCommune
	}
	if loc.Region != "" && loc.Region == pl.Region {
		return TierRegion
	}
	return TierOther
}

// Distance returns the great-circle distance between the consumer and the
// producer, or nil when either side has no coordinates.
func Distance(pl model.ProducerLocation, loc *model.ConsumerLocation) *float64 {
	if !loc.HasCoords() || !pl.HasCoords() {
		return nil
	}
	d := geo.DistanceKm(*loc.Latitude, *loc.Longitude, *pl.Latitude, *pl.Longitude)
	return &d
}

// Rank annotates products with tier and distance and returns them sorted.
// The input slice is not modified.
//
// Ordering is ascending tier, then ascending distance, but distance only
// decides when both products have one. A pair where either distance is
// nil compares equal and keeps its input order. This makes distance a
// best-effort order: with a nil between two known distances the result
// need not be sorted by distance across the nil.
func Rank(products []model.Product, loc *model.ConsumerLocation) []model.RankedProduct {
	ranked := make([]model.RankedProduct, len(products))
	for i, p := range products {
		ranked[i] = model.RankedProduct{
			Product:      p,
			PriorityTier: Tier(p.ProducerLocation, loc),
			DistanceKm:   Distance(p.ProducerLocation, loc),
		}
	}
	slices.SortStableFunc(ranked, compare)
	return ranked
}

func compare(a, b model.RankedProduct) int {
	if c := cmp.Compare(a.PriorityTier, b.PriorityTier); c != 0 {
		return c
	}
	if a.DistanceKm == nil || b.DistanceKm == nil {
		return 0
	}
	return cmp.Compare(*a.DistanceKm, *b.DistanceKm)
}
