package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/catalogtap/internal/model"
)

func product(id, region, commune string, coords ...float64) model.Product {
	p := model.Product{
		ID:               id,
		ProducerID:       "prod-" + id,
		ProducerLocation: model.ProducerLocation{Region: region, Commune: commune},
	}
	if len(coords) == 2 {
		p.ProducerLocation.Latitude = model.Float(coords[0])
		p.ProducerLocation.Longitude = model.Float(coords[1])
	}
	return p
}

func ids(ranked []model.RankedProduct) []string {
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.ID
	}
	return out
}

var quilpue = &model.ConsumerLocation{
	Region:    "Valparaíso",
	Commune:   "Quilpué",
	Latitude:  model.Float(-33.0472),
	Longitude: model.Float(-71.4419),
}

func TestRank_TiersRegardlessOfInputOrder(t *testing.T) {
	p1 := product("p1", "Valparaíso", "Quilpué")
	p2 := product("p2", "Valparaíso", "Viña del Mar")
	p3 := product("p3", "Maule", "Talca")

	perms := [][]model.Product{
		{p1, p2, p3}, {p1, p3, p2}, {p2, p1, p3},
		{p2, p3, p1}, {p3, p1, p2}, {p3, p2, p1},
	}
	for _, in := range perms {
		ranked := Rank(in, quilpue)
		assert.Equal(t, []string{"p1", "p2", "p3"}, ids(ranked))
		assert.Equal(t, TierCommune, ranked[0].PriorityTier)
		assert.Equal(t, TierRegion, ranked[1].PriorityTier)
		assert.Equal(t, TierOther, ranked[2].PriorityTier)
	}
}

func TestRank_DistanceBreaksTies(t *testing.T) {
	// Roughly 12 km and 5 km from the consumer, both in the same region.
	far := product("far", "Valparaíso", "Viña del Mar", -33.0472, -71.3131)
	near := product("near", "Valparaíso", "Villa Alemana", -33.0472, -71.3882)
	loc := &model.ConsumerLocation{Region: "Valparaíso", Latitude: model.Float(-33.0472), Longitude: model.Float(-71.4419)}

	ranked := Rank([]model.Product{far, near}, loc)
	require.Len(t, ranked, 2)
	assert.Equal(t, []string{"near", "far"}, ids(ranked))
	require.NotNil(t, ranked[0].DistanceKm)
	require.NotNil(t, ranked[1].DistanceKm)
	assert.InDelta(t, 5.0, *ranked[0].DistanceKm, 0.5)
	assert.InDelta(t, 12.0, *ranked[1].DistanceKm, 0.5)
}

func TestRank_NilDistanceKeepsInputOrder(t *testing.T) {
	known := product("known", "Valparaíso", "Limache", -33.0, -71.26)
	unknown := product("unknown", "Valparaíso", "Olmué")

	assert.Equal(t, []string{"unknown", "known"}, ids(Rank([]model.Product{unknown, known}, quilpue)))
	assert.Equal(t, []string{"known", "unknown"}, ids(Rank([]model.Product{known, unknown}, quilpue)))
}

func TestRank_NoLocationPreservesOrder(t *testing.T) {
	in := []model.Product{
		product("a", "Maule", "Talca", -35.4, -71.6),
		product("b", "Valparaíso", "Quilpué", -33.0, -71.4),
		product("c", "", ""),
	}
	ranked := Rank(in, nil)
	assert.Equal(t, []string{"a", "b", "c"}, ids(ranked))
	for _, r := range ranked {
		assert.Equal(t, TierOther, r.PriorityTier)
		assert.Nil(t, r.DistanceKm)
	}
}

func TestRank_ConsumerWithoutCoordsHasNoDistance(t *testing.T) {
	loc := &model.ConsumerLocation{Region: "Valparaíso", Commune: "Quilpué"}
	ranked := Rank([]model.Product{product("a", "Valparaíso", "Quilpué", -33.0, -71.4)}, loc)
	assert.Nil(t, ranked[0].DistanceKm)
	assert.Equal(t, TierCommune, ranked[0].PriorityTier)
}

func TestRank_EmptyFieldsNeverMatch(t *testing.T) {
	loc := &model.ConsumerLocation{}
	ranked := Rank([]model.Product{product("a", "", "")}, loc)
	assert.Equal(t, TierOther, ranked[0].PriorityTier)
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	in := []model.Product{product("x", "Maule", "Talca"), product("y", "Valparaíso", "Quilpué")}
	_ = Rank(in, quilpue)
	assert.Equal(t, "x", in[0].ID)
}

func TestRank_ValparaisoScenario(t *testing.T) {
	var in []model.Product
	communes := []string{"Valparaíso", "Quilpué", "Viña del Mar", "Quilpué", "Limache", "Quilpué", "Los Andes", "Quillota", "Quilpué"}
	for i, c := range communes {
		in = append(in, product(string(rune('a'+i)), "Valparaíso", c))
	}
	in = append(in, product("z", "Metropolitana de Santiago", "Santiago"))

	ranked := Rank(in, quilpue)
	seenRegionOnly, seenOther := false, false
	for _, r := range ranked {
		switch r.PriorityTier {
		case TierCommune:
			assert.False(t, seenRegionOnly || seenOther, "commune match after weaker tier")
		case TierRegion:
			assert.False(t, seenOther, "region match after other")
			seenRegionOnly = true
		default:
			seenOther = true
		}
	}
	assert.Equal(t, []string{"b", "d", "f", "i"}, ids(ranked[:4]))
	assert.Equal(t, "z", ranked[len(ranked)-1].ID)
}
