package storage

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/catalogtap/internal/engine/filter"
	"github.com/rendis/catalogtap/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func fixtureProducts(n int, region, commune, category string) []model.Product {
	out := make([]model.Product, n)
	for i := range out {
		stock := i
		out[i] = model.Product{
			ID:         fmt.Sprintf("%s-%s-%02d", commune, category, i),
			Name:       fmt.Sprintf("%s %d", category, i),
			Price:      decimal.NewFromInt(int64(1000 + i*10)),
			Stock:      &stock,
			Category:   category,
			ProducerID: fmt.Sprintf("u%d", i%3),
			ProducerLocation: model.ProducerLocation{
				Region:    region,
				Commune:   commune,
				Latitude:  model.Float(-33.04),
				Longitude: model.Float(-71.37),
			},
			ProducerPublic: model.ProducerPublic{Phone: "+56 9 1111 2222"},
		}
	}
	return out
}

func TestInsertProducts_SkipsDuplicates(t *testing.T) {
	s := newTestStore(t)
	products := fixtureProducts(5, "Valparaíso", "Quilpué", "Frutas")

	n, err := s.InsertProducts(products)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = s.InsertProducts(products[:2])
	require.NoError(t, err)
	assert.Zero(t, n)

	count, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestQueryProducts_FilterAndPaginate(t *testing.T) {
	s := newTestStore(t)
	_, err := s.InsertProducts(fixtureProducts(12, "Valparaíso", "Quilpué", "Frutas"))
	require.NoError(t, err)
	_, err = s.InsertProducts(fixtureProducts(8, "Valparaíso", "Viña del Mar", "Frutas"))
	require.NoError(t, err)
	_, err = s.InsertProducts(fixtureProducts(4, "Maule", "Talca", "Verduras"))
	require.NoError(t, err)

	page, err := s.QueryProducts(ProductQuery{Region: "Valparaíso", Category: "Frutas", Page: 1, Limit: 9})
	require.NoError(t, err)
	assert.Equal(t, 20, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Len(t, page.Items, 9)
	assert.Equal(t, "Quilpué-Frutas-00", page.Items[0].ID)

	page, err = s.QueryProducts(ProductQuery{Region: "Valparaíso", Category: "Frutas", Page: 3, Limit: 9})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)

	page, err = s.QueryProducts(ProductQuery{Commune: "Talca"})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, 1, page.TotalPages)

	page, err = s.QueryProducts(ProductQuery{Region: "Aysén", Page: 1, Limit: 9})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Equal(t, 1, page.TotalPages)
	assert.NotNil(t, page.Items)
}

func TestQueryProducts_RoundTripsFields(t *testing.T) {
	s := newTestStore(t)
	in := fixtureProducts(1, "Valparaíso", "Quilpué", "Frutas")
	in = append(in, model.Product{ID: "bare", Name: "Sin datos"})
	_, err := s.InsertProducts(in)
	require.NoError(t, err)

	page, err := s.QueryProducts(ProductQuery{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	got := page.Items[0]
	assert.True(t, in[0].Price.Equal(got.Price))
	require.NotNil(t, got.Stock)
	assert.Equal(t, 0, *got.Stock)
	assert.True(t, got.ProducerLocation.HasCoords())
	assert.Equal(t, "+56 9 1111 2222", got.ProducerPublic.Phone)

	bare := page.Items[1]
	assert.Nil(t, bare.Stock)
	assert.False(t, bare.ProducerLocation.HasCoords())
}

func TestCategories(t *testing.T) {
	s := newTestStore(t)
	cats, err := s.Categories()
	require.NoError(t, err)
	assert.Empty(t, cats)

	_, err = s.InsertProducts(fixtureProducts(2, "Maule", "Talca", "Verduras"))
	require.NoError(t, err)
	_, err = s.InsertProducts(fixtureProducts(2, "Maule", "Talca", "Frutas"))
	require.NoError(t, err)

	cats, err = s.Categories()
	require.NoError(t, err)
	assert.Equal(t, []string{"Frutas", "Verduras"}, cats)
}

func TestLocation(t *testing.T) {
	s := newTestStore(t)
	loc, err := s.Location()
	require.NoError(t, err)
	assert.Nil(t, loc)

	want := &model.ConsumerLocation{Region: "Valparaíso", Commune: "Quilpué", Latitude: model.Float(-33.05), Longitude: model.Float(-71.44)}
	require.NoError(t, s.SetLocation(want))
	require.NoError(t, s.SetLocation(want))
	loc, err = s.Location()
	require.NoError(t, err)
	assert.Equal(t, want, loc)

	require.NoError(t, s.SetLocation(nil))
	loc, err = s.Location()
	require.NoError(t, err)
	assert.Nil(t, loc)
}

func TestRating(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.Rating("u1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetRating("u1", model.RatingSummary{AverageScore: model.Float(4.5), Count: 2}))
	require.NoError(t, s.SetRating("u2", model.RatingSummary{}))

	got, ok, err := s.Rating("u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4.5, *got.AverageScore)

	got, ok, err = s.Rating("u2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, got.AverageScore)
	assert.Zero(t, got.Count)
}

func TestSaveSnapshot(t *testing.T) {
	s := newTestStore(t)
	products := fixtureProducts(3, "Valparaíso", "Quilpué", "Frutas")
	listings := []model.Listing{
		{RankedProduct: model.RankedProduct{Product: products[0], PriorityTier: 1, DistanceKm: model.Float(2.5)},
			Rating: &model.RatingSummary{AverageScore: model.Float(5), Count: 1}},
		{RankedProduct: model.RankedProduct{Product: products[1], PriorityTier: 2}},
	}
	state := filter.State{Region: "Valparaíso", Category: "Frutas", Page: 1, PageSize: 9}

	id, err := s.SaveSnapshot(state, model.Pagination{Page: 1, TotalPages: 1, Total: 2}, listings)
	require.NoError(t, err)
	assert.Positive(t, id)

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM snapshot_listings WHERE snapshot_id = ?`, id).Scan(&n))
	assert.Equal(t, 2, n)

	var rated, unrated int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM snapshot_listings WHERE avg_score IS NOT NULL`).Scan(&rated))
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM snapshot_listings WHERE rating_count IS NULL AND distance_km IS NULL`).Scan(&unrated))
	assert.Equal(t, 1, rated)
	assert.Equal(t, 1, unrated)
}
