package devserver

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rendis/catalogtap/internal/engine/geo"
	"github.com/rendis/catalogtap/internal/engine/storage"
	"github.com/rendis/catalogtap/internal/model"
)

// Categories offered by producers.
var Categories = []string{"Verduras", "Frutas", "Lácteos", "Huevos", "Cereales", "Miel", "Otros"}

var productNames = map[string][]string{
	"Verduras": {"Lechuga", "Tomate", "Zapallo", "Acelga", "Cebolla"},
	"Frutas":   {"Paltas", "Frutillas", "Manzanas", "Duraznos", "Uvas"},
	"Lácteos":  {"Queso de cabra", "Leche fresca", "Yogur natural"},
	"Huevos":   {"Huevos de campo", "Huevos de codorniz"},
	"Cereales": {"Quinoa", "Avena", "Trigo mote"},
	"Miel":     {"Miel de ulmo", "Miel de quillay"},
	"Otros":    {"Mermelada casera", "Merkén", "Pan amasado"},
}

// SeedProducts generates n products spread over every region, placed near
// the regional capital. Producers own several products each. The same
// seed yields the same catalog except for the generated IDs.
func SeedProducts(n int, seed uint64) []model.Product {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	regions := geo.Regions()
	producers := max(1, n/4)

	out := make([]model.Product, 0, n)
	for i := range n {
		region := regions[rng.IntN(len(regions))]
		communes := geo.CommunesOf(region)
		commune := communes[rng.IntN(len(communes))]
		capital, _ := geo.Capital(region)

		category := Categories[rng.IntN(len(Categories))]
		names := productNames[category]
		stock := rng.IntN(50)

		p := model.Product{
			ID:         uuid.NewString(),
			Name:       names[rng.IntN(len(names))],
			Price:      decimal.NewFromInt(int64(500 + rng.IntN(200)*50)),
			Stock:      &stock,
			Category:   category,
			ProducerID: fmt.Sprintf("producer-%03d", rng.IntN(producers)),
			ProducerLocation: model.ProducerLocation{
				Region:  region,
				Commune: commune,
			},
			ProducerPublic: model.ProducerPublic{
				Phone: fmt.Sprintf("+56 9 %04d %04d", rng.IntN(10000), rng.IntN(10000)),
			},
		}
		// Every fifth product has no published coordinates.
		if i%5 != 0 {
			p.ProducerLocation.Latitude = model.Float(capital.Lat() + (rng.Float64()-0.5)*0.4)
			p.ProducerLocation.Longitude = model.Float(capital.Lon() + (rng.Float64()-0.5)*0.4)
		}
		out = append(out, p)
	}
	return out
}

// SeedRatings returns a rating summary for every distinct producer in
// products. Roughly one producer in six has no ratings yet.
func SeedRatings(products []model.Product, seed uint64) map[string]model.RatingSummary {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	out := make(map[string]model.RatingSummary)
	for _, p := range products {
		if _, ok := out[p.ProducerID]; ok {
			continue
		}
		if rng.IntN(6) == 0 {
			out[p.ProducerID] = model.RatingSummary{}
			continue
		}
		avg := float64(30+rng.IntN(21)) / 10
		out[p.ProducerID] = model.RatingSummary{AverageScore: &avg, Count: 1 + rng.IntN(40)}
	}
	return out
}

// DefaultLocation is the consumer location a seeded store starts with: the
// capital of Valparaíso.
func DefaultLocation() *model.ConsumerLocation {
	const region = "Valparaíso"
	p, _ := geo.Capital(region)
	return &model.ConsumerLocation{
		Address:   "Plaza Sotomayor",
		Region:    region,
		Commune:   region,
		Latitude:  model.Float(p.Lat()),
		Longitude: model.Float(p.Lon()),
	}
}

// Seed fills store with n generated products, their producer ratings and
// the consumer location loc (nil leaves it unset). It returns the number
// of products inserted.
func Seed(store *storage.Store, n int, seed uint64, loc *model.ConsumerLocation) (int, error) {
	products := SeedProducts(n, seed)
	inserted, err := store.InsertProducts(products)
	if err != nil {
		return 0, fmt.Errorf("inserting products: %w", err)
	}
	for id, summary := range SeedRatings(products, seed) {
		if err := store.SetRating(id, summary); err != nil {
			return inserted, fmt.Errorf("saving rating of %s: %w", id, err)
		}
	}
	if loc != nil {
		if err := store.SetLocation(loc); err != nil {
			return inserted, fmt.Errorf("saving location: %w", err)
		}
	}
	return inserted, nil
}
