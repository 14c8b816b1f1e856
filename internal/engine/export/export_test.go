package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/catalogtap/internal/model"
)

func sampleListings() []model.Listing {
	stock := 4
	return []model.Listing{
		{
			RankedProduct: model.RankedProduct{
				Product: model.Product{
					ID: "p1", Name: "Paltas, Hass", Price: decimal.RequireFromString("2490"), Stock: &stock,
					Category: "Frutas", ProducerID: "u1",
					ProducerLocation: model.ProducerLocation{
						Region: "Valparaíso", Commune: "Quilpué",
						Latitude: model.Float(-33.05), Longitude: model.Float(-71.44),
					},
					ProducerPublic: model.ProducerPublic{Phone: "9 1234 5678"},
				},
				PriorityTier: 1,
				DistanceKm:   model.Float(0.42),
			},
			Rating: &model.RatingSummary{AverageScore: model.Float(4.5), Count: 2},
		},
		{
			RankedProduct: model.RankedProduct{
				Product: model.Product{
					ID: "p2", Name: "Miel", Price: decimal.RequireFromString("5000"),
					Category: "Otros", ProducerID: "u2",
					ProducerLocation: model.ProducerLocation{Region: "Maule", Commune: "Talca"},
				},
				PriorityTier: 3,
			},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleListings()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, csvHeader, records[0])

	first := records[1]
	assert.Equal(t, "1", first[0])
	assert.Equal(t, "Paltas, Hass", first[2])
	assert.Equal(t, "2490", first[3])
	assert.Equal(t, "4", first[4])
	assert.Equal(t, "-33.050000", first[9])
	assert.Equal(t, "0.4", first[12])
	assert.Equal(t, "4.50", first[13])
	assert.Equal(t, "2", first[14])
	assert.Equal(t, "https://wa.me/56912345678", first[15])

	second := records[2]
	assert.Equal(t, "", second[4])
	assert.Equal(t, "", second[9])
	assert.Equal(t, "", second[12])
	assert.Equal(t, "", second[13])
	assert.Equal(t, "", second[15])
}

func TestWriteGeoJSON(t *testing.T) {
	consumer := &model.ConsumerLocation{
		Region: "Valparaíso", Commune: "Quilpué",
		Latitude: model.Float(-33.047), Longitude: model.Float(-71.442),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteGeoJSON(&buf, sampleListings(), consumer))

	fc, err := geojson.UnmarshalFeatureCollection(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, fc.Features, 2, "listing without coordinates is skipped")

	assert.Equal(t, "consumer", fc.Features[0].Properties.MustString("kind"))
	p := fc.Features[1]
	assert.Equal(t, orb.Point{-71.44, -33.05}, p.Geometry)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "4.5 (2 opiniones)", p.Properties.MustString("rating"))
	assert.InDelta(t, 0.42, p.Properties.MustFloat64("distanceKm"), 1e-9)
	assert.Equal(t, 1, p.Properties.MustInt("tier"))
}

func TestWriteGeoJSON_NoConsumer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteGeoJSON(&buf, nil, nil))

	fc, err := geojson.UnmarshalFeatureCollection(buf.Bytes())
	require.NoError(t, err)
	assert.Empty(t, fc.Features)
}
