package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/rendis/catalogtap/internal/model"
)

// WriteGeoJSON writes a FeatureCollection with one Point per listing that
// has producer coordinates, plus a "consumer" Point when the consumer
// location has coordinates. Listings without coordinates are skipped.
func WriteGeoJSON(w io.Writer, listings []model.Listing, consumer *model.ConsumerLocation) error {
	fc := geojson.NewFeatureCollection()

	if consumer.HasCoords() {
		f := geojson.NewFeature(orb.Point{*consumer.Longitude, *consumer.Latitude})
		f.Properties["kind"] = "consumer"
		f.Properties["region"] = consumer.Region
		f.Properties["commune"] = consumer.Commune
		fc.Append(f)
	}

	for i, l := range listings {
		loc := l.ProducerLocation
		if !loc.HasCoords() {
			continue
		}
		f := geojson.NewFeature(orb.Point{*loc.Longitude, *loc.Latitude})
		f.ID = l.ID
		f.Properties["kind"] = "product"
		f.Properties["position"] = i + 1
		f.Properties["name"] = l.Name
		f.Properties["price"] = l.Price.String()
		f.Properties["category"] = l.Category
		f.Properties["producerId"] = l.ProducerID
		f.Properties["region"] = loc.Region
		f.Properties["commune"] = loc.Commune
		f.Properties["tier"] = l.PriorityTier
		if l.DistanceKm != nil {
			f.Properties["distanceKm"] = *l.DistanceKm
		}
		if label, ok := l.RatingLabel(); ok {
			f.Properties["rating"] = label
		}
		fc.Append(f)
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding geojson: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing geojson: %w", err)
	}
	return nil
}
