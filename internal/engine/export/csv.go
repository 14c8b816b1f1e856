// Package export writes a ranked catalog page to CSV or GeoJSON.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/rendis/catalogtap/internal/engine/contact"
	"github.com/rendis/catalogtap/internal/model"
)

var csvHeader = []string{
	"position", "id", "name", "price", "stock", "category",
	"producer_id", "region", "commune", "lat", "lng",
	"tier", "distance_km", "avg_score", "rating_count", "whatsapp",
}

// WriteCSV writes one row per listing in display order. Missing optional
// values are written as empty cells.
func WriteCSV(w io.Writer, listings []model.Listing) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, l := range listings {
		loc := l.ProducerLocation
		var avg, count string
		if l.Rating != nil {
			avg = optFloat(l.Rating.AverageScore, 2)
			count = strconv.Itoa(l.Rating.Count)
		}
		link, _ := contact.WhatsAppLink(l.ProducerPublic.Phone, contact.DefaultCountryCode)

		row := []string{
			strconv.Itoa(i + 1),
			l.ID,
			l.Name,
			l.Price.String(),
			optInt(l.Stock),
			l.Category,
			l.ProducerID,
			loc.Region,
			loc.Commune,
			optFloat(loc.Latitude, 6),
			optFloat(loc.Longitude, 6),
			strconv.Itoa(l.PriorityTier),
			optFloat(l.DistanceKm, 1),
			avg,
			count,
			link,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func optFloat(v *float64, prec int) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
