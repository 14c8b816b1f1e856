package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ProducerLocation is the location a producer published for its products.
// Every field is optional; coordinates are pointers so that 0,0 is not
// mistaken for "unknown".
type ProducerLocation struct {
	Region    string   `json:"region,omitempty"`
	Commune   string   `json:"comuna,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// HasCoords reports whether both latitude and longitude are present.
func (l ProducerLocation) HasCoords() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// ProducerPublic holds the public contact data of a producer.
type ProducerPublic struct {
	Phone string `json:"phone,omitempty"`
}

// Product is a catalog entry owned by a producer. Read-only to the catalog.
type Product struct {
	ID               string           `json:"_id"`
	Name             string           `json:"name"`
	Price            decimal.Decimal  `json:"price"`
	Stock            *int             `json:"stock,omitempty"`
	Category         string           `json:"category"`
	ImageURL         string           `json:"imageUrl,omitempty"`
	ProducerID       string           `json:"producerId"`
	ProducerLocation ProducerLocation `json:"producerLocation"`
	ProducerPublic   ProducerPublic   `json:"producerPublic"`
}

// ConsumerLocation is the saved location of the signed-in consumer.
// A nil *ConsumerLocation means "no location preference".
type ConsumerLocation struct {
	Address   string   `json:"address,omitempty"`
	Region    string   `json:"region,omitempty"`
	Commune   string   `json:"comuna,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// UnmarshalJSON accepts both "comuna" and "commune" for the commune field;
// the location endpoint has shipped both spellings.
func (l *ConsumerLocation) UnmarshalJSON(data []byte) error {
	type plain ConsumerLocation
	var raw struct {
		plain
		AltCommune string `json:"commune"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*l = ConsumerLocation(raw.plain)
	if l.Commune == "" {
		l.Commune = raw.AltCommune
	}
	return nil
}

// HasCoords reports whether both latitude and longitude are present.
func (l *ConsumerLocation) HasCoords() bool {
	return l != nil && l.Latitude != nil && l.Longitude != nil
}

// RatingSummary is the aggregated rating of a producer.
// AverageScore is nil when the producer has no ratings yet.
type RatingSummary struct {
	AverageScore *float64 `json:"avgScore"`
	Count        int      `json:"count"`
}

// PageResult is one page of the unranked product query.
// Total and TotalPages count the whole query, not the page.
type PageResult struct {
	Items      []Product `json:"items"`
	Total      int       `json:"total"`
	TotalPages int       `json:"totalPages"`
}

// Normalize applies the collaborator defaults: missing items is an empty
// page and a missing or zero page count means a single page.
func (p PageResult) Normalize() PageResult {
	if p.Items == nil {
		p.Items = []Product{}
	}
	if p.Total < 0 {
		p.Total = 0
	}
	if p.TotalPages < 1 {
		p.TotalPages = 1
	}
	return p
}

// RankedProduct is a Product annotated by the proximity ranker.
// It is never persisted; it is recomputed on every ranking pass.
type RankedProduct struct {
	Product
	PriorityTier int      `json:"priorityTier"`
	DistanceKm   *float64 `json:"distanceKm"`
}

// Float returns a pointer to v. Handy for optional coordinates and scores.
func Float(v float64) *float64 {
	return &v
}
