package model

import "fmt"

// Listing is a ranked product as shown to the consumer. Rating is nil
// until the producer's summary has been fetched, and stays nil when the
// lookup failed.
type Listing struct {
	RankedProduct
	Rating *RatingSummary `json:"rating,omitempty"`
}

// Pagination summarises the accepted page of the current query.
type Pagination struct {
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
	Total      int `json:"total"`
}

// RatingLabel formats the rating for display, e.g. "4.3 (12 opiniones)".
// It reports false when there is no rating or no average yet.
func (l Listing) RatingLabel() (string, bool) {
	if l.Rating == nil || l.Rating.AverageScore == nil {
		return "", false
	}
	return fmt.Sprintf("%.1f (%d opiniones)", *l.Rating.AverageScore, l.Rating.Count), true
}

// DistanceLabel formats the distance with one decimal, e.g. "12.3 km".
func (l Listing) DistanceLabel() (string, bool) {
	if l.DistanceKm == nil {
		return "", false
	}
	return fmt.Sprintf("%.1f km", *l.DistanceKm), true
}
