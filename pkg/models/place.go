// Package models holds the core domain types shared across the pipeline:
// normalized places, filter structures, classifier results, the route
// mapping union, job records and the final search response.
package models

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Place is the normalized result shape consumed by the post-filter engine,
// the ranker and the response assembler. Fields that may be absent in the
// provider payload are pointers; nil means "unknown", which the post-filter
// engine treats conservatively (keep).
//
// PhotoRefs contains opaque photo reference identifiers only. Provider keys
// and signed URLs must never reach this struct: the places adapter strips
// them at normalization time and clients fetch bytes through the photo
// proxy endpoint.
type Place struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Location         LatLng   `json:"location"`
	Rating           *float64 `json:"rating,omitempty"`
	UserRatingsTotal *int     `json:"userRatingsTotal,omitempty"`
	PriceLevel       *int     `json:"priceLevel,omitempty"` // 0..4
	OpenNow          *bool    `json:"openNow,omitempty"`
	PhotoRefs        []string `json:"photoRefs,omitempty"`
	Tags             []string `json:"tags,omitempty"`
}
