package api

import "github.com/noshhq/nosh/pkg/models"

// SearchRequest is the body of POST /api/v1/search.
type SearchRequest struct {
	Query        string         `json:"query"`
	UserLocation *models.LatLng `json:"userLocation,omitempty"`
	CityText     string         `json:"cityText,omitempty"`
	Locale       string         `json:"locale,omitempty"`
}
