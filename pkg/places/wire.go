package places

import (
	"net/url"
	"strings"

	"github.com/noshhq/nosh/pkg/models"
)

// fieldMask limits the provider payload to the fields the pipeline
// consumes. Requested once per call via the X-Goog-FieldMask header.
const fieldMask = "places.id,places.displayName,places.location,places.rating," +
	"places.userRatingCount,places.priceLevel,places.currentOpeningHours.openNow," +
	"places.photos.name,places.types"

// circle is the shared circular-area wire shape.
type circle struct {
	Center wireLatLng `json:"center"`
	Radius float64    `json:"radius"`
}

type wireLatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type wireBias struct {
	Circle circle `json:"circle"`
}

// textSearchRequest is the outbound body for places:searchText.
// IncludedTypes is always the plural array form.
type textSearchRequest struct {
	TextQuery     string    `json:"textQuery"`
	LanguageCode  string    `json:"languageCode"`
	RegionCode    string    `json:"regionCode"`
	IncludedTypes []string  `json:"includedTypes"`
	LocationBias  *wireBias `json:"locationBias,omitempty"`
}

// nearbyRequest is the outbound body for places:searchNearby.
type nearbyRequest struct {
	LocationRestriction wireBias `json:"locationRestriction"`
	LanguageCode        string   `json:"languageCode"`
	RegionCode          string   `json:"regionCode"`
	IncludedTypes       []string `json:"includedTypes"`
	RankPreference      string   `json:"rankPreference"`
}

// searchResponse is the provider payload consumed by the adapter.
type searchResponse struct {
	Places []wirePlace `json:"places"`
}

type wirePlace struct {
	ID          string `json:"id"`
	DisplayName struct {
		Text string `json:"text"`
	} `json:"displayName"`
	Location struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	Rating              *float64 `json:"rating"`
	UserRatingCount     *int     `json:"userRatingCount"`
	PriceLevel          string   `json:"priceLevel"`
	CurrentOpeningHours *struct {
		OpenNow *bool `json:"openNow"`
	} `json:"currentOpeningHours"`
	Photos []struct {
		Name string `json:"name"`
	} `json:"photos"`
	Types []string `json:"types"`
}

var priceLevels = map[string]int{
	"PRICE_LEVEL_FREE":           0,
	"PRICE_LEVEL_INEXPENSIVE":    1,
	"PRICE_LEVEL_MODERATE":       2,
	"PRICE_LEVEL_EXPENSIVE":      3,
	"PRICE_LEVEL_VERY_EXPENSIVE": 4,
}

// normalize converts provider places into the pipeline shape. Photo
// references are reduced to their opaque resource name with any query
// string dropped, so no key or signed parameter survives normalization.
func normalize(resp searchResponse) []models.Place {
	out := make([]models.Place, 0, len(resp.Places))
	for _, wp := range resp.Places {
		p := models.Place{
			ID:   wp.ID,
			Name: wp.DisplayName.Text,
			Location: models.LatLng{
				Lat: wp.Location.Latitude,
				Lng: wp.Location.Longitude,
			},
			Rating:           wp.Rating,
			UserRatingsTotal: wp.UserRatingCount,
			Tags:             wp.Types,
		}
		if lvl, ok := priceLevels[wp.PriceLevel]; ok {
			p.PriceLevel = &lvl
		}
		if wp.CurrentOpeningHours != nil {
			p.OpenNow = wp.CurrentOpeningHours.OpenNow
		}
		for _, ph := range wp.Photos {
			if ref := normalizePhotoRef(ph.Name); ref != "" {
				p.PhotoRefs = append(p.PhotoRefs, ref)
			}
		}
		out = append(out, p)
	}
	return out
}

// normalizePhotoRef strips query parameters (and with them any embedded
// key) from a photo resource name.
func normalizePhotoRef(name string) string {
	if idx := strings.IndexByte(name, '?'); idx >= 0 {
		name = name[:idx]
	}
	if u, err := url.Parse(name); err == nil {
		name = u.Path
		name = strings.TrimPrefix(name, "/")
	}
	return name
}
