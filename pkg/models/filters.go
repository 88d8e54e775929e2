package models

// OpenState describes the requested opening-hours constraint.
type OpenState string

// Open-state constants.
const (
	OpenNow     OpenState = "OPEN_NOW"
	OpenAt      OpenState = "OPEN_AT"
	OpenBetween OpenState = "OPEN_BETWEEN"
)

// PriceIntent buckets the user's price expectation.
type PriceIntent string

// Price intent constants.
const (
	PriceCheap     PriceIntent = "CHEAP"
	PriceMid       PriceIntent = "MID"
	PriceExpensive PriceIntent = "EXPENSIVE"
)

// RatingBucket is a minimum-rating threshold bucket.
type RatingBucket string

// Rating bucket constants.
const (
	Rating35 RatingBucket = "R35"
	Rating40 RatingBucket = "R40"
	Rating45 RatingBucket = "R45"
)

// PriceMatrix maps a price intent to the set of acceptable provider price
// levels. Results with an unknown price level are always kept.
var PriceMatrix = map[PriceIntent][]int{
	PriceCheap:     {1},
	PriceMid:       {2},
	PriceExpensive: {3, 4},
}

// RatingMatrix maps a rating bucket to its numeric threshold.
var RatingMatrix = map[RatingBucket]float64{
	Rating35: 3.5,
	Rating40: 4.0,
	Rating45: 4.5,
}

// TimeRange is a local-time interval for OPEN_BETWEEN, "HH:MM" 24h format.
type TimeRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PreGoogleBaseFilters is the raw output of the shared-filters LLM call.
// Language may be "auto"; RegionHint is optional. Tighten resolves both.
type PreGoogleBaseFilters struct {
	Language        string        `json:"language"` // he|en|auto
	OpenState       *OpenState    `json:"openState"`
	OpenAt          *string       `json:"openAt,omitempty"` // "HH:MM"
	OpenBetween     *TimeRange    `json:"openBetween,omitempty"`
	RegionHint      string        `json:"regionHint,omitempty"` // ISO-2 or empty
	PriceIntent     *PriceIntent  `json:"priceIntent"`
	MinRatingBucket *RatingBucket `json:"minRatingBucket"`
}

// SafeFallbackFilters returns the filters used when the extractor fails or
// times out: language auto, everything else unset.
func SafeFallbackFilters() PreGoogleBaseFilters {
	return PreGoogleBaseFilters{Language: "auto"}
}

// Disclaimers are always-on notices attached to the final filters.
type Disclaimers struct {
	Hours   bool `json:"hours"`
	Dietary bool `json:"dietary"`
}

// FinalFilters is the deterministic tightening of PreGoogleBaseFilters:
// language resolved to he|en, region code required, disclaimers always set.
type FinalFilters struct {
	Language        string        `json:"language"` // he|en
	OpenState       *OpenState    `json:"openState"`
	OpenAt          *string       `json:"openAt,omitempty"`
	OpenBetween     *TimeRange    `json:"openBetween,omitempty"`
	RegionCode      string        `json:"regionCode"` // uppercase ISO-2
	PriceIntent     *PriceIntent  `json:"priceIntent"`
	MinRatingBucket *RatingBucket `json:"minRatingBucket"`
	Disclaimers     Disclaimers   `json:"disclaimers"`
}

// AppliedFilters reports which filters were actually enforced by the
// post-filter engine after auto-relaxation.
type AppliedFilters struct {
	OpenState       *OpenState    `json:"openState"`
	PriceIntent     *PriceIntent  `json:"priceIntent"`
	MinRatingBucket *RatingBucket `json:"minRatingBucket"`
}

// RelaxedFilters flags filters dropped by the auto-relax policy.
type RelaxedFilters struct {
	OpenState bool `json:"openState,omitempty"`
	Price     bool `json:"price,omitempty"`
	MinRating bool `json:"minRating,omitempty"`
}
