package models

// Route is the coarse search route decided by the intent classifier.
type Route string

// Route constants.
const (
	RouteTextSearch Route = "TEXTSEARCH"
	RouteNearby     Route = "NEARBY"
	RouteLandmark   Route = "LANDMARK"
)

// GateDecision is the deterministic outcome of the gate classifier.
type GateDecision string

// Gate decision constants.
const (
	GateStop     GateDecision = "STOP"
	GateClarify  GateDecision = "CLARIFY"
	GateContinue GateDecision = "CONTINUE"
)

// GateResult is the gate classifier output after deterministic
// post-processing of the LLM response.
type GateResult struct {
	FoodSignal bool         `json:"foodSignal"`
	Language   string       `json:"language"`
	Region     string       `json:"region"`
	Confidence float64      `json:"confidence"`
	Decision   GateDecision `json:"decision"`
}

// IntentResult is the intent classifier output.
type IntentResult struct {
	Route      Route   `json:"route"`
	Region     string  `json:"region"`
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// ProviderMethod discriminates the RouteMapping union.
type ProviderMethod string

// Provider method constants.
const (
	MethodTextSearch ProviderMethod = "textSearch"
	MethodNearby     ProviderMethod = "nearbySearch"
	MethodLandmark   ProviderMethod = "geocodeThenSearch"
)

// AfterGeocode selects the follow-up call for the LANDMARK route.
type AfterGeocode string

// After-geocode constants.
const (
	AfterGeocodeNearby         AfterGeocode = "nearbySearch"
	AfterGeocodeTextSearchBias AfterGeocode = "textSearchWithBias"
)

// LocationBias is an optional circular bias for text search.
type LocationBias struct {
	Center LatLng  `json:"center"`
	Radius float64 `json:"radius"` // meters
}

// RouteMapping is a closed tagged union discriminated by ProviderMethod.
// Exactly one of TextSearch, Nearby, Landmark is non-nil, matching the tag.
// Downstream code branches exhaustively on ProviderMethod.
type RouteMapping struct {
	ProviderMethod ProviderMethod `json:"providerMethod"`

	TextSearch *TextSearchMapping `json:"textSearch,omitempty"`
	Nearby     *NearbyMapping     `json:"nearby,omitempty"`
	Landmark   *LandmarkMapping   `json:"landmark,omitempty"`
}

// TextSearchMapping holds parameters for the textSearch provider call.
type TextSearchMapping struct {
	TextQuery string        `json:"textQuery"`
	Region    string        `json:"region"`
	Language  string        `json:"language"`
	Bias      *LocationBias `json:"bias,omitempty"`
}

// NearbyMapping holds parameters for the nearbySearch provider call.
type NearbyMapping struct {
	Location     LatLng `json:"location"`
	RadiusMeters int    `json:"radiusMeters"`
	Keyword      string `json:"keyword"`
	Region       string `json:"region"`
	Language     string `json:"language"`
}

// LandmarkMapping holds parameters for the geocode-then-search flow.
type LandmarkMapping struct {
	GeocodeQuery string       `json:"geocodeQuery"`
	AfterGeocode AfterGeocode `json:"afterGeocode"`
	RadiusMeters int          `json:"radiusMeters"`
	Keyword      string       `json:"keyword"`
	Region       string       `json:"region"`
	Language     string       `json:"language"`
}
