// Package routemap turns an intent route into concrete provider-call
// parameters via a bounded per-route LLM call.
package routemap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/noshhq/nosh/pkg/llm"
	"github.com/noshhq/nosh/pkg/models"
)

// ErrLocationRequired is returned when the NEARBY route is requested
// without a user location. The nearby mapper fails fast rather than
// spending an LLM call that cannot produce a usable mapping.
var ErrLocationRequired = errors.New("routemap: nearby route requires a user location")

const defaultNearbyRadius = 2000

// Input carries everything a per-route mapper may need.
type Input struct {
	Query        string
	Intent       models.IntentResult
	UserLocation *models.LatLng
	CityText     string
}

// CompleteJSONer is the LLM capability the mappers need.
type CompleteJSONer interface {
	CompleteJSON(ctx context.Context, req llm.Request, out any) error
}

// Timeouts holds the per-route call budgets.
type Timeouts struct {
	TextSearch time.Duration
	Nearby     time.Duration
	Landmark   time.Duration
}

// Mapper dispatches the per-route mapping calls.
type Mapper struct {
	llm      CompleteJSONer
	timeouts Timeouts
}

// NewMapper builds a route mapper with the configured per-route budgets.
func NewMapper(llmClient CompleteJSONer, timeouts Timeouts) *Mapper {
	return &Mapper{llm: llmClient, timeouts: timeouts}
}

// Map dispatches on the intent route and returns the tagged mapping.
func (m *Mapper) Map(ctx context.Context, in Input) (models.RouteMapping, error) {
	switch in.Intent.Route {
	case models.RouteTextSearch:
		return m.mapTextSearch(ctx, in)
	case models.RouteNearby:
		return m.mapNearby(ctx, in)
	case models.RouteLandmark:
		return m.mapLandmark(ctx, in)
	default:
		return models.RouteMapping{}, fmt.Errorf("routemap: unknown route %q", in.Intent.Route)
	}
}

const textSearchPrompt = `You convert a restaurant search query into
parameters for a text search against a places API. Rules:
- textQuery: the query stripped of filler words, in the SAME language as
  the input. Add a place-type word ("restaurant" / "מסעדה") only when the
  query has none.
- region: ISO-3166 alpha-2 region code for the search.
- language: "he" or "en", matching the query language.
Respond with JSON only.`

var textSearchSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"textQuery": {"type": "string"},
		"region": {"type": "string"},
		"language": {"type": "string", "enum": ["he", "en"]}
	},
	"required": ["textQuery", "region", "language"],
	"additionalProperties": false
}`)

func (m *Mapper) mapTextSearch(ctx context.Context, in Input) (models.RouteMapping, error) {
	var mapped models.TextSearchMapping
	err := m.llm.CompleteJSON(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: textSearchPrompt},
			{Role: "user", Content: payload(in)},
		},
		Timeout:      m.timeouts.TextSearch,
		SchemaName:   "textsearch_mapping",
		StaticSchema: textSearchSchema,
		Validate: func(v any) error {
			t := v.(*models.TextSearchMapping)
			if t.TextQuery == "" {
				return errors.New("empty textQuery")
			}
			return nil
		},
	}, &mapped)
	if err != nil {
		return models.RouteMapping{}, fmt.Errorf("mapping textsearch route: %w", err)
	}
	if mapped.Region == "" {
		mapped.Region = in.Intent.Region
	}
	if in.UserLocation != nil && mapped.Bias == nil {
		mapped.Bias = &models.LocationBias{Center: *in.UserLocation, Radius: 5000}
	}
	return models.RouteMapping{
		ProviderMethod: models.MethodTextSearch,
		TextSearch:     &mapped,
	}, nil
}

const nearbyPrompt = `You convert a "near me" restaurant query into
parameters for a nearby search. Rules:
- keyword: the food concept only (cuisine, dish, or "restaurant"/"מסעדה"),
  stripped of proximity words, in the SAME language as the input.
- radiusMeters: explicit in-query radius if stated, else 0.
- region: ISO-3166 alpha-2 region code.
- language: "he" or "en".
Respond with JSON only.`

var nearbySchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"keyword": {"type": "string"},
		"radiusMeters": {"type": "integer", "minimum": 0},
		"region": {"type": "string"},
		"language": {"type": "string", "enum": ["he", "en"]}
	},
	"required": ["keyword", "radiusMeters", "region", "language"],
	"additionalProperties": false
}`)

func (m *Mapper) mapNearby(ctx context.Context, in Input) (models.RouteMapping, error) {
	if in.UserLocation == nil {
		return models.RouteMapping{}, ErrLocationRequired
	}

	var mapped models.NearbyMapping
	err := m.llm.CompleteJSON(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: nearbyPrompt},
			{Role: "user", Content: payload(in)},
		},
		Timeout:      m.timeouts.Nearby,
		Retry:        true,
		SchemaName:   "nearby_mapping",
		StaticSchema: nearbySchema,
		Validate: func(v any) error {
			n := v.(*models.NearbyMapping)
			if n.Keyword == "" {
				return errors.New("empty keyword")
			}
			return nil
		},
	}, &mapped)
	if err != nil {
		return models.RouteMapping{}, fmt.Errorf("mapping nearby route: %w", err)
	}
	mapped.Location = *in.UserLocation
	if mapped.RadiusMeters <= 0 {
		mapped.RadiusMeters = defaultNearbyRadius
	}
	if mapped.Region == "" {
		mapped.Region = in.Intent.Region
	}
	return models.RouteMapping{
		ProviderMethod: models.MethodNearby,
		Nearby:         &mapped,
	}, nil
}

const landmarkPrompt = `You convert a restaurant query anchored to a named
place into geocode-then-search parameters. Rules:
- geocodeQuery: the FULL landmark phrase for geocoding, disambiguated
  (add the city or country if well known), WITHOUT the food words.
- keyword: the food concept only, in the SAME language as the input.
- radiusMeters: explicit in-query radius if stated, else 0.
- afterGeocode: "nearbySearch" when the query states a distance from the
  anchor, else "textSearchWithBias".
- region: ISO-3166 alpha-2 region of the LANDMARK.
- language: "he" or "en".
Respond with JSON only.`

var landmarkSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"geocodeQuery": {"type": "string"},
		"afterGeocode": {"type": "string", "enum": ["nearbySearch", "textSearchWithBias"]},
		"radiusMeters": {"type": "integer", "minimum": 0},
		"keyword": {"type": "string"},
		"region": {"type": "string"},
		"language": {"type": "string", "enum": ["he", "en"]}
	},
	"required": ["geocodeQuery", "afterGeocode", "radiusMeters", "keyword", "region", "language"],
	"additionalProperties": false
}`)

func (m *Mapper) mapLandmark(ctx context.Context, in Input) (models.RouteMapping, error) {
	var mapped models.LandmarkMapping
	err := m.llm.CompleteJSON(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: landmarkPrompt},
			{Role: "user", Content: payload(in)},
		},
		Timeout:      m.timeouts.Landmark,
		SchemaName:   "landmark_mapping",
		StaticSchema: landmarkSchema,
		Validate: func(v any) error {
			l := v.(*models.LandmarkMapping)
			if l.GeocodeQuery == "" {
				return errors.New("empty geocodeQuery")
			}
			if l.Keyword == "" {
				return errors.New("empty keyword")
			}
			return nil
		},
	}, &mapped)
	if err != nil {
		return models.RouteMapping{}, fmt.Errorf("mapping landmark route: %w", err)
	}
	if mapped.RadiusMeters <= 0 {
		mapped.RadiusMeters = defaultNearbyRadius
	}
	if mapped.Region == "" {
		mapped.Region = in.Intent.Region
	}
	return models.RouteMapping{
		ProviderMethod: models.MethodLandmark,
		Landmark:       &mapped,
	}, nil
}

func payload(in Input) string {
	p := map[string]any{
		"query":  in.Query,
		"region": in.Intent.Region,
		"reason": in.Intent.Reason,
	}
	if in.CityText != "" {
		p["cityText"] = in.CityText
	}
	b, _ := json.Marshal(p)
	return string(b)
}
