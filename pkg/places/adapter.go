// Package places adapts the external Places provider behind three
// operations: text search, nearby search and geocode-then-search. All
// outbound calls share one bounded round-trip helper, a response cache
// and a circuit breaker.
package places

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/noshhq/nosh/pkg/config"
	"github.com/noshhq/nosh/pkg/models"
)

const includedTypeRestaurant = "restaurant"

// Adapter calls the Places provider.
type Adapter struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	timeout    time.Duration
	cacheTTL   time.Duration
	cache      Cache
	breaker    *gobreaker.CircuitBreaker
}

// NewAdapter builds a provider adapter. cache may be nil to disable
// caching.
func NewAdapter(cfg config.PlacesConfig, cache Cache) *Adapter {
	return &Adapter{
		httpClient: &http.Client{},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		timeout:    cfg.Timeout,
		cacheTTL:   cfg.CacheTTL,
		cache:      cache,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "places",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("Places circuit breaker state change",
					"breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// SearchResult carries normalized places and whether they were served
// from the read-through cache.
type SearchResult struct {
	Places    []models.Place
	FromCache bool
}

// SearchText runs a places:searchText call.
func (a *Adapter) SearchText(ctx context.Context, m models.TextSearchMapping) (SearchResult, error) {
	body := textSearchRequest{
		TextQuery:     m.TextQuery,
		LanguageCode:  m.Language,
		RegionCode:    m.Region,
		IncludedTypes: []string{includedTypeRestaurant},
	}
	if m.Bias != nil {
		body.LocationBias = &wireBias{Circle: circle{
			Center: wireLatLng{Latitude: m.Bias.Center.Lat, Longitude: m.Bias.Center.Lng},
			Radius: m.Bias.Radius,
		}}
	}
	return a.search(ctx, "/v1/places:searchText", body)
}

// SearchNearby runs a places:searchNearby call ranked by distance.
func (a *Adapter) SearchNearby(ctx context.Context, m models.NearbyMapping) (SearchResult, error) {
	body := nearbyRequest{
		LocationRestriction: wireBias{Circle: circle{
			Center: wireLatLng{Latitude: m.Location.Lat, Longitude: m.Location.Lng},
			Radius: float64(m.RadiusMeters),
		}},
		LanguageCode:   m.Language,
		RegionCode:     m.Region,
		IncludedTypes:  []string{includedTypeRestaurant},
		RankPreference: "DISTANCE",
	}
	return a.search(ctx, "/v1/places:searchNearby", body)
}

// GeocodeThenSearch resolves the landmark anchor, then searches around
// it with the mapping's follow-up method.
func (a *Adapter) GeocodeThenSearch(ctx context.Context, m models.LandmarkMapping) (SearchResult, error) {
	anchor, err := a.Geocode(ctx, m.GeocodeQuery, m.Region, m.Language)
	if err != nil {
		return SearchResult{}, err
	}

	switch m.AfterGeocode {
	case models.AfterGeocodeNearby:
		return a.SearchNearby(ctx, models.NearbyMapping{
			Location:     anchor,
			RadiusMeters: m.RadiusMeters,
			Keyword:      m.Keyword,
			Region:       m.Region,
			Language:     m.Language,
		})
	case models.AfterGeocodeTextSearchBias:
		return a.SearchText(ctx, models.TextSearchMapping{
			TextQuery: m.Keyword,
			Region:    m.Region,
			Language:  m.Language,
			Bias:      &models.LocationBias{Center: anchor, Radius: float64(m.RadiusMeters)},
		})
	default:
		return SearchResult{}, fmt.Errorf("places: unknown afterGeocode %q", m.AfterGeocode)
	}
}

// Geocode resolves a landmark phrase to a coordinate by text-searching
// the phrase and taking the best match.
func (a *Adapter) Geocode(ctx context.Context, query, region, language string) (models.LatLng, error) {
	body := textSearchRequest{
		TextQuery:     query,
		LanguageCode:  language,
		RegionCode:    region,
		IncludedTypes: nil,
	}
	resp, err := a.call(ctx, "/v1/places:searchText", body)
	if err != nil {
		return models.LatLng{}, &Error{Kind: KindGeocode, Err: err}
	}
	if len(resp.Places) == 0 {
		return models.LatLng{}, &Error{Kind: KindGeocode, Err: fmt.Errorf("no geocode match for %q", query)}
	}
	best := resp.Places[0]
	return models.LatLng{Lat: best.Location.Latitude, Lng: best.Location.Longitude}, nil
}

// search serves a read from the cache when possible, else calls the
// provider and populates the cache.
func (a *Adapter) search(ctx context.Context, path string, body any) (SearchResult, error) {
	key := cacheKey(path, body)
	if a.cache != nil {
		if cached, ok := a.cache.Get(ctx, key); ok {
			slog.Debug("Places cache hit", "method", path)
			return SearchResult{Places: cached, FromCache: true}, nil
		}
	}

	resp, err := a.call(ctx, path, body)
	if err != nil {
		return SearchResult{}, err
	}
	results := normalize(resp)
	if a.cache != nil {
		a.cache.Set(ctx, key, results, a.cacheTTL)
	}
	return SearchResult{Places: results}, nil
}

// call performs one provider round trip through the circuit breaker
// under the hard call ceiling. context.WithTimeout owns the timer and
// cancel releases it on every exit path.
func (a *Adapter) call(parent context.Context, path string, body any) (searchResponse, error) {
	ctx, cancel := context.WithTimeout(parent, a.timeout)
	defer cancel()

	result, err := a.breaker.Execute(func() (any, error) {
		return a.doRequest(ctx, path, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return searchResponse{}, &Error{Kind: KindAPIError, Err: err}
		}
		var pe *Error
		if errors.As(err, &pe) {
			return searchResponse{}, pe
		}
		if ctx.Err() != nil {
			return searchResponse{}, &Error{Kind: KindTimeout, Err: err}
		}
		return searchResponse{}, &Error{Kind: KindAPIError, Err: err}
	}
	return result.(searchResponse), nil
}

func (a *Adapter) doRequest(ctx context.Context, path string, body any) (searchResponse, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return searchResponse{}, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return searchResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", a.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return searchResponse{}, &Error{Kind: KindTimeout, Err: err}
		}
		return searchResponse{}, &Error{Kind: KindAPIError, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return searchResponse{}, &Error{Kind: KindAPIError, Err: err}
	}

	// Non-2xx is a failure, never an empty success.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		kind := KindAPIError
		if resp.StatusCode == http.StatusTooManyRequests {
			kind = KindQuota
		}
		return searchResponse{}, &Error{
			Kind:       kind,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("provider returned %s", resp.Status),
		}
	}

	var decoded searchResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return searchResponse{}, &Error{Kind: KindAPIError, Err: fmt.Errorf("decoding response: %w", err)}
	}

	slog.Debug("Places call completed",
		"method", path, "count", len(decoded.Places),
		"duration_ms", time.Since(start).Milliseconds())
	return decoded, nil
}

// cacheKey derives a stable key from the method and the normalised
// (canonically marshalled) request body.
func cacheKey(path string, body any) string {
	raw, _ := json.Marshal(body)
	sum := sha256.Sum256(append([]byte(path+"|"), raw...))
	return hex.EncodeToString(sum[:])
}
