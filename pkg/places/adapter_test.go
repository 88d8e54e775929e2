package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noshhq/nosh/pkg/config"
	"github.com/noshhq/nosh/pkg/models"
)

const samplePlace = `{
	"id": "place-1",
	"displayName": {"text": "Pizza Roma"},
	"location": {"latitude": 32.07, "longitude": 34.78},
	"rating": 4.4,
	"userRatingCount": 312,
	"priceLevel": "PRICE_LEVEL_MODERATE",
	"currentOpeningHours": {"openNow": true},
	"photos": [{"name": "places/place-1/photos/abc?key=SECRET"}],
	"types": ["restaurant", "italian_restaurant"]
}`

func newTestAdapter(t *testing.T, handler http.HandlerFunc, cache Cache) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAdapter(config.PlacesConfig{
		APIKey:   "test-key",
		BaseURL:  srv.URL,
		Timeout:  2 * time.Second,
		CacheTTL: time.Minute,
	}, cache)
}

func TestSearchText_WireContract(t *testing.T) {
	var captured map[string]any
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/places:searchText", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.NotEmpty(t, r.Header.Get("X-Goog-FieldMask"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		w.Write([]byte(`{"places":[` + samplePlace + `]}`))
	}, nil)

	got, err := adapter.SearchText(context.Background(), models.TextSearchMapping{
		TextQuery: "pizza restaurant tel aviv",
		Region:    "IL",
		Language:  "en",
	})

	require.NoError(t, err)
	assert.Equal(t, []any{"restaurant"}, captured["includedTypes"], "includedTypes must be the plural array")
	_, hasScalar := captured["includedType"]
	assert.False(t, hasScalar)

	require.Len(t, got.Places, 1)
	assert.False(t, got.FromCache)
	p := got.Places[0]
	assert.Equal(t, "Pizza Roma", p.Name)
	require.NotNil(t, p.PriceLevel)
	assert.Equal(t, 2, *p.PriceLevel)
	require.NotNil(t, p.OpenNow)
	assert.True(t, *p.OpenNow)
}

func TestSearchText_PhotoRefsHaveNoKey(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"places":[` + samplePlace + `]}`))
	}, nil)

	got, err := adapter.SearchText(context.Background(), models.TextSearchMapping{TextQuery: "x"})
	require.NoError(t, err)
	require.Len(t, got.Places[0].PhotoRefs, 1)
	assert.Equal(t, "places/place-1/photos/abc", got.Places[0].PhotoRefs[0])
	assert.NotContains(t, got.Places[0].PhotoRefs[0], "key=")
}

func TestSearchNearby_RankedByDistance(t *testing.T) {
	var captured map[string]any
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/places:searchNearby", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		w.Write([]byte(`{"places":[]}`))
	}, nil)

	_, err := adapter.SearchNearby(context.Background(), models.NearbyMapping{
		Location:     models.LatLng{Lat: 32.07, Lng: 34.78},
		RadiusMeters: 2000,
		Region:       "IL",
		Language:     "he",
	})

	require.NoError(t, err)
	assert.Equal(t, "DISTANCE", captured["rankPreference"])
	assert.Equal(t, []any{"restaurant"}, captured["includedTypes"])
}

func TestSearch_Non2xxIsFailureNotEmptySuccess(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}, nil)

	got, err := adapter.SearchText(context.Background(), models.TextSearchMapping{TextQuery: "x"})
	require.Error(t, err)
	assert.Empty(t, got.Places)
	assert.Equal(t, KindAPIError, KindOf(err))
}

func TestSearch_QuotaExceeded(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}, nil)

	_, err := adapter.SearchText(context.Background(), models.TextSearchMapping{TextQuery: "x"})
	require.Error(t, err)
	assert.Equal(t, KindQuota, KindOf(err))
}

func TestKindOf_SeesThroughWrapping(t *testing.T) {
	base := &Error{Kind: KindTimeout, Err: errors.New("deadline")}

	assert.Equal(t, KindTimeout, KindOf(base))
	assert.Equal(t, KindTimeout, KindOf(fmt.Errorf("searching: %w", base)))
	assert.Equal(t, KindAPIError, KindOf(errors.New("plain")))
}

func TestSearch_CacheHitSkipsProvider(t *testing.T) {
	calls := 0
	adapter := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Write([]byte(`{"places":[` + samplePlace + `]}`))
	}, NewMemoryCache())

	mapping := models.TextSearchMapping{TextQuery: "pizza", Region: "IL", Language: "en"}
	first, err := adapter.SearchText(context.Background(), mapping)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	second, err := adapter.SearchText(context.Background(), mapping)
	require.NoError(t, err)
	assert.True(t, second.FromCache)

	assert.Equal(t, 1, calls, "second identical read is served from cache")
}

func TestGeocodeThenSearch_NearbyFlow(t *testing.T) {
	var paths []string
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if len(paths) == 1 {
			// Geocode resolves the anchor.
			w.Write([]byte(`{"places":[{"id":"arc","displayName":{"text":"Arc de Triomphe"},"location":{"latitude":48.8738,"longitude":2.295}}]}`))
			return
		}
		w.Write([]byte(`{"places":[` + samplePlace + `]}`))
	}, nil)

	got, err := adapter.GeocodeThenSearch(context.Background(), models.LandmarkMapping{
		GeocodeQuery: "Arc de Triomphe Paris",
		AfterGeocode: models.AfterGeocodeNearby,
		RadiusMeters: 800,
		Keyword:      "מסעדות איטלקיות",
		Region:       "FR",
		Language:     "he",
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"/v1/places:searchText", "/v1/places:searchNearby"}, paths)
	assert.Len(t, got.Places, 1)
}

func TestGeocode_NoMatchIsGeocodeFailure(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"places":[]}`))
	}, nil)

	_, err := adapter.Geocode(context.Background(), "nowhere at all", "IL", "en")
	require.Error(t, err)
	assert.Equal(t, KindGeocode, KindOf(err))
}

func TestSearch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	adapter := NewAdapter(config.PlacesConfig{
		BaseURL: srv.URL,
		Timeout: 30 * time.Millisecond,
	}, nil)

	_, err := adapter.SearchText(context.Background(), models.TextSearchMapping{TextQuery: "x"})
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestMemoryCache_Expiry(t *testing.T) {
	cache := NewMemoryCache()
	cache.Set(context.Background(), "k", []models.Place{{ID: "a"}}, 10*time.Millisecond)

	_, ok := cache.Get(context.Background(), "k")
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = cache.Get(context.Background(), "k")
	assert.False(t, ok)
}
