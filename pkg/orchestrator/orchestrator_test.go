package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noshhq/nosh/pkg/enrich"
	"github.com/noshhq/nosh/pkg/intent"
	"github.com/noshhq/nosh/pkg/jobs"
	"github.com/noshhq/nosh/pkg/lang"
	"github.com/noshhq/nosh/pkg/llm"
	"github.com/noshhq/nosh/pkg/models"
	"github.com/noshhq/nosh/pkg/places"
	"github.com/noshhq/nosh/pkg/routemap"
)

type fakeGate struct {
	result models.GateResult
	calls  int
}

func (f *fakeGate) Classify(context.Context, string, string) models.GateResult {
	f.calls++
	return f.result
}

type fakeIntent struct {
	result models.IntentResult
	err    error
	calls  int
}

func (f *fakeIntent) Classify(context.Context, string, intent.Hints) (models.IntentResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeMapper struct {
	result models.RouteMapping
	err    error
	calls  int
	lastIn routemap.Input
}

func (f *fakeMapper) Map(_ context.Context, in routemap.Input) (models.RouteMapping, error) {
	f.calls++
	f.lastIn = in
	return f.result, f.err
}

type fakeExtractor struct {
	result models.PreGoogleBaseFilters
	calls  int
}

func (f *fakeExtractor) Extract(context.Context, string, models.Route) models.PreGoogleBaseFilters {
	f.calls++
	return f.result
}

type fakeProvider struct {
	results   []models.Place
	fromCache bool
	err       error
	calls     int
}

func (f *fakeProvider) result() (places.SearchResult, error) {
	f.calls++
	return places.SearchResult{Places: f.results, FromCache: f.fromCache}, f.err
}

func (f *fakeProvider) SearchText(context.Context, models.TextSearchMapping) (places.SearchResult, error) {
	return f.result()
}

func (f *fakeProvider) SearchNearby(context.Context, models.NearbyMapping) (places.SearchResult, error) {
	return f.result()
}

func (f *fakeProvider) GeocodeThenSearch(context.Context, models.LandmarkMapping) (places.SearchResult, error) {
	return f.result()
}

type pushedEvent struct {
	kind     string
	language string
	message  string
	blocks   bool
	count    int
}

type recorderEvents struct {
	mu     sync.Mutex
	events []pushedEvent
}

func (r *recorderEvents) Assistant(reqLang *lang.RequestLanguage, _ string, msgType models.AssistType, message string, blocks bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, pushedEvent{
		kind:     "assistant:" + string(msgType),
		language: reqLang.Value(),
		message:  message,
		blocks:   blocks,
	})
}

func (r *recorderEvents) Ready(_ string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, pushedEvent{kind: "ready", count: count})
}

func (r *recorderEvents) Error(_, code, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, pushedEvent{kind: "error:" + code})
}

func (r *recorderEvents) all() []pushedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]pushedEvent(nil), r.events...)
}

type fakeEnricher struct {
	mu   sync.Mutex
	jobs []enrich.Job
}

func (f *fakeEnricher) Enqueue(job enrich.Job) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return true
}

func (f *fakeEnricher) Providers() []string { return []string{"wolt", "tenbis"} }

type deps struct {
	gate      *fakeGate
	intent    *fakeIntent
	mapper    *fakeMapper
	extractor *fakeExtractor
	provider  *fakeProvider
	store     jobs.Store
	events    *recorderEvents
	enricher  *fakeEnricher
}

func newDeps() *deps {
	return &deps{
		gate: &fakeGate{result: models.GateResult{
			FoodSignal: true, Language: "en", Region: "IL",
			Confidence: 0.9, Decision: models.GateContinue,
		}},
		intent: &fakeIntent{result: models.IntentResult{
			Route: models.RouteTextSearch, Region: "IL", Language: "en", Confidence: 0.85,
		}},
		mapper: &fakeMapper{result: models.RouteMapping{
			ProviderMethod: models.MethodTextSearch,
			TextSearch: &models.TextSearchMapping{
				TextQuery: "pizza restaurant tel aviv", Region: "IL", Language: "en",
			},
		}},
		extractor: &fakeExtractor{result: models.SafeFallbackFilters()},
		provider: &fakeProvider{results: []models.Place{
			{ID: "p1", Name: "Pizza Roma", Location: models.LatLng{Lat: 32.07, Lng: 34.78}},
		}},
		store:    jobs.NewMemoryStore(time.Hour),
		events:   &recorderEvents{},
		enricher: &fakeEnricher{},
	}
}

func (d *deps) orchestrator() *Orchestrator {
	return New(d.gate, d.intent, d.mapper, d.extractor, d.provider, d.store, d.events, d.enricher, "IL")
}

func run(t *testing.T, d *deps, req Request) *models.SearchResponse {
	t.Helper()
	require.NoError(t, d.store.Create(context.Background(), req.RequestID, req.SessionID, ""))
	return d.orchestrator().Run(context.Background(), req)
}

func TestRun_TextSearchSuccess(t *testing.T) {
	d := newDeps()
	resp := run(t, d, Request{
		RequestID: "req-1", Query: "pizza in tel aviv", Locale: "en", SessionID: "sess-a",
	})

	assert.Equal(t, "textsearch", resp.Meta.Mode)
	assert.Equal(t, models.FailureNone, resp.Meta.FailureReason)
	assert.Equal(t, "en", resp.Query.Language)
	assert.Equal(t, "pizza restaurant tel aviv", resp.Query.Parsed)
	require.Len(t, resp.Results, 1)
	require.NotNil(t, resp.Assist)
	assert.Equal(t, models.AssistSummary, resp.Assist.Type)

	// Push ordering: assistant before ready.
	events := d.events.all()
	require.Len(t, events, 2)
	assert.Equal(t, "assistant:SUMMARY", events[0].kind)
	assert.Equal(t, "en", events[0].language)
	assert.Equal(t, "ready", events[1].kind)
	assert.Equal(t, 1, events[1].count)

	// Job completed with the result.
	rec, ok := d.store.Get(context.Background(), "req-1")
	require.True(t, ok)
	assert.Equal(t, models.JobDoneSuccess, rec.Status)
	assert.Equal(t, 1, rec.ResultCount)

	// Enrichment: one job per provider per place.
	assert.Len(t, d.enricher.jobs, 2)
}

func TestRun_MetaSourceReflectsCacheHit(t *testing.T) {
	d := newDeps()
	resp := run(t, d, Request{RequestID: "req-1a", Query: "pizza in tel aviv", SessionID: "sess-a"})
	assert.Equal(t, "provider", resp.Meta.Source)

	d = newDeps()
	d.provider.fromCache = true
	resp = run(t, d, Request{RequestID: "req-1b", Query: "pizza in tel aviv", SessionID: "sess-a"})
	assert.Equal(t, "cache", resp.Meta.Source)
}

func TestRun_GateStopShortCircuits(t *testing.T) {
	d := newDeps()
	d.gate.result = models.GateResult{FoodSignal: false, Language: "he", Confidence: 0.95, Decision: models.GateStop}

	resp := run(t, d, Request{RequestID: "req-2", Query: "מה מזג האוויר?", Locale: "he", SessionID: "sess-a"})

	assert.Empty(t, resp.Results)
	require.NotNil(t, resp.Assist)
	assert.Equal(t, models.AssistGateFail, resp.Assist.Type)
	assert.Equal(t, "he", resp.Query.Language)

	// No downstream LLM call was made.
	assert.Zero(t, d.intent.calls)
	assert.Zero(t, d.mapper.calls)
	assert.Zero(t, d.extractor.calls)
	assert.Zero(t, d.provider.calls)

	events := d.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, "assistant:GATE_FAIL", events[0].kind)
	assert.Equal(t, "he", events[0].language)
	assert.True(t, events[0].blocks)
}

func TestRun_GateClarifyShortCircuits(t *testing.T) {
	d := newDeps()
	d.gate.result = models.GateResult{FoodSignal: true, Language: "en", Confidence: 0.3, Decision: models.GateClarify}

	resp := run(t, d, Request{RequestID: "req-3", Query: "something vague", SessionID: "sess-a"})

	assert.Equal(t, models.FailureLowConfidence, resp.Meta.FailureReason)
	assert.Zero(t, d.intent.calls)
	assert.Zero(t, d.extractor.calls)
}

func TestRun_NearMeWithoutLocationClarifies(t *testing.T) {
	d := newDeps()

	resp := run(t, d, Request{RequestID: "req-4", Query: "ציזבורגר לידי", SessionID: "sess-a"})

	assert.Equal(t, models.FailureLocationRequired, resp.Meta.FailureReason)
	assert.Equal(t, "he", resp.Query.Language, "Hebrew script freezes the language")
	require.NotNil(t, resp.Assist)
	assert.Equal(t, models.AssistClarify, resp.Assist.Type)
	assert.Contains(t, resp.Assist.Message, "מיקום")

	// No intent or mapper call.
	assert.Zero(t, d.intent.calls)
	assert.Zero(t, d.mapper.calls)
}

func TestRun_NearMeWithLocationForcesNearbyRoute(t *testing.T) {
	d := newDeps()
	d.mapper.result = models.RouteMapping{
		ProviderMethod: models.MethodNearby,
		Nearby: &models.NearbyMapping{
			Location: models.LatLng{Lat: 32.07, Lng: 34.78}, RadiusMeters: 2000,
			Keyword: "ציזבורגר", Region: "IL", Language: "he",
		},
	}

	resp := run(t, d, Request{
		RequestID:    "req-5",
		Query:        "ציזבורגר לידי",
		UserLocation: &models.LatLng{Lat: 32.07, Lng: 34.78},
		Locale:       "he",
		SessionID:    "sess-a",
	})

	assert.Zero(t, d.intent.calls, "near-me override skips the intent call")
	require.Equal(t, 1, d.mapper.calls)
	assert.Equal(t, models.RouteNearby, d.mapper.lastIn.Intent.Route)
	assert.Equal(t, "near_me_keyword_override", d.mapper.lastIn.Intent.Reason)
	assert.Equal(t, "nearby", resp.Meta.Mode)
	assert.Len(t, resp.Results, 1)
}

func TestRun_TextSearchMissingAnchorClarifies(t *testing.T) {
	d := newDeps()
	d.intent.result = models.IntentResult{Route: models.RouteTextSearch, Region: "", Confidence: 0.7}

	resp := run(t, d, Request{RequestID: "req-6", Query: "good sushi", SessionID: "sess-a"})

	assert.Equal(t, models.FailureLocationRequired, resp.Meta.FailureReason)
	assert.Zero(t, d.mapper.calls, "no mapper call after the anchor guard")
	assert.Zero(t, d.extractor.calls)
}

func TestRun_MapperLocationRequired(t *testing.T) {
	d := newDeps()
	d.intent.result = models.IntentResult{Route: models.RouteNearby, Region: "IL", Confidence: 0.9}
	d.mapper.err = routemap.ErrLocationRequired

	resp := run(t, d, Request{RequestID: "req-7", Query: "burgers close by please", SessionID: "sess-a"})
	assert.Equal(t, models.FailureLocationRequired, resp.Meta.FailureReason)
	assert.Zero(t, d.provider.calls)
}

func TestRun_ProviderErrorFailsJob(t *testing.T) {
	d := newDeps()
	d.provider.err = &places.Error{Kind: places.KindAPIError, StatusCode: 502, Err: errors.New("bad gateway")}

	resp := run(t, d, Request{RequestID: "req-8", Query: "pizza in tel aviv", SessionID: "sess-a"})

	assert.Equal(t, models.FailureGoogleAPIError, resp.Meta.FailureReason)
	assert.Empty(t, resp.Results)

	rec, ok := d.store.Get(context.Background(), "req-8")
	require.True(t, ok)
	assert.Equal(t, models.JobDoneFailure, rec.Status)
	require.NotNil(t, rec.Error)
	assert.Equal(t, "GOOGLE_API_ERROR", rec.Error.Code)

	var kinds []string
	for _, e := range d.events.all() {
		kinds = append(kinds, e.kind)
	}
	assert.Contains(t, kinds, "error:GOOGLE_API_ERROR")
}

func TestRun_IntentTimeoutMapsToTimeout(t *testing.T) {
	d := newDeps()
	// The classifier wraps its LLM errors; the taxonomy must see
	// through the wrapping.
	d.intent.err = fmt.Errorf("classifying intent: %w",
		&llm.Error{Kind: llm.KindTimeout, Err: errors.New("deadline")})

	resp := run(t, d, Request{RequestID: "req-9", Query: "pizza in tel aviv", SessionID: "sess-a"})
	assert.Equal(t, models.FailureTimeout, resp.Meta.FailureReason)
	assert.Zero(t, d.provider.calls)
}

func TestRun_RouteMapTimeoutMapsToTimeout(t *testing.T) {
	d := newDeps()
	d.mapper.err = fmt.Errorf("mapping textsearch route: %w",
		&llm.Error{Kind: llm.KindTimeout, Err: errors.New("deadline")})

	resp := run(t, d, Request{RequestID: "req-9b", Query: "pizza in tel aviv", SessionID: "sess-a"})
	assert.Equal(t, models.FailureTimeout, resp.Meta.FailureReason)
	assert.Zero(t, d.provider.calls)
}

func TestRun_AutoRelaxFlowsIntoMeta(t *testing.T) {
	d := newDeps()
	open := models.OpenNow
	bucket := models.Rating45
	d.extractor.result = models.PreGoogleBaseFilters{
		Language: "en", OpenState: &open, MinRatingBucket: &bucket,
	}
	rating := 4.2
	yes := true
	d.provider.results = []models.Place{
		{ID: "p1", Name: "A", Rating: &rating, OpenNow: &yes},
		{ID: "p2", Name: "B", Rating: &rating, OpenNow: &yes},
	}

	resp := run(t, d, Request{RequestID: "req-10", Query: "top rated restaurants open now", SessionID: "sess-a"})

	require.NotNil(t, resp.Meta.AppliedFilters.OpenState)
	assert.Nil(t, resp.Meta.AppliedFilters.MinRatingBucket)
	assert.True(t, resp.Meta.RelaxedFilters.MinRating)
	assert.Len(t, resp.Results, 2)
}

func TestRun_StoreFailureIsNotFatal(t *testing.T) {
	d := newDeps()
	d.store = nil

	resp := d.orchestrator().Run(context.Background(), Request{
		RequestID: "req-11", Query: "pizza in tel aviv", SessionID: "sess-a",
	})
	assert.Equal(t, models.FailureNone, resp.Meta.FailureReason)
	assert.Len(t, resp.Results, 1)
}

func TestRun_NoResultsReason(t *testing.T) {
	d := newDeps()
	d.provider.results = nil

	resp := run(t, d, Request{RequestID: "req-12", Query: "pizza in tel aviv", SessionID: "sess-a"})
	assert.Equal(t, models.FailureNoResults, resp.Meta.FailureReason)
	assert.Empty(t, d.enricher.jobs, "no enrichment without results")
}
