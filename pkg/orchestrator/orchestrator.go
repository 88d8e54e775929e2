// Package orchestrator sequences the search pipeline: gate, near-me
// pre-check, intent, route mapping, parallel filter extraction and
// provider call, post-filtering, ranking, response assembly, job writes
// and push events.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/noshhq/nosh/pkg/enrich"
	"github.com/noshhq/nosh/pkg/filters"
	"github.com/noshhq/nosh/pkg/intent"
	"github.com/noshhq/nosh/pkg/jobs"
	"github.com/noshhq/nosh/pkg/lang"
	"github.com/noshhq/nosh/pkg/models"
	"github.com/noshhq/nosh/pkg/places"
	"github.com/noshhq/nosh/pkg/rank"
	"github.com/noshhq/nosh/pkg/routemap"
)

// enrichTopN bounds how many returned places get enrichment jobs.
const enrichTopN = 10

// Request is one search request entering the pipeline.
type Request struct {
	RequestID    string
	Query        string
	UserLocation *models.LatLng
	CityText     string
	Locale       string // UI locale hint
	SessionID    string
	UserID       string
}

// Gate classifies whether the query is a food search at all.
type Gate interface {
	Classify(ctx context.Context, query, uiLocale string) models.GateResult
}

// Intent decides the search route.
type Intent interface {
	Classify(ctx context.Context, query string, hints intent.Hints) (models.IntentResult, error)
}

// Mapper produces provider-call parameters for a route.
type Mapper interface {
	Map(ctx context.Context, in routemap.Input) (models.RouteMapping, error)
}

// FilterExtractor extracts shared filters; it never fails, only falls
// back.
type FilterExtractor interface {
	Extract(ctx context.Context, query string, route models.Route) models.PreGoogleBaseFilters
}

// Provider is the Places adapter surface the pipeline calls.
type Provider interface {
	SearchText(ctx context.Context, m models.TextSearchMapping) (places.SearchResult, error)
	SearchNearby(ctx context.Context, m models.NearbyMapping) (places.SearchResult, error)
	GeocodeThenSearch(ctx context.Context, m models.LandmarkMapping) (places.SearchResult, error)
}

// Events is the push surface the pipeline publishes to.
type Events interface {
	Assistant(reqLang *lang.RequestLanguage, requestID string, msgType models.AssistType, message string, blocksSearch bool)
	Ready(requestID string, count int)
	Error(requestID, code, message string)
}

// Enricher accepts background enrichment jobs.
type Enricher interface {
	Enqueue(job enrich.Job) bool
	Providers() []string
}

// Orchestrator wires the pipeline stages together.
type Orchestrator struct {
	gate          Gate
	intent        Intent
	mapper        Mapper
	filters       FilterExtractor
	provider      Provider
	store         jobs.Store
	events        Events
	enricher      Enricher
	defaultRegion string
}

// New builds an orchestrator. store and enricher may be nil: the
// pipeline then runs without job records or enrichment.
func New(gate Gate, intentClf Intent, mapper Mapper, extractor FilterExtractor, provider Provider, store jobs.Store, events Events, enricher Enricher, defaultRegion string) *Orchestrator {
	return &Orchestrator{
		gate:          gate,
		intent:        intentClf,
		mapper:        mapper,
		filters:       extractor,
		provider:      provider,
		store:         store,
		events:        events,
		enricher:      enricher,
		defaultRegion: defaultRegion,
	}
}

// Run executes the full pipeline for one request and returns the
// assembled response. Job-store and push failures are never fatal.
func (o *Orchestrator) Run(ctx context.Context, req Request) *models.SearchResponse {
	start := time.Now()
	log := slog.With("request_id", req.RequestID)

	// Language freeze: deterministic, before anything else. The frozen
	// value rides on every assistant message for this request.
	reqLang := &lang.RequestLanguage{}
	reqLang.Freeze(lang.Resolve(lang.DetectQueryLanguage(req.Query), req.Locale), req.RequestID)

	o.storeWrite(ctx, log, func(s jobs.Store) error {
		return s.SetStatus(ctx, req.RequestID, models.JobRunning, 5)
	})

	// Gate. No downstream LLM call starts before this guard passes.
	gate := o.gate.Classify(ctx, req.Query, req.Locale)
	switch gate.Decision {
	case models.GateStop:
		return o.terminalAssist(ctx, req, reqLang, start, terminal{
			assistType:    models.AssistGateFail,
			message:       lang.Message(lang.KeyGateFail, reqLang.Value()),
			blocksSearch:  true,
			failureReason: models.FailureNone,
			confidence:    gate.Confidence,
		})
	case models.GateClarify:
		return o.terminalAssist(ctx, req, reqLang, start, terminal{
			assistType:    models.AssistClarify,
			message:       lang.Message(lang.KeyClarify, reqLang.Value()),
			blocksSearch:  true,
			failureReason: models.FailureLowConfidence,
			confidence:    gate.Confidence,
		})
	}

	// Near-me pre-check: deterministic, before any further LLM call.
	nearMe := lang.IsNearMeQuery(req.Query)
	if nearMe && req.UserLocation == nil {
		return o.terminalAssist(ctx, req, reqLang, start, terminal{
			assistType:    models.AssistClarify,
			message:       lang.Message(lang.TemplateKey(models.FailureLocationRequired), reqLang.Value()),
			blocksSearch:  true,
			failureReason: models.FailureLocationRequired,
			confidence:    gate.Confidence,
		})
	}

	// Intent. A near-me phrase with a location forces NEARBY without
	// spending the intent call.
	var intentResult models.IntentResult
	if nearMe {
		intentResult = models.IntentResult{
			Route:      models.RouteNearby,
			Region:     gate.Region,
			Language:   gate.Language,
			Confidence: 1,
			Reason:     "near_me_keyword_override",
		}
	} else {
		var err error
		intentResult, err = o.intent.Classify(ctx, req.Query, intent.Hints{
			UILocale:        req.Locale,
			HasUserLocation: req.UserLocation != nil,
			GateRegion:      gate.Region,
		})
		if err != nil {
			return o.terminalFailure(ctx, req, reqLang, start, llmFailureReason(err), err)
		}
	}

	// Anchor guard: text search without any location anchor cannot
	// produce a scoped provider call.
	if intentResult.Route == models.RouteTextSearch &&
		req.CityText == "" && req.UserLocation == nil && intentResult.Region == "" {
		return o.terminalAssist(ctx, req, reqLang, start, terminal{
			assistType:    models.AssistClarify,
			message:       lang.Message(lang.KeyNeedAnchor, reqLang.Value()),
			blocksSearch:  true,
			failureReason: models.FailureLocationRequired,
			confidence:    intentResult.Confidence,
		})
	}

	// Route mapping. The nearby mapper re-checks the location guard.
	mapping, err := o.mapper.Map(ctx, routemap.Input{
		Query:        req.Query,
		Intent:       intentResult,
		UserLocation: req.UserLocation,
		CityText:     req.CityText,
	})
	if err != nil {
		if errors.Is(err, routemap.ErrLocationRequired) {
			return o.terminalAssist(ctx, req, reqLang, start, terminal{
				assistType:    models.AssistClarify,
				message:       lang.Message(lang.TemplateKey(models.FailureLocationRequired), reqLang.Value()),
				blocksSearch:  true,
				failureReason: models.FailureLocationRequired,
				confidence:    intentResult.Confidence,
			})
		}
		return o.terminalFailure(ctx, req, reqLang, start, llmFailureReason(err), err)
	}

	o.storeWrite(ctx, log, func(s jobs.Store) error {
		return s.SetStatus(ctx, req.RequestID, models.JobRunning, 40)
	})

	// Parallel fan-out: shared filters and the provider call. Both run
	// on the request context with their own internal budgets; neither
	// cancels the other.
	var base models.PreGoogleBaseFilters
	var results places.SearchResult
	var providerErr error
	g := new(errgroup.Group)
	g.Go(func() error {
		base = o.filters.Extract(ctx, req.Query, intentResult.Route)
		return nil
	})
	g.Go(func() error {
		results, providerErr = o.callProvider(ctx, mapping)
		return nil
	})
	_ = g.Wait()
	if providerErr != nil {
		return o.terminalFailure(ctx, req, reqLang, start, providerFailureReason(providerErr), providerErr)
	}

	final := filters.Tighten(base, filters.TightenInput{
		UILanguage:    uiLanguage(req.Locale),
		GateLanguage:  gate.Language,
		DefaultRegion: o.defaultRegion,
	})

	post := filters.ApplyPostFilters(results.Places, final)

	// Single weight choke point before ranking.
	openNowApplied := post.Applied.OpenState != nil && *post.Applied.OpenState == models.OpenNow
	weights := rank.FinalizeWeights(rank.DefaultWeights, req.UserLocation != nil, openNowApplied, false)
	ranked := rank.Rank(rank.Input{
		Places:       post.Filtered,
		Weights:      weights,
		UserLocation: req.UserLocation,
	})

	resp := o.assemble(req, reqLang, intentResult, mapping, post, ranked, results.FromCache, start)

	o.storeWrite(ctx, log, func(s jobs.Store) error {
		return s.SetResult(ctx, req.RequestID, resp, len(ranked))
	})

	// Push ordering: assistant, then ready, then enrichment patches.
	if resp.Assist != nil {
		o.events.Assistant(reqLang, req.RequestID, resp.Assist.Type, resp.Assist.Message, false)
	}
	o.events.Ready(req.RequestID, len(ranked))
	o.kickoffEnrichment(req, ranked)

	log.Info("Search completed",
		"route", intentResult.Route, "results", len(ranked),
		"took_ms", resp.Meta.TookMs, "failure_reason", resp.Meta.FailureReason)
	return resp
}

// callProvider dispatches exhaustively on the mapping tag.
func (o *Orchestrator) callProvider(ctx context.Context, mapping models.RouteMapping) (places.SearchResult, error) {
	switch mapping.ProviderMethod {
	case models.MethodTextSearch:
		return o.provider.SearchText(ctx, *mapping.TextSearch)
	case models.MethodNearby:
		return o.provider.SearchNearby(ctx, *mapping.Nearby)
	case models.MethodLandmark:
		return o.provider.GeocodeThenSearch(ctx, *mapping.Landmark)
	default:
		return places.SearchResult{}, errors.New("orchestrator: unmapped provider method")
	}
}

func (o *Orchestrator) assemble(req Request, reqLang *lang.RequestLanguage, intentResult models.IntentResult, mapping models.RouteMapping, post filters.PostFilterResult, ranked []models.Place, fromCache bool, start time.Time) *models.SearchResponse {
	failureReason := models.FailureNone
	if len(ranked) == 0 {
		failureReason = models.FailureNoResults
	}

	source := "provider"
	if fromCache {
		source = "cache"
	}

	var assist *models.Assist
	if len(ranked) > 0 {
		assist = &models.Assist{
			Type:    models.AssistSummary,
			Message: lang.Summary(reqLang.Value(), len(ranked)),
		}
	} else {
		assist = &models.Assist{
			Type:    models.AssistClarify,
			Message: lang.Message(lang.TemplateKey(models.FailureNoResults), reqLang.Value()),
		}
	}

	return &models.SearchResponse{
		RequestID: req.RequestID,
		Query: models.QueryEcho{
			Original: req.Query,
			Parsed:   parsedQuery(mapping),
			Language: reqLang.Value(),
		},
		Results: ranked,
		Chips:   []string{},
		Assist:  assist,
		Meta: models.ResponseMeta{
			TookMs:         time.Since(start).Milliseconds(),
			Mode:           modeFor(mapping.ProviderMethod),
			Confidence:     intentResult.Confidence,
			AppliedFilters: post.Applied,
			RelaxedFilters: post.Relaxed,
			Source:         source,
			FailureReason:  failureReason,
		},
	}
}

// kickoffEnrichment enqueues one job per provider per top place. Never
// blocks: full queues drop jobs.
func (o *Orchestrator) kickoffEnrichment(req Request, ranked []models.Place) {
	if o.enricher == nil {
		return
	}
	limit := len(ranked)
	if limit > enrichTopN {
		limit = enrichTopN
	}
	for _, place := range ranked[:limit] {
		for _, provider := range o.enricher.Providers() {
			o.enricher.Enqueue(enrich.Job{
				RequestID: req.RequestID,
				PlaceID:   place.ID,
				Name:      place.Name,
				CityText:  req.CityText,
				Provider:  provider,
			})
		}
	}
}
