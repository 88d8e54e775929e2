package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/noshhq/nosh/pkg/jobs"
	"github.com/noshhq/nosh/pkg/lang"
	"github.com/noshhq/nosh/pkg/llm"
	"github.com/noshhq/nosh/pkg/models"
	"github.com/noshhq/nosh/pkg/places"
)

// terminal describes an early-guard response: an assistant message and
// no search.
type terminal struct {
	assistType    models.AssistType
	message       string
	blocksSearch  bool
	failureReason models.FailureReason
	confidence    float64
}

// terminalAssist builds the short-circuit response for a guard, stores
// it on the job and publishes the assistant event.
func (o *Orchestrator) terminalAssist(ctx context.Context, req Request, reqLang *lang.RequestLanguage, start time.Time, t terminal) *models.SearchResponse {
	log := slog.With("request_id", req.RequestID)

	resp := &models.SearchResponse{
		RequestID: req.RequestID,
		Query: models.QueryEcho{
			Original: req.Query,
			Parsed:   req.Query,
			Language: reqLang.Value(),
		},
		Results: []models.Place{},
		Chips:   []string{},
		Assist:  &models.Assist{Type: t.assistType, Message: t.message},
		Meta: models.ResponseMeta{
			TookMs:        time.Since(start).Milliseconds(),
			Mode:          "none",
			Confidence:    t.confidence,
			Source:        "provider",
			FailureReason: t.failureReason,
		},
	}

	o.storeWrite(ctx, log, func(s jobs.Store) error {
		return s.SetResult(ctx, req.RequestID, resp, 0)
	})
	o.events.Assistant(reqLang, req.RequestID, t.assistType, t.message, t.blocksSearch)

	log.Info("Search short-circuited",
		"assist_type", t.assistType, "failure_reason", t.failureReason)
	return resp
}

// terminalFailure marks the job failed, publishes an error event and an
// assistant message templated from the failure reason.
func (o *Orchestrator) terminalFailure(ctx context.Context, req Request, reqLang *lang.RequestLanguage, start time.Time, reason models.FailureReason, cause error) *models.SearchResponse {
	log := slog.With("request_id", req.RequestID)
	log.Error("Search failed", "failure_reason", reason, "error", cause)

	message := lang.Message(lang.TemplateKey(reason), reqLang.Value())
	if message == "" {
		message = lang.Message(lang.TemplateKey(models.FailureTimeout), reqLang.Value())
	}

	o.storeWrite(ctx, log, func(s jobs.Store) error {
		return s.SetError(ctx, req.RequestID, string(reason), cause.Error())
	})
	o.events.Error(req.RequestID, string(reason), message)
	o.events.Assistant(reqLang, req.RequestID, models.AssistClarify, message, true)

	return &models.SearchResponse{
		RequestID: req.RequestID,
		Query: models.QueryEcho{
			Original: req.Query,
			Parsed:   req.Query,
			Language: reqLang.Value(),
		},
		Results: []models.Place{},
		Chips:   []string{},
		Assist:  &models.Assist{Type: models.AssistClarify, Message: message},
		Meta: models.ResponseMeta{
			TookMs:        time.Since(start).Milliseconds(),
			Mode:          "none",
			Source:        "provider",
			FailureReason: reason,
		},
	}
}

// storeWrite runs one job-store call inside its own error boundary.
// Store failure never aborts the pipeline.
func (o *Orchestrator) storeWrite(ctx context.Context, log *slog.Logger, fn func(jobs.Store) error) {
	if o.store == nil {
		return
	}
	if !o.store.IsAvailable(ctx) {
		log.Warn("Job store unavailable, continuing without job writes")
		return
	}
	if err := fn(o.store); err != nil {
		log.Warn("Job store write failed", "error", err)
	}
}

// llmFailureReason maps classifier failures to the response taxonomy.
func llmFailureReason(err error) models.FailureReason {
	if llm.IsTimeout(err) {
		return models.FailureTimeout
	}
	return models.FailureLowConfidence
}

// providerFailureReason maps provider failures to the response taxonomy.
func providerFailureReason(err error) models.FailureReason {
	switch places.KindOf(err) {
	case places.KindTimeout:
		return models.FailureTimeout
	case places.KindQuota:
		return models.FailureQuotaExceeded
	case places.KindGeocode:
		return models.FailureGeocodingFailed
	default:
		return models.FailureGoogleAPIError
	}
}

// modeFor renders the response meta mode for a provider method.
func modeFor(method models.ProviderMethod) string {
	switch method {
	case models.MethodTextSearch:
		return "textsearch"
	case models.MethodNearby:
		return "nearby"
	case models.MethodLandmark:
		return "landmark"
	default:
		return "none"
	}
}

// parsedQuery echoes the provider-facing interpretation of the query.
func parsedQuery(mapping models.RouteMapping) string {
	switch mapping.ProviderMethod {
	case models.MethodTextSearch:
		return mapping.TextSearch.TextQuery
	case models.MethodNearby:
		return mapping.Nearby.Keyword
	case models.MethodLandmark:
		return mapping.Landmark.Keyword
	default:
		return ""
	}
}

// uiLanguage narrows a UI locale hint to the filter language set.
func uiLanguage(locale string) string {
	switch locale {
	case lang.Hebrew, lang.English:
		return locale
	default:
		return ""
	}
}
