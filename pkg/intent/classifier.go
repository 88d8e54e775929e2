// Package intent implements the second pipeline stage: choosing the
// search route for a food query.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/noshhq/nosh/pkg/llm"
	"github.com/noshhq/nosh/pkg/models"
)

const systemPrompt = `You route restaurant search queries. Given a query
(Hebrew, English or mixed), decide the route:
- NEARBY: ONLY when the user asks for distance from THEMSELVES
  ("near me", "ליד", "ממני", "קרוב אליי"). Distance from a NAMED place
  ("800 m from the Arc de Triomphe") is NOT nearby.
- LANDMARK: any named-place anchor - a street, POI, landmark, address,
  including foreign landmarks. Use reason "distance_from_landmark" when
  the query states a distance from the anchor.
- TEXTSEARCH: everything else that contains a location anchor such as a
  city or neighbourhood name.
Also report:
- region: most likely ISO-3166 alpha-2 region, "" if unclear.
- language: dominant query language, one of he,en,ar,ru,fr,es.
- confidence: 0..1.
- reason: short machine-readable snake_case reason for the route.
Respond with JSON only.`

var staticSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"route": {"type": "string", "enum": ["TEXTSEARCH", "NEARBY", "LANDMARK"]},
		"region": {"type": "string"},
		"language": {"type": "string", "enum": ["he", "en", "ar", "ru", "fr", "es"]},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"reason": {"type": "string"}
	},
	"required": ["route", "region", "language", "confidence", "reason"],
	"additionalProperties": false
}`)

// CompleteJSONer is the LLM capability the classifier needs.
type CompleteJSONer interface {
	CompleteJSON(ctx context.Context, req llm.Request, out any) error
}

// Classifier runs the intent stage.
type Classifier struct {
	llm     CompleteJSONer
	timeout time.Duration
}

// NewClassifier builds an intent classifier with the configured budget.
func NewClassifier(llmClient CompleteJSONer, timeout time.Duration) *Classifier {
	return &Classifier{llm: llmClient, timeout: timeout}
}

// Classify decides the search route for a food query. Unlike the gate
// there is no safe fallback: without a route the pipeline cannot call
// the provider, so failures propagate to the caller.
func (c *Classifier) Classify(ctx context.Context, query string, hints Hints) (models.IntentResult, error) {
	var result models.IntentResult
	err := c.llm.CompleteJSON(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPayload(query, hints)},
		},
		Timeout:      c.timeout,
		Retry:        true,
		SchemaName:   "intent_classification",
		StaticSchema: staticSchema,
		Validate: func(v any) error {
			r := v.(*models.IntentResult)
			switch r.Route {
			case models.RouteTextSearch, models.RouteNearby, models.RouteLandmark:
			default:
				return fmt.Errorf("unknown route %q", r.Route)
			}
			if r.Confidence < 0 || r.Confidence > 1 {
				return fmt.Errorf("confidence %v out of [0,1]", r.Confidence)
			}
			return nil
		},
	}, &result)
	if err != nil {
		return models.IntentResult{}, fmt.Errorf("classifying intent: %w", err)
	}
	return result, nil
}

// Hints carries the optional request context the classifier may use.
type Hints struct {
	UILocale        string
	HasUserLocation bool
	GateRegion      string
}

func userPayload(query string, hints Hints) string {
	payload := map[string]any{
		"query":           query,
		"hasUserLocation": hints.HasUserLocation,
	}
	if hints.UILocale != "" {
		payload["uiLocale"] = hints.UILocale
	}
	if hints.GateRegion != "" {
		payload["regionHint"] = hints.GateRegion
	}
	b, _ := json.Marshal(payload)
	return string(b)
}
