// Package gate implements the first pipeline stage: deciding whether a
// query is a food-search request at all, and with what confidence.
package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/noshhq/nosh/pkg/lang"
	"github.com/noshhq/nosh/pkg/llm"
	"github.com/noshhq/nosh/pkg/models"
)

// clarifyThreshold is the confidence floor below which a food query is
// answered with a clarification instead of a search.
const clarifyThreshold = 0.6

const systemPrompt = `You are a classifier for a restaurant search engine.
Given a user query (Hebrew, English or mixed), decide:
- foodSignal: true only if the query is about finding food, restaurants, cafes or dining.
- language: the dominant query language, one of he,en,ar,ru,fr,es.
- region: most likely ISO-3166 alpha-2 region for the search, or "" if unclear.
- confidence: 0..1, how sure you are that this is a food-search query.
Respond with JSON only.`

// staticSchema constrains the vendor output.
var staticSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"foodSignal": {"type": "boolean"},
		"language": {"type": "string", "enum": ["he", "en", "ar", "ru", "fr", "es"]},
		"region": {"type": "string"},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1}
	},
	"required": ["foodSignal", "language", "region", "confidence"],
	"additionalProperties": false
}`)

// rawResult is the vendor reply before deterministic post-processing.
type rawResult struct {
	FoodSignal bool    `json:"foodSignal"`
	Language   string  `json:"language"`
	Region     string  `json:"region"`
	Confidence float64 `json:"confidence"`
}

// CompleteJSONer is the LLM capability the classifier needs.
type CompleteJSONer interface {
	CompleteJSON(ctx context.Context, req llm.Request, out any) error
}

// Classifier runs the gate stage.
type Classifier struct {
	llm     CompleteJSONer
	timeout time.Duration
}

// NewClassifier builds a gate classifier with the configured budget.
func NewClassifier(llmClient CompleteJSONer, timeout time.Duration) *Classifier {
	return &Classifier{llm: llmClient, timeout: timeout}
}

// Classify runs the bounded gate call and applies the deterministic
// decision policy. It never returns an error: on timeout exhaustion the
// result is CONTINUE with confidence 0, logged as a warning, so the
// pipeline proceeds rather than blocking on a degraded classifier.
func (c *Classifier) Classify(ctx context.Context, query, uiLocale string) models.GateResult {
	var raw rawResult
	err := c.llm.CompleteJSON(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPayload(query, uiLocale)},
		},
		Timeout:      c.timeout,
		Retry:        true,
		SchemaName:   "gate_classification",
		StaticSchema: staticSchema,
		Validate: func(v any) error {
			r := v.(*rawResult)
			if r.Confidence < 0 || r.Confidence > 1 {
				return fmt.Errorf("confidence %v out of [0,1]", r.Confidence)
			}
			return nil
		},
	}, &raw)
	if err != nil {
		slog.Warn("Gate classification failed, continuing with zero confidence",
			"error", err)
		return models.GateResult{
			FoodSignal: true,
			Language:   lang.DetectQueryLanguage(query),
			Confidence: 0,
			Decision:   models.GateContinue,
		}
	}

	return models.GateResult{
		FoodSignal: raw.FoodSignal,
		Language:   raw.Language,
		Region:     raw.Region,
		Confidence: raw.Confidence,
		Decision:   decide(raw),
	}
}

// decide applies the deterministic decision policy to the LLM output.
func decide(raw rawResult) models.GateDecision {
	switch {
	case !raw.FoodSignal:
		return models.GateStop
	case raw.Confidence < clarifyThreshold:
		return models.GateClarify
	default:
		return models.GateContinue
	}
}

func userPayload(query, uiLocale string) string {
	payload := map[string]string{"query": query}
	if uiLocale != "" {
		payload["uiLocale"] = uiLocale
	}
	b, _ := json.Marshal(payload)
	return string(b)
}
