// Package filters extracts structured search filters from free text and
// applies them deterministically with an auto-relax policy.
package filters

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/noshhq/nosh/pkg/llm"
	"github.com/noshhq/nosh/pkg/models"
)

const systemPrompt = `You extract structured filters from a restaurant
search query (Hebrew, English or mixed). Rules:
- openState: "open now"/"פתוח עכשיו" -> OPEN_NOW; "open at 20:00" ->
  OPEN_AT with openAt "20:00"; "open 19-22" -> OPEN_BETWEEN with
  openBetween. Otherwise null.
- priceIntent: cheap/budget/זול -> CHEAP; moderate/medium/בינוני -> MID;
  expensive/luxury/יקר -> EXPENSIVE. Otherwise null.
- minRatingBucket: "3.5+"/"סביר" -> R35; "4+"/"high rated"/"דירוג גבוה"
  -> R40; "4.5+"/"best"/"הכי טובים" -> R45. Otherwise null.
- language: "he", "en", or "auto" when mixed or unclear.
- regionHint: ISO-3166 alpha-2 when the query implies one, else "".
Respond with JSON only.`

var staticSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"language": {"type": "string", "enum": ["he", "en", "auto"]},
		"openState": {"type": ["string", "null"], "enum": ["OPEN_NOW", "OPEN_AT", "OPEN_BETWEEN", null]},
		"openAt": {"type": ["string", "null"]},
		"openBetween": {
			"type": ["object", "null"],
			"properties": {"from": {"type": "string"}, "to": {"type": "string"}},
			"required": ["from", "to"],
			"additionalProperties": false
		},
		"regionHint": {"type": "string"},
		"priceIntent": {"type": ["string", "null"], "enum": ["CHEAP", "MID", "EXPENSIVE", null]},
		"minRatingBucket": {"type": ["string", "null"], "enum": ["R35", "R40", "R45", null]}
	},
	"required": ["language", "openState", "openAt", "openBetween", "regionHint", "priceIntent", "minRatingBucket"],
	"additionalProperties": false
}`)

// CompleteJSONer is the LLM capability the extractor needs.
type CompleteJSONer interface {
	CompleteJSON(ctx context.Context, req llm.Request, out any) error
}

// Extractor runs the bounded shared-filters LLM call.
type Extractor struct {
	llm     CompleteJSONer
	timeout time.Duration
}

// NewExtractor builds a filter extractor with the configured budget.
func NewExtractor(llmClient CompleteJSONer, timeout time.Duration) *Extractor {
	return &Extractor{llm: llmClient, timeout: timeout}
}

// Extract runs one bounded LLM call with no retry. On ANY failure it
// returns the safe fallback so the pipeline is never blocked on filters.
func (e *Extractor) Extract(ctx context.Context, query string, route models.Route) models.PreGoogleBaseFilters {
	var base models.PreGoogleBaseFilters
	err := e.llm.CompleteJSON(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPayload(query, route)},
		},
		Timeout:      e.timeout,
		SchemaName:   "shared_filters",
		StaticSchema: staticSchema,
		Validate: func(v any) error {
			f := v.(*models.PreGoogleBaseFilters)
			if f.OpenState != nil && *f.OpenState == models.OpenAt && f.OpenAt == nil {
				return fmt.Errorf("OPEN_AT without openAt time")
			}
			if f.OpenState != nil && *f.OpenState == models.OpenBetween && f.OpenBetween == nil {
				return fmt.Errorf("OPEN_BETWEEN without openBetween range")
			}
			return nil
		},
	}, &base)
	if err != nil {
		slog.Warn("Filter extraction failed, using safe fallback", "error", err)
		return models.SafeFallbackFilters()
	}
	return base
}

func userPayload(query string, route models.Route) string {
	b, _ := json.Marshal(map[string]string{
		"query": query,
		"route": string(route),
	})
	return string(b)
}
