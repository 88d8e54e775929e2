// Package llm wraps the LLM vendor behind a single CompleteJSON capability:
// bounded, schema-constrained JSON completion with one retry on transport
// failures. All pipeline classifiers (gate, intent, route mappers, filter
// extractor) go through this client.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/noshhq/nosh/pkg/config"
)

// retryBackoff is the fixed wait before the single retry.
const retryBackoff = 500 * time.Millisecond

// Message is a chat message sent to the vendor.
type Message struct {
	Role    string `json:"role"` // "system" | "user" | "assistant"
	Content string `json:"content"`
}

// Request describes one bounded CompleteJSON call.
type Request struct {
	Messages []Message
	// Timeout is the hard per-call deadline. Required.
	Timeout time.Duration
	// Retry enables a single retry (after a fixed 500ms back-off) on
	// timeout or transport failure. Parse and schema failures never retry.
	Retry bool
	// SchemaName labels the constrained-output schema for the vendor.
	SchemaName string
	// StaticSchema, when set, is passed verbatim to the vendor as the
	// constrained-output JSON schema.
	StaticSchema json.RawMessage
	// Validate, when set, performs semantic validation of the decoded
	// value. A validation failure is reported as a schema mismatch.
	Validate func(any) error
}

// completionAPI is the vendor surface the client consumes. Satisfied by
// *openai.Client; tests substitute a fake.
type completionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client issues CompleteJSON calls against the configured vendor model.
type Client struct {
	api   completionAPI
	model string
}

// NewClient builds a Client from configuration.
func NewClient(cfg config.LLMConfig) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(apiCfg),
		model: cfg.Model,
	}
}

// NewClientWithAPI builds a Client over an explicit vendor API. Used by tests.
func NewClientWithAPI(api completionAPI, model string) *Client {
	return &Client{api: api, model: model}
}

// CompleteJSON performs one bounded completion and decodes the JSON reply
// into out. Failures carry a typed *Error with one of the LLM_* kinds.
func (c *Client) CompleteJSON(ctx context.Context, req Request, out any) error {
	if req.Timeout <= 0 {
		return &Error{Kind: KindTransport, Err: errors.New("llm: request timeout is required")}
	}

	attempts := 1
	if req.Retry {
		attempts = 2
	}

	var lastErr *Error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
				return &Error{Kind: KindTimeout, Err: ctx.Err()}
			}
			slog.Warn("Retrying LLM call", "schema", req.SchemaName, "attempt", attempt)
		}

		err := c.completeOnce(ctx, req, out)
		if err == nil {
			return nil
		}
		var llmErr *Error
		if !errors.As(err, &llmErr) {
			llmErr = &Error{Kind: KindTransport, Err: err}
		}
		lastErr = llmErr

		// Only timeout and transport failures are retryable.
		if llmErr.Kind != KindTimeout && llmErr.Kind != KindTransport {
			return llmErr
		}
	}
	return lastErr
}

// completeOnce performs a single vendor call under the per-call deadline.
func (c *Client) completeOnce(parent context.Context, req Request, out any) error {
	ctx, cancel := context.WithTimeout(parent, req.Timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	vendorReq := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	}
	if len(req.StaticSchema) > 0 {
		vendorReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.SchemaName,
				Schema: req.StaticSchema,
				Strict: true,
			},
		}
	} else {
		vendorReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, vendorReq)
	if err != nil {
		if ctx.Err() != nil {
			return &Error{Kind: KindTimeout, Err: fmt.Errorf("llm call exceeded %v: %w", req.Timeout, err)}
		}
		return &Error{Kind: KindTransport, Err: err}
	}
	if len(resp.Choices) == 0 {
		return &Error{Kind: KindTransport, Err: errors.New("llm: empty choices in response")}
	}

	content := stripFences(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return &Error{Kind: KindParse, Err: fmt.Errorf("llm: decoding reply: %w", err)}
	}
	if req.Validate != nil {
		if err := req.Validate(out); err != nil {
			return &Error{Kind: KindSchemaMismatch, Err: err}
		}
	}

	slog.Debug("LLM call completed",
		"schema", req.SchemaName, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// stripFences removes a surrounding markdown code fence, which some models
// emit even under JSON response format.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
