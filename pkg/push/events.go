package push

import "github.com/noshhq/nosh/pkg/models"

// Channel names published by the pipeline.
const (
	ChannelAssistant = "assistant"
	ChannelSearch    = "search"
)

// Event types.
const (
	TypeReady       = "ready"
	TypeAssistant   = "assistant"
	TypeResultPatch = "RESULT_PATCH"
	TypeError       = "error"
)

// ReadyEvent signals that the final result is retrievable.
type ReadyEvent struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId"`
	Count     int    `json:"count"`
}

// AssistantEvent carries a localised assistant message. The top-level
// AssistantLanguage field is mandatory and stamped by the publisher
// from the frozen request language.
type AssistantEvent struct {
	Type              string            `json:"type"`
	RequestID         string            `json:"requestId"`
	AssistantLanguage string            `json:"assistantLanguage"`
	MessageType       models.AssistType `json:"messageType"`
	Message           string            `json:"message"`
	BlocksSearch      bool              `json:"blocksSearch"`
}

// ResultPatchEvent carries one enrichment outcome for a place. URL is
// null for NOT_FOUND; a synthesized search URL is never sent.
type ResultPatchEvent struct {
	Type      string  `json:"type"`
	RequestID string  `json:"requestId"`
	PlaceID   string  `json:"placeId"`
	Provider  string  `json:"provider"`
	Status    string  `json:"status"` // FOUND | NOT_FOUND
	URL       *string `json:"url"`
}

// ErrorEvent reports a pipeline failure to subscribers.
type ErrorEvent struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}
