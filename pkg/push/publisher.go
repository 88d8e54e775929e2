package push

import (
	"github.com/noshhq/nosh/pkg/lang"
	"github.com/noshhq/nosh/pkg/models"
)

// Sink is the fan-out surface the publisher writes to. Implemented by
// *ConnectionManager; tests substitute a recorder.
type Sink interface {
	Publish(channel, requestID string, event any)
}

// Publisher is the single helper through which pipeline events reach
// the push channel. Every assistant event is stamped with the frozen
// request language here and nowhere else.
type Publisher struct {
	sink Sink
}

// NewPublisher builds a publisher over a sink.
func NewPublisher(sink Sink) *Publisher {
	return &Publisher{sink: sink}
}

// Assistant publishes a localised assistant message carrying the frozen
// assistantLanguage.
func (p *Publisher) Assistant(reqLang *lang.RequestLanguage, requestID string, msgType models.AssistType, message string, blocksSearch bool) {
	p.sink.Publish(ChannelAssistant, requestID, AssistantEvent{
		Type:              TypeAssistant,
		RequestID:         requestID,
		AssistantLanguage: reqLang.Value(),
		MessageType:       msgType,
		Message:           message,
		BlocksSearch:      blocksSearch,
	})
}

// Ready signals that the final result is available.
func (p *Publisher) Ready(requestID string, count int) {
	p.sink.Publish(ChannelSearch, requestID, ReadyEvent{
		Type:      TypeReady,
		RequestID: requestID,
		Count:     count,
	})
}

// ResultPatch publishes one enrichment outcome.
func (p *Publisher) ResultPatch(requestID, placeID, provider, status string, url *string) {
	p.sink.Publish(ChannelSearch, requestID, ResultPatchEvent{
		Type:      TypeResultPatch,
		RequestID: requestID,
		PlaceID:   placeID,
		Provider:  provider,
		Status:    status,
		URL:       url,
	})
}

// Error publishes a pipeline failure.
func (p *Publisher) Error(requestID, code, message string) {
	p.sink.Publish(ChannelSearch, requestID, ErrorEvent{
		Type:      TypeError,
		RequestID: requestID,
		Code:      code,
		Message:   message,
	})
}
