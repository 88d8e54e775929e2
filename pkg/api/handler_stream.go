package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/noshhq/nosh/pkg/lang"
	"github.com/noshhq/nosh/pkg/models"
	"github.com/noshhq/nosh/pkg/push"
)

const sseKeepaliveInterval = 15 * time.Second

// sseMeta is the first event on every assistant stream.
type sseMeta struct {
	RequestID         string `json:"requestId"`
	AssistantLanguage string `json:"assistantLanguage"`
}

// sseMessage is one assistant message on the stream.
type sseMessage struct {
	Type         models.AssistType `json:"type"`
	Message      string            `json:"message"`
	Question     *string           `json:"question"`
	BlocksSearch bool              `json:"blocksSearch"`
}

// sseWriter serialises SSE frames onto one response stream.
type sseWriter struct {
	w          http.ResponseWriter
	rc         *http.ResponseController
	gone       bool
	pendingErr *push.ErrorEvent
}

func (sw *sseWriter) event(name string, payload any) {
	if sw.gone {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if _, err := fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		sw.gone = true
		return
	}
	_ = sw.rc.Flush()
}

func (sw *sseWriter) keepalive() {
	if sw.gone {
		return
	}
	if _, err := fmt.Fprint(sw.w, ":keepalive\n\n"); err != nil {
		sw.gone = true
		return
	}
	_ = sw.rc.Flush()
}

// streamAssistantHandler handles GET /api/v1/stream/assistant/:requestId.
// Ordering: meta first, then message(s), then done. A successful search
// streams GENERIC_QUERY_NARRATION followed by SUMMARY; a short-circuit
// streams its single message. Nothing is written after the client
// disconnects.
func (s *Server) streamAssistantHandler(c *echo.Context) error {
	info := s.authenticate(c)
	if info == nil {
		return unauthenticated(c)
	}
	requestID := c.Param("requestId")

	// Subscribe before the terminal-record check so no event can fall
	// between the two.
	events, cancel := s.broker.Subscribe(requestID)
	defer cancel()

	w := c.Response()
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	// Idle SSE streams must outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})
	sw := &sseWriter{w: w, rc: rc}

	// A job that already finished is replayed from the store.
	if s.store != nil {
		if rec, ok := s.store.Get(c.Request().Context(), requestID); ok && rec.Status.Terminal() {
			if rec.OwnerSessionID != info.SessionID {
				sw.event("done", struct{}{})
				return nil
			}
			s.replayTerminal(sw, rec)
			return nil
		}
	}

	ctx := c.Request().Context()
	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-keepalive.C:
			sw.keepalive()
			if sw.gone {
				return nil
			}
		case ev := <-events:
			if s.streamEvent(sw, ev) || sw.gone {
				return nil
			}
		}
	}
}

// streamEvent renders one broker event; reports whether the stream is
// finished.
func (s *Server) streamEvent(sw *sseWriter, ev push.BrokerEvent) bool {
	switch event := ev.Event.(type) {
	case push.AssistantEvent:
		sw.event("meta", sseMeta{RequestID: event.RequestID, AssistantLanguage: event.AssistantLanguage})
		if event.MessageType == models.AssistSummary {
			sw.event("message", sseMessage{
				Type:    models.AssistNarration,
				Message: lang.Message(lang.KeyNarration, event.AssistantLanguage),
			})
		}
		sw.event("message", sseMessage{
			Type:         event.MessageType,
			Message:      event.Message,
			BlocksSearch: event.BlocksSearch,
		})
		if sw.pendingErr != nil {
			sw.event("error", *sw.pendingErr)
		}
		if event.BlocksSearch {
			sw.event("done", struct{}{})
			return true
		}
	case push.ReadyEvent:
		sw.event("done", struct{}{})
		return true
	case push.ErrorEvent:
		// The assistant message for the failure follows on the same
		// channel; hold the error so meta still leads the stream.
		sw.pendingErr = &event
	}
	return false
}

// replayTerminal streams the stored outcome of an already-finished job.
func (s *Server) replayTerminal(sw *sseWriter, rec *models.JobRecord) {
	if rec.Status == models.JobDoneFailure {
		language := lang.English
		sw.event("meta", sseMeta{RequestID: rec.RequestID, AssistantLanguage: language})
		if rec.Error != nil {
			sw.event("error", push.ErrorEvent{
				Type:      push.TypeError,
				RequestID: rec.RequestID,
				Code:      rec.Error.Code,
				Message:   rec.Error.Message,
			})
		}
		sw.event("done", struct{}{})
		return
	}

	result := rec.Result
	if result == nil {
		sw.event("done", struct{}{})
		return
	}
	sw.event("meta", sseMeta{RequestID: rec.RequestID, AssistantLanguage: result.Query.Language})
	if result.Assist != nil {
		if result.Assist.Type == models.AssistSummary {
			sw.event("message", sseMessage{
				Type:    models.AssistNarration,
				Message: lang.Message(lang.KeyNarration, result.Query.Language),
			})
		}
		sw.event("message", sseMessage{
			Type:         result.Assist.Type,
			Message:      result.Assist.Message,
			BlocksSearch: result.Assist.Type != models.AssistSummary,
		})
	}
	sw.event("done", struct{}{})
}
