package lang

import (
	"log/slog"
	"sync"
)

// RequestLanguage is the write-once assistant-language value carried on the
// request context. The gate freezes it exactly once; every later write is a
// bug and is logged instead of applied.
type RequestLanguage struct {
	mu    sync.Mutex
	value string
	set   bool
}

// Freeze stores the language on first call. Subsequent calls are ignored
// and logged; the frozen value always wins.
func (r *RequestLanguage) Freeze(language, requestID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.set {
		if language != r.value {
			slog.Error("Attempted rewrite of frozen assistant language",
				"request_id", requestID, "frozen", r.value, "attempted", language)
		}
		return
	}
	r.value = language
	r.set = true
}

// Value returns the frozen language, or the hard fallback if Freeze was
// never called (logged; assistant messages must never go out unlocalized).
func (r *RequestLanguage) Value() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.set {
		slog.Warn("Assistant language read before freeze, falling back", "fallback", English)
		return English
	}
	return r.value
}

// Frozen reports whether Freeze has been called.
func (r *RequestLanguage) Frozen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set
}
