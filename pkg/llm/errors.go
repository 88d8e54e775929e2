package llm

import (
	"errors"
	"fmt"
)

// Kind classifies CompleteJSON failures.
type Kind string

// Failure kinds.
const (
	KindTimeout        Kind = "LLM_TIMEOUT"
	KindParse          Kind = "LLM_PARSE_ERROR"
	KindSchemaMismatch Kind = "LLM_SCHEMA_MISMATCH"
	KindTransport      Kind = "LLM_TRANSPORT"
)

// Error is a typed LLM failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTimeout reports whether err is an LLM timeout failure.
func IsTimeout(err error) bool {
	return hasKind(err, KindTimeout)
}

func hasKind(err error, kind Kind) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Kind == kind
	}
	return false
}
