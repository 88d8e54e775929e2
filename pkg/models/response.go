package models

// FailureReason classifies why a search returned no (or degraded) results.
type FailureReason string

// Failure reason constants (meta.failureReason).
const (
	FailureNone                FailureReason = "NONE"
	FailureNoResults           FailureReason = "NO_RESULTS"
	FailureLowConfidence       FailureReason = "LOW_CONFIDENCE"
	FailureGeocodingFailed     FailureReason = "GEOCODING_FAILED"
	FailureGoogleAPIError      FailureReason = "GOOGLE_API_ERROR"
	FailureTimeout             FailureReason = "TIMEOUT"
	FailureQuotaExceeded       FailureReason = "QUOTA_EXCEEDED"
	FailureLiveDataUnavailable FailureReason = "LIVE_DATA_UNAVAILABLE"
	FailureWeakMatches         FailureReason = "WEAK_MATCHES"
	FailureLocationRequired    FailureReason = "LOCATION_REQUIRED"
)

// ErrorKind classifies errors across the core.
type ErrorKind string

// Error kind constants.
const (
	ErrInputInvalid    ErrorKind = "INPUT_INVALID"
	ErrUnauthenticated ErrorKind = "UNAUTHENTICATED"
	ErrForbiddenHidden ErrorKind = "FORBIDDEN_HIDDEN" // surfaced as 404
	ErrNotFoundKind    ErrorKind = "NOT_FOUND"
	ErrRateLimited     ErrorKind = "RATE_LIMITED"
	ErrUpstreamTimeout ErrorKind = "UPSTREAM_TIMEOUT"
	ErrUpstreamError   ErrorKind = "UPSTREAM_ERROR"
	ErrLLMTimeout      ErrorKind = "LLM_TIMEOUT"
	ErrLLMParse        ErrorKind = "LLM_PARSE_ERROR"
	ErrStoreUnavail    ErrorKind = "STORE_UNAVAILABLE"
	ErrInternal        ErrorKind = "INTERNAL"
)

// AssistType tags assistant-facing messages.
type AssistType string

// Assist type constants.
const (
	AssistGateFail  AssistType = "GATE_FAIL"
	AssistClarify   AssistType = "CLARIFY"
	AssistNarration AssistType = "GENERIC_QUERY_NARRATION"
	AssistSummary   AssistType = "SUMMARY"
)

// Assist is the assistant-facing portion of a search response.
type Assist struct {
	Type    AssistType `json:"type"`
	Message string     `json:"message"`
}

// QueryEcho reflects the interpreted query back to the client.
type QueryEcho struct {
	Original string `json:"original"`
	Parsed   string `json:"parsed"`
	Language string `json:"language"` // frozen assistantLanguage
}

// ResponseMeta carries diagnostics for a search response.
type ResponseMeta struct {
	TookMs         int64          `json:"tookMs"`
	Mode           string         `json:"mode"` // textsearch|nearby|landmark|none
	Confidence     float64        `json:"confidence"`
	AppliedFilters AppliedFilters `json:"appliedFilters"`
	RelaxedFilters RelaxedFilters `json:"relaxedFilters"`
	Source         string         `json:"source"` // provider|cache
	FailureReason  FailureReason  `json:"failureReason"`
}

// SearchResponse is the assembled result of a full pipeline run.
type SearchResponse struct {
	RequestID string       `json:"requestId"`
	Query     QueryEcho    `json:"query"`
	Results   []Place      `json:"results"`
	Chips     []string     `json:"chips"`
	Assist    *Assist      `json:"assist,omitempty"`
	Meta      ResponseMeta `json:"meta"`
}
