package places

import (
	"errors"
	"fmt"
)

// Kind classifies provider-call failures.
type Kind string

// Failure kinds.
const (
	KindTimeout  Kind = "PROVIDER_TIMEOUT"
	KindAPIError Kind = "PROVIDER_API_ERROR"
	KindQuota    Kind = "PROVIDER_QUOTA_EXCEEDED"
	KindGeocode  Kind = "PROVIDER_GEOCODING_FAILED"
)

// Error is a typed provider failure. A non-2xx provider response is
// always an Error, never an empty success.
type Error struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind, defaulting to KindAPIError.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindAPIError
}
