package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownDomain is returned when a request names a domain outside the registry.
	ErrUnknownDomain = errors.New("invalid or missing domain")
	// ErrProviderUnavailable indicates the answer provider could not produce a reply.
	ErrProviderUnavailable = errors.New("answer provider unavailable")
)

// InvalidResponseError carries the raw provider output that failed validation.
type InvalidResponseError struct {
	Raw string
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("invalid provider response %q: must be a single letter", e.Raw)
}
