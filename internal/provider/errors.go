package provider

import (
	"errors"
	"fmt"
)

// Kind classifies an adapter failure.
type Kind string

const (
	KindUnavailable Kind = "unavailable"  // network error or unexpected HTTP status
	KindRateLimited Kind = "rate_limited" // HTTP 429 or quota exhaustion (403)
	KindNotFound    Kind = "not_found"    // symbol unknown to the provider
	KindParseError  Kind = "parse_error"  // malformed or unexpected payload
)

// Error is the typed failure every adapter returns. Nothing else crosses
// the adapter boundary.
type Error struct {
	Provider string
	Kind     Kind
	Msg      string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Provider, e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a typed adapter failure.
func NewError(provider string, kind Kind, msg string, err error) *Error {
	return &Error{Provider: provider, Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the failure kind from an error chain.
// Non-adapter errors report as KindUnavailable.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnavailable
}

// IsRateLimited reports whether err carries a rate-limit/quota failure.
func IsRateLimited(err error) bool {
	return KindOf(err) == KindRateLimited
}
