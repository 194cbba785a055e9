package models

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError is a caller fault detected before any backend is contacted.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

// DenialReason distinguishes which admission gate rejected a request.
type DenialReason string

const (
	DeniedRateLimit DenialReason = "rate_limit"
	DeniedQuota     DenialReason = "quota"
)

// AdmissionDeniedError is surfaced as 429. Remaining carries the budget hint
// for the gate that denied: requests for the rate limiter, USD for quota.
type AdmissionDeniedError struct {
	Reason     DenialReason
	Scope      string
	RetryAfter time.Duration
	Remaining  float64
}

func (e *AdmissionDeniedError) Error() string {
	return fmt.Sprintf("admission denied: %s (scope %s)", e.Reason, e.Scope)
}

// ProviderError wraps a failure from an upstream translation provider.
// Transient failures trigger fallback to the next candidate; permanent ones
// (unsupported pair, bad workspace-scoped key) only exclude the provider from
// the current chain.
type ProviderError struct {
	Provider  string
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("provider %s: %s failure: %v", e.Provider, kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ChainExhaustedError means every candidate provider failed. Attempts is the
// number of providers actually invoked.
type ChainExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *ChainExhaustedError) Error() string {
	return fmt.Sprintf("all %d candidate providers failed: %v", e.Attempts, e.LastErr)
}

func (e *ChainExhaustedError) Unwrap() error { return e.LastErr }

// ErrNoProvider means the selector produced an empty chain for the requested
// language pair. Surfaced as 503.
var ErrNoProvider = errors.New("no provider available for language pair")

// ErrMissingUserContext means the trusted auth headers were absent.
var ErrMissingUserContext = errors.New("missing user context")
