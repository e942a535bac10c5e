package quote

import (
	"context"
	"errors"
	"fmt"
)

// Reason classifies a resolution failure. Provider-level reasons (Timeout,
// UpstreamError, NotFound) advance the fallback cascade; only
// AllProvidersExhausted and NoMarketForSymbol surface to callers of Resolve.
type Reason string

const (
	ReasonTimeout   Reason = "timeout"
	ReasonUpstream  Reason = "upstream_error"
	ReasonNotFound  Reason = "not_found"
	ReasonExhausted Reason = "all_providers_exhausted"
	ReasonNoMarket  Reason = "no_market_for_symbol"
)

// Error carries the failure reason so callers can implement their own
// fallback policy (e.g. substitute the last recorded value) without string
// matching.
type Error struct {
	Symbol string
	Reason Reason
	Err    error
}

func NewError(symbol string, reason Reason, err error) *Error {
	return &Error{Symbol: symbol, Reason: reason, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Symbol, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Symbol, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// ReasonOf extracts the failure reason from an error chain. Context deadline
// errors map to Timeout; anything unclassified counts as an upstream error.
func ReasonOf(err error) Reason {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Reason
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	return ReasonUpstream
}

func IsNotFound(err error) bool { return ReasonOf(err) == ReasonNotFound }

func IsTimeout(err error) bool { return ReasonOf(err) == ReasonTimeout }
