// Package provider fetches exchange rate tables from the upstream rate API.
package provider

import (
	"context"
	"errors"
)

var (
	// ErrProviderUnavailable means the upstream is down, timed out, or returned an unusable response.
	ErrProviderUnavailable = errors.New("rate provider unavailable")
	// ErrCurrencyNotSupported means the upstream does not know the requested base currency.
	ErrCurrencyNotSupported = errors.New("currency not supported by rate provider")
)

// RatesProvider fetches the complete rate table for a base currency.
// Implementations never retry and never return partial tables.
type RatesProvider interface {
	FetchRates(ctx context.Context, base string) (map[string]float64, error)
}
