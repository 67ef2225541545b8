// Package service implements rate resolution, conversion and request validation.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"rateservice/internal/metrics"
	"rateservice/internal/provider"
	"rateservice/internal/reqctx"
	"rateservice/internal/store"
)

// Outcome is the terminal state of a single resolution.
type Outcome int

// Resolution outcomes.
const (
	OutcomeHit Outcome = iota
	OutcomeFetched
	OutcomeFetchedUncached
	OutcomeStoreFailure
	OutcomeUnavailable
	OutcomeNotSupported
	OutcomeNotFound
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHit:
		return "hit"
	case OutcomeFetched:
		return "fetched"
	case OutcomeFetchedUncached:
		return "fetched_uncached"
	case OutcomeStoreFailure:
		return "store_failure"
	case OutcomeUnavailable:
		return "unavailable"
	case OutcomeNotSupported:
		return "not_supported"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// RateResolver resolves a conversion rate.
type RateResolver interface {
	Resolve(ctx context.Context, from, to string) (float64, error)
}

var _ RateResolver = (*Resolver)(nil)

// Resolver looks rates up in the store and falls back to the provider on a miss,
// writing fetched rates back with the configured TTL.
//
// Concurrent misses for the same pair each fetch and write; the last write wins.
type Resolver struct {
	store    store.RateStore
	provider provider.RatesProvider
	ttlHours int
	log      *zap.SugaredLogger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewResolver creates a new Resolver.
func NewResolver(rs store.RateStore, prov provider.RatesProvider, ttlHours int, logger *zap.SugaredLogger, m *metrics.Metrics) *Resolver {
	return &Resolver{
		store:    rs,
		provider: prov,
		ttlHours: ttlHours,
		log:      logger,
		metrics:  m,
		now:      time.Now,
	}
}

// Resolve returns the rate for converting from into to. Codes are used as given.
func (r *Resolver) Resolve(ctx context.Context, from, to string) (float64, error) {
	rate, outcome, cause := r.resolve(ctx, from, to)
	r.record(ctx, from, to, outcome, cause)

	switch outcome {
	case OutcomeHit, OutcomeFetched, OutcomeFetchedUncached:
		return rate, nil
	case OutcomeStoreFailure:
		return 0, fmt.Errorf("%w: %w", ErrStoreFailure, cause)
	case OutcomeUnavailable:
		return 0, fmt.Errorf("%w: %w", ErrResolutionUnavailable, cause)
	default:
		return 0, fmt.Errorf("%w for %s to %s", ErrRateNotFound, from, to)
	}
}

func (r *Resolver) resolve(ctx context.Context, from, to string) (float64, Outcome, error) {
	entry, found, err := r.store.Lookup(ctx, from, to)
	if err != nil {
		return 0, OutcomeStoreFailure, err
	}
	if found && !entry.Expired(r.now()) {
		return entry.Rate, OutcomeHit, nil
	}

	rates, err := r.provider.FetchRates(ctx, from)
	switch {
	case errors.Is(err, provider.ErrCurrencyNotSupported):
		r.metrics.ProviderFetchesTotal.WithLabelValues("not_supported").Inc()
		return 0, OutcomeNotSupported, err
	case err != nil:
		r.metrics.ProviderFetchesTotal.WithLabelValues("unavailable").Inc()
		return 0, OutcomeUnavailable, err
	}
	r.metrics.ProviderFetchesTotal.WithLabelValues("ok").Inc()

	rate, ok := rates[to]
	if !ok {
		return 0, OutcomeNotFound, nil
	}

	if err := r.store.Upsert(ctx, from, to, rate, r.ttlHours); err != nil {
		r.metrics.StoreWriteFailuresTotal.Inc()
		r.log.Warnw("Rate store write failed",
			"op", "resolve",
			"from", from,
			"to", to,
			"request_id", reqctx.RequestID(ctx),
			"error", err,
		)
		return rate, OutcomeFetchedUncached, nil
	}
	return rate, OutcomeFetched, nil
}

func (r *Resolver) record(ctx context.Context, from, to string, outcome Outcome, cause error) {
	r.metrics.ResolutionsTotal.WithLabelValues(outcome.String()).Inc()

	fields := []any{
		"op", "resolve",
		"from", from,
		"to", to,
		"outcome", outcome.String(),
		"request_id", reqctx.RequestID(ctx),
	}
	if cause != nil {
		fields = append(fields, "error", cause)
	}

	switch outcome {
	case OutcomeHit, OutcomeFetched:
		r.log.Infow("Rate resolved", fields...)
	case OutcomeFetchedUncached, OutcomeNotSupported, OutcomeNotFound:
		r.log.Warnw("Rate resolved", fields...)
	default:
		r.log.Errorw("Rate resolved", fields...)
	}
}
