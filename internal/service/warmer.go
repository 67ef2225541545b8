package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"rateservice/internal/metrics"
	"rateservice/internal/provider"
	"rateservice/internal/reqctx"
	"rateservice/internal/store"
)

// Warmer pre-populates the rate store for every configured pair sharing a base currency.
type Warmer struct {
	store      store.RateStore
	provider   provider.RatesProvider
	currencies []string
	ttlHours   int
	log        *zap.SugaredLogger
	metrics    *metrics.Metrics
}

// NewWarmer creates a new Warmer.
func NewWarmer(rs store.RateStore, prov provider.RatesProvider, currencies []string, ttlHours int, logger *zap.SugaredLogger, m *metrics.Metrics) *Warmer {
	return &Warmer{
		store:      rs,
		provider:   prov,
		currencies: currencies,
		ttlHours:   ttlHours,
		log:        logger,
		metrics:    m,
	}
}

// Warm fetches the table for base once and writes every configured target found in it.
// It returns the number of pairs written. Individual write failures are logged, not returned.
func (w *Warmer) Warm(ctx context.Context, base string) (int, error) {
	requestID := reqctx.RequestID(ctx)

	rates, err := w.provider.FetchRates(ctx, base)
	switch {
	case errors.Is(err, provider.ErrCurrencyNotSupported):
		w.metrics.ProviderFetchesTotal.WithLabelValues("not_supported").Inc()
		return 0, fmt.Errorf("%w: %w", ErrRateNotFound, err)
	case err != nil:
		w.metrics.ProviderFetchesTotal.WithLabelValues("unavailable").Inc()
		return 0, fmt.Errorf("%w: %w", ErrResolutionUnavailable, err)
	}
	w.metrics.ProviderFetchesTotal.WithLabelValues("ok").Inc()

	written := 0
	for _, to := range w.currencies {
		if to == base {
			continue
		}
		rate, ok := rates[to]
		if !ok {
			w.log.Debugw("Target currency missing from rate table", "op", "warm", "from", base, "to", to, "request_id", requestID)
			continue
		}
		if err := w.store.Upsert(ctx, base, to, rate, w.ttlHours); err != nil {
			w.metrics.StoreWriteFailuresTotal.Inc()
			w.log.Warnw("Rate store write failed", "op", "warm", "from", base, "to", to, "request_id", requestID, "error", err)
			continue
		}
		written++
	}

	w.log.Infow("Rate cache warmed", "op", "warm", "from", base, "written", written, "request_id", requestID)
	return written, nil
}
