package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"rateservice/internal/metrics"
	"rateservice/internal/reqctx"
	"rateservice/internal/service"
)

// ConvertRequest represents the request body for a conversion
type ConvertRequest struct {
	Amount float64 `json:"amount" example:"100"`
	From   string  `json:"from" example:"USD"`
	To     string  `json:"to" example:"BRL"`
}

// ConvertResponse represents the result of a conversion
type ConvertResponse struct {
	Amount          float64 `json:"amount" example:"100"`
	From            string  `json:"from" example:"USD"`
	To              string  `json:"to" example:"BRL"`
	Rate            float64 `json:"rate" example:"5.2"`
	ConvertedAmount float64 `json:"converted_amount" example:"520"`
}

// RateResponse represents the response for a single rate lookup
type RateResponse struct {
	From string  `json:"from" example:"USD"`
	To   string  `json:"to" example:"BRL"`
	Rate float64 `json:"rate" example:"5.2"`
}

// WarmRequest represents the request body for a cache warm-up
type WarmRequest struct {
	Base string `json:"base" example:"USD"`
}

// WarmResponse represents the response for an accepted warm-up
type WarmResponse struct {
	TaskID string `json:"task_id" example:"123e4567-e89b-12d3-a456-426614174000"`
	Base   string `json:"base" example:"USD"`
}

// WarmEnqueuer schedules background cache warm-ups.
type WarmEnqueuer interface {
	EnqueueWarm(ctx context.Context, base string) (string, error)
}

// HandleConvert godoc
// @Summary Convert an amount between two currencies
// @Description Resolves the current rate (from cache or the upstream provider) and returns the converted amount rounded to 2 decimal places.
// @Tags conversion
// @Accept json
// @Produce json
// @Security BasicAuth
// @Param request body ConvertRequest true "Amount and currency pair"
// @Success 200 {object} ConvertResponse "Conversion result"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 401 {object} ErrorResponse "Missing or invalid credentials"
// @Failure 404 {object} ErrorResponse "Conversion rate not found"
// @Failure 500 {object} ErrorResponse "Database error occurred"
// @Failure 503 {object} ErrorResponse "Rate provider unavailable"
// @Router /convert [post]
func HandleConvert(resolver service.RateResolver, validator *service.ConversionValidator, m *metrics.Metrics, logger *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := reqctx.RequestID(r.Context())

		req, err := decodeConvertRequest(r)
		if err != nil {
			logger.Warnw("Invalid conversion request", "request_id", requestID, "error", err)
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}

		logger.Infow("Conversion request received",
			"request_id", requestID,
			"amount", req.Amount,
			"from", req.From,
			"to", req.To,
		)
		if err := validator.Validate(req); err != nil {
			logger.Warnw("Conversion request validation failed", "request_id", requestID, "error", err)
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}

		rate, err := resolver.Resolve(r.Context(), req.From, req.To)
		if err != nil {
			writeResolveError(w, err, req.From, req.To)
			return
		}

		converted := service.Convert(req.Amount, rate)
		m.ConversionsTotal.Inc()
		logger.Infow("Conversion successful",
			"request_id", requestID,
			"amount", req.Amount,
			"from", req.From,
			"to", req.To,
			"rate", rate,
			"converted_amount", converted,
		)

		writeJSON(w, http.StatusOK, ConvertResponse{
			Amount:          req.Amount,
			From:            req.From,
			To:              req.To,
			Rate:            rate,
			ConvertedAmount: converted,
		})
	}
}

// HandleGetRate godoc
// @Summary Get the current rate for a currency pair
// @Description Resolves the rate through the same cache-aside path as /convert.
// @Tags rates
// @Produce json
// @Param from path string true "Source currency code" minlength(3) maxlength(3)
// @Param to path string true "Target currency code" minlength(3) maxlength(3)
// @Success 200 {object} RateResponse "Rate found"
// @Failure 400 {object} ErrorResponse "Invalid currency"
// @Failure 404 {object} ErrorResponse "Conversion rate not found"
// @Failure 500 {object} ErrorResponse "Database error occurred"
// @Failure 503 {object} ErrorResponse "Rate provider unavailable"
// @Router /rates/{from}/{to} [get]
func HandleGetRate(resolver service.RateResolver, validator *service.ConversionValidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from := strings.ToUpper(chi.URLParam(r, "from"))
		to := strings.ToUpper(chi.URLParam(r, "to"))

		if err := validator.ValidatePair(from, to); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}

		rate, err := resolver.Resolve(r.Context(), from, to)
		if err != nil {
			writeResolveError(w, err, from, to)
			return
		}

		writeJSON(w, http.StatusOK, RateResponse{From: from, To: to, Rate: rate})
	}
}

// HandleWarmRates godoc
// @Summary Warm the rate cache for a base currency
// @Description Enqueues a background task that fetches the base currency's rate table once and stores every configured pair.
// @Tags rates
// @Accept json
// @Produce json
// @Security BasicAuth
// @Param request body WarmRequest true "Base currency"
// @Success 202 {object} WarmResponse "Warm-up accepted"
// @Failure 400 {object} ErrorResponse "Invalid base currency"
// @Failure 401 {object} ErrorResponse "Missing or invalid credentials"
// @Failure 500 {object} ErrorResponse "Internal error"
// @Router /rates/warm [post]
func HandleWarmRates(enqueuer WarmEnqueuer, validator *service.ConversionValidator, logger *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req WarmRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid JSON in request body"})
			return
		}
		base := strings.ToUpper(strings.TrimSpace(req.Base))
		if err := validator.ValidateBase(base); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}

		taskID, err := enqueuer.EnqueueWarm(r.Context(), base)
		if err != nil {
			logger.Errorw("Failed to enqueue warm-up task", "base", base, "request_id", reqctx.RequestID(r.Context()), "error", err)
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal error"})
			return
		}

		writeJSON(w, http.StatusAccepted, WarmResponse{TaskID: taskID, Base: base})
	}
}

// decodeConvertRequest parses the body, upper-cases the codes and
// rejects amounts that are not JSON numbers.
func decodeConvertRequest(r *http.Request) (service.ConversionRequest, error) {
	var body struct {
		Amount json.RawMessage `json:"amount"`
		From   string          `json:"from"`
		To     string          `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return service.ConversionRequest{}, &service.ValidationError{Message: "Invalid JSON in request body"}
	}

	req := service.ConversionRequest{
		From: strings.ToUpper(body.From),
		To:   strings.ToUpper(body.To),
	}

	dec := json.NewDecoder(bytes.NewReader(body.Amount))
	dec.UseNumber()
	var amount any
	if err := dec.Decode(&amount); err != nil {
		return service.ConversionRequest{}, service.AmountTypeError()
	}
	num, ok := amount.(json.Number)
	if !ok {
		return service.ConversionRequest{}, service.AmountTypeError()
	}
	f, err := num.Float64()
	if err != nil {
		return service.ConversionRequest{}, service.AmountTypeError()
	}
	req.Amount = f
	return req, nil
}

func writeResolveError(w http.ResponseWriter, err error, from, to string) {
	switch {
	case errors.Is(err, service.ErrRateNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Conversion rate not found for " + from + " to " + to})
	case errors.Is(err, service.ErrResolutionUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "Exchange rate provider unavailable, try again later"})
	default:
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Database error occurred"})
	}
}
