package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"rateservice/internal/config"
	"rateservice/internal/metrics"
	"rateservice/internal/service"
)

func newTestValidator() *service.ConversionValidator {
	return service.NewConversionValidator(config.ConversionConfig{
		Currencies: "USD,BRL,EUR,GBP,JPY",
		MinAmount:  0.01,
		MaxAmount:  1_000_000_000,
	})
}

func fixedRate(rate float64) *mockResolver {
	return &mockResolver{
		resolveFunc: func(ctx context.Context, from, to string) (float64, error) {
			return rate, nil
		},
	}
}

func failingResolver(err error) *mockResolver {
	return &mockResolver{
		resolveFunc: func(ctx context.Context, from, to string) (float64, error) {
			return 0, err
		},
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp.Error
}

func TestHandleConvert(t *testing.T) {
	logger := zap.NewNop().Sugar()
	validator := newTestValidator()

	t.Run("valid request returns converted amount", func(t *testing.T) {
		m := metrics.New(prometheus.NewRegistry())
		resolver := &mockResolver{
			resolveFunc: func(ctx context.Context, from, to string) (float64, error) {
				if from != "USD" || to != "BRL" {
					t.Errorf("Expected USD/BRL, got %s/%s", from, to)
				}
				return 5.2, nil
			},
		}

		body := bytes.NewBufferString(`{"amount":100,"from":"usd","to":"brl"}`)
		req := httptest.NewRequest(http.MethodPost, "/convert", body)
		w := httptest.NewRecorder()

		HandleConvert(resolver, validator, m, logger).ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}

		var resp ConvertResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if resp.Amount != 100 || resp.From != "USD" || resp.To != "BRL" {
			t.Errorf("Unexpected echo fields: %+v", resp)
		}
		if resp.Rate != 5.2 {
			t.Errorf("Expected rate 5.2, got %v", resp.Rate)
		}
		if resp.ConvertedAmount != 520 {
			t.Errorf("Expected converted_amount 520, got %v", resp.ConvertedAmount)
		}
		if got := testutil.ToFloat64(m.ConversionsTotal); got != 1 {
			t.Errorf("Expected conversions_total 1, got %v", got)
		}
	})

	t.Run("converted amount is rounded to cents", func(t *testing.T) {
		body := bytes.NewBufferString(`{"amount":33.33,"from":"EUR","to":"JPY"}`)
		req := httptest.NewRequest(http.MethodPost, "/convert", body)
		w := httptest.NewRecorder()

		HandleConvert(fixedRate(161.2345), validator, metrics.New(prometheus.NewRegistry()), logger).ServeHTTP(w, req)

		var resp ConvertResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if resp.ConvertedAmount != 5373.95 {
			t.Errorf("Expected converted_amount 5373.95, got %v", resp.ConvertedAmount)
		}
	})

	badRequests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"malformed json", `{"amount":`, "Invalid JSON in request body"},
		{"string amount", `{"amount":"100","from":"USD","to":"BRL"}`, "Invalid amount. Must be a number."},
		{"missing amount", `{"from":"USD","to":"BRL"}`, "Invalid amount. Must be a number."},
		{"null amount", `{"amount":null,"from":"USD","to":"BRL"}`, "Invalid amount. Must be a number."},
		{"zero amount", `{"amount":0,"from":"USD","to":"BRL"}`, "Invalid amount. Must be a number."},
		{"below minimum", `{"amount":0.001,"from":"USD","to":"BRL"}`, "Amount must be at least 0.01."},
		{"above maximum", `{"amount":1000000001,"from":"USD","to":"BRL"}`, "Amount exceeds maximum limit of 1,000,000,000."},
		{"unsupported from", `{"amount":1,"from":"XYZ","to":"BRL"}`, "Invalid from currency. Invalid currency. Must be one of: BRL, EUR, GBP, JPY, USD."},
		{"unsupported to", `{"amount":1,"from":"USD","to":"ABC"}`, "Invalid to currency. Invalid currency. Must be one of: BRL, EUR, GBP, JPY, USD."},
		{"same currency", `{"amount":1,"from":"USD","to":"usd"}`, "From and to currencies must be different."},
	}

	for _, tt := range badRequests {
		t.Run(tt.name+" returns 400", func(t *testing.T) {
			resolver := fixedRate(1)
			req := httptest.NewRequest(http.MethodPost, "/convert", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()

			HandleConvert(resolver, validator, metrics.New(prometheus.NewRegistry()), logger).ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
			if got := decodeError(t, w); got != tt.wantErr {
				t.Errorf("Expected error '%s', got '%s'", tt.wantErr, got)
			}
			if resolver.calls != 0 {
				t.Errorf("Expected resolver not to be called, got %d calls", resolver.calls)
			}
		})
	}

	resolveErrors := []struct {
		name       string
		err        error
		wantStatus int
		wantErr    string
	}{
		{"rate not found", fmt.Errorf("%w: GBP", service.ErrRateNotFound), http.StatusNotFound, "Conversion rate not found for USD to GBP"},
		{"provider unavailable", service.ErrResolutionUnavailable, http.StatusServiceUnavailable, "Exchange rate provider unavailable, try again later"},
		{"store failure", service.ErrStoreFailure, http.StatusInternalServerError, "Database error occurred"},
		{"unexpected error", errors.New("boom"), http.StatusInternalServerError, "Database error occurred"},
	}

	for _, tt := range resolveErrors {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New(prometheus.NewRegistry())
			body := bytes.NewBufferString(`{"amount":10,"from":"USD","to":"GBP"}`)
			req := httptest.NewRequest(http.MethodPost, "/convert", body)
			w := httptest.NewRecorder()

			HandleConvert(failingResolver(tt.err), validator, m, logger).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if got := decodeError(t, w); got != tt.wantErr {
				t.Errorf("Expected error '%s', got '%s'", tt.wantErr, got)
			}
			if got := testutil.ToFloat64(m.ConversionsTotal); got != 0 {
				t.Errorf("Expected conversions_total 0, got %v", got)
			}
		})
	}
}

func TestHandleGetRate(t *testing.T) {
	validator := newTestValidator()

	newRequest := func(from, to string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/rates/"+from+"/"+to, nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("from", from)
		rctx.URLParams.Add("to", to)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	t.Run("valid pair returns rate", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleGetRate(fixedRate(0.85), validator).ServeHTTP(w, newRequest("usd", "EUR"))

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}

		var resp RateResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if resp.From != "USD" || resp.To != "EUR" || resp.Rate != 0.85 {
			t.Errorf("Unexpected response: %+v", resp)
		}
	})

	t.Run("unsupported currency returns 400", func(t *testing.T) {
		resolver := fixedRate(1)
		w := httptest.NewRecorder()
		HandleGetRate(resolver, validator).ServeHTTP(w, newRequest("USD", "XYZ"))

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
		if resolver.calls != 0 {
			t.Errorf("Expected resolver not to be called")
		}
	})

	t.Run("same currency returns 400", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleGetRate(fixedRate(1), validator).ServeHTTP(w, newRequest("GBP", "gbp"))

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("rate not found returns 404", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleGetRate(failingResolver(service.ErrRateNotFound), validator).ServeHTTP(w, newRequest("BRL", "JPY"))

		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
		if got := decodeError(t, w); got != "Conversion rate not found for BRL to JPY" {
			t.Errorf("Unexpected error '%s'", got)
		}
	})

	t.Run("provider unavailable returns 503", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleGetRate(failingResolver(service.ErrResolutionUnavailable), validator).ServeHTTP(w, newRequest("USD", "BRL"))

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503, got %d", w.Code)
		}
	})
}

func TestHandleWarmRates(t *testing.T) {
	logger := zap.NewNop().Sugar()
	validator := newTestValidator()

	t.Run("valid base returns 202", func(t *testing.T) {
		enqueuer := &mockEnqueuer{
			enqueueFunc: func(ctx context.Context, base string) (string, error) {
				if base != "EUR" {
					t.Errorf("Expected base EUR, got %s", base)
				}
				return "task-123", nil
			},
		}

		req := httptest.NewRequest(http.MethodPost, "/rates/warm", bytes.NewBufferString(`{"base":" eur "}`))
		w := httptest.NewRecorder()

		HandleWarmRates(enqueuer, validator, logger).ServeHTTP(w, req)

		if w.Code != http.StatusAccepted {
			t.Fatalf("Expected status 202, got %d", w.Code)
		}

		var resp WarmResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if resp.TaskID != "task-123" || resp.Base != "EUR" {
			t.Errorf("Unexpected response: %+v", resp)
		}
	})

	t.Run("unsupported base returns 400", func(t *testing.T) {
		enqueuer := &mockEnqueuer{
			enqueueFunc: func(ctx context.Context, base string) (string, error) {
				t.Error("Expected enqueue not to be called")
				return "", nil
			},
		}

		req := httptest.NewRequest(http.MethodPost, "/rates/warm", bytes.NewBufferString(`{"base":"XYZ"}`))
		w := httptest.NewRecorder()

		HandleWarmRates(enqueuer, validator, logger).ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("malformed json returns 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/rates/warm", bytes.NewBufferString(`not json`))
		w := httptest.NewRecorder()

		HandleWarmRates(&mockEnqueuer{}, validator, logger).ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
		if got := decodeError(t, w); got != "Invalid JSON in request body" {
			t.Errorf("Unexpected error '%s'", got)
		}
	})

	t.Run("enqueue failure returns 500", func(t *testing.T) {
		enqueuer := &mockEnqueuer{
			enqueueFunc: func(ctx context.Context, base string) (string, error) {
				return "", errors.New("redis down")
			},
		}

		req := httptest.NewRequest(http.MethodPost, "/rates/warm", bytes.NewBufferString(`{"base":"USD"}`))
		w := httptest.NewRecorder()

		HandleWarmRates(enqueuer, validator, logger).ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("Expected status 500, got %d", w.Code)
		}
	})
}

func TestHandleHealth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	HandleHealth("rate-service", zap.NewNop().Sugar()).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Status != "healthy" || resp.Service != "rate-service" {
		t.Errorf("Unexpected response: %+v", resp)
	}
	if resp.Timestamp == "" {
		t.Error("Expected timestamp to be present")
	}
}

func TestHandleHealthz(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	HandleHealthz().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", w.Body.String())
	}
}

func TestHandleReadyz(t *testing.T) {
	ok := PingFunc(func(ctx context.Context) error { return nil })
	down := PingFunc(func(ctx context.Context) error { return errors.New("connection refused") })

	t.Run("all dependencies ready returns 200", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		w := httptest.NewRecorder()

		HandleReadyz(Dependency{Name: "Store", Pinger: ok}, Dependency{Name: "Database", Pinger: ok}).ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
	})

	t.Run("failing dependency returns 503", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		w := httptest.NewRecorder()

		HandleReadyz(Dependency{Name: "Store", Pinger: ok}, Dependency{Name: "Redis", Pinger: down}).ServeHTTP(w, req)

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503, got %d", w.Code)
		}
		if got := decodeError(t, w); got != "Redis not ready" {
			t.Errorf("Expected error 'Redis not ready', got '%s'", got)
		}
	})

	t.Run("nil pinger is skipped", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		w := httptest.NewRecorder()

		HandleReadyz(Dependency{Name: "Database"}).ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
	})
}
