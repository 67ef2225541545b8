package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"rateservice/internal/auth"
	"rateservice/internal/metrics"
	"rateservice/internal/reqctx"
)

func TestRequestIDMiddleware(t *testing.T) {
	t.Run("generates UUID when no request ID provided", func(t *testing.T) {
		handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := reqctx.RequestID(r.Context())
			if reqID == "" {
				t.Error("Expected request ID in context, got empty string")
			}
			if _, err := uuid.Parse(reqID); err != nil {
				t.Errorf("Expected valid UUID, got: %s", reqID)
			}
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		respReqID := w.Header().Get(headerRequestID)
		if respReqID == "" {
			t.Error("Expected X-Request-Id in response header")
		}
		if _, err := uuid.Parse(respReqID); err != nil {
			t.Errorf("Expected valid UUID in response header, got: %s", respReqID)
		}
	})

	t.Run("uses provided request ID", func(t *testing.T) {
		providedID := "test-request-id-123"
		handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := reqctx.RequestID(r.Context())
			if reqID != providedID {
				t.Errorf("Expected request ID %s, got %s", providedID, reqID)
			}
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(headerRequestID, providedID)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		respReqID := w.Header().Get(headerRequestID)
		if respReqID != providedID {
			t.Errorf("Expected X-Request-Id %s in response, got %s", providedID, respReqID)
		}
	})
}

func TestRequestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	handler := RequestIDMiddleware(RequestLoggingMiddleware(zap.New(core).Sugar())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("OK"))
	})))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(headerRequestID, "rid")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusTeapot {
		t.Errorf("Expected status 418, got %d", w.Code)
	}
	entries := logs.FilterMessage("HTTP request").All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "rid" {
		t.Errorf("Expected request_id rid, got %v", fields["request_id"])
	}
	if fields["status"] != int64(http.StatusTeapot) {
		t.Errorf("Expected status 418 in log, got %v", fields["status"])
	}
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(MetricsMiddleware(m))
	r.Get("/rates/{from}/{to}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {})

	for _, path := range []string{"/rates/USD/BRL", "/rates/EUR/GBP", "/metrics"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/rates/{from}/{to}", http.MethodGet, "4xx"))
	if got != 2 {
		t.Errorf("Expected 2 requests recorded for route pattern, got %v", got)
	}
	if n := testutil.CollectAndCount(m.HTTPRequestsTotal); n != 1 {
		t.Errorf("Expected only one label set, got %d", n)
	}
}

type verifierFunc func(ctx context.Context, username, password string) (*auth.Identity, error)

func (f verifierFunc) Verify(ctx context.Context, username, password string) (*auth.Identity, error) {
	return f(ctx, username, password)
}

func TestBasicAuthMiddleware(t *testing.T) {
	verifier := verifierFunc(func(_ context.Context, username, password string) (*auth.Identity, error) {
		switch {
		case username == "broken":
			return nil, errors.New("db down")
		case username == "admin" && password == "secret":
			return &auth.Identity{UserID: "u1", Username: "admin"}, nil
		}
		return nil, auth.ErrInvalidCredentials
	})

	var seen *auth.Identity
	handler := BasicAuthMiddleware(verifier, "rate-service", zap.NewNop().Sugar())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		user, pass string
		noAuth     bool
		wantStatus int
		wantHeader bool
	}{
		{name: "missing header", noAuth: true, wantStatus: http.StatusUnauthorized, wantHeader: true},
		{name: "wrong password", user: "admin", pass: "nope", wantStatus: http.StatusUnauthorized, wantHeader: true},
		{name: "store failure", user: "broken", pass: "x", wantStatus: http.StatusInternalServerError},
		{name: "valid", user: "admin", pass: "secret", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodPost, "/convert", nil)
			if !tt.noAuth {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			hasHeader := w.Header().Get("WWW-Authenticate") != ""
			if hasHeader != tt.wantHeader {
				t.Errorf("Expected WWW-Authenticate present=%v, got %v", tt.wantHeader, hasHeader)
			}
			if tt.wantStatus == http.StatusOK && (seen == nil || seen.Username != "admin") {
				t.Errorf("Expected identity in context, got %+v", seen)
			}
		})
	}
}

func TestResponseWriter(t *testing.T) {
	w := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: w, status: 0, size: 0}

	rw.WriteHeader(http.StatusCreated)
	if rw.status != http.StatusCreated {
		t.Errorf("Expected status %d, got %d", http.StatusCreated, rw.status)
	}

	data := []byte("test data")
	n, err := rw.Write(data)
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if n != len(data) {
		t.Errorf("Expected %d bytes written, got %d", len(data), n)
	}
	if rw.size != len(data) {
		t.Errorf("Expected size %d, got %d", len(data), rw.size)
	}
}
