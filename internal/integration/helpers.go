//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"rateservice/internal/metrics"
	"rateservice/internal/provider"
	"rateservice/internal/store"
	"rateservice/internal/testkit"
)

// resetTestData truncates the users table and flushes the current Redis database.
func resetTestData(t *testing.T) {
	t.Helper()

	_, err := testkit.Global().DB().ExecContext(context.Background(), "TRUNCATE TABLE users")
	if err != nil {
		t.Fatalf("failed to truncate users table: %v", err)
	}

	if err := testkit.Global().Redis().FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("failed to flush redis: %v", err)
	}
}

// testContext returns a context with a 30-second deadline tied to the test's cleanup.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func nopLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// newPostgresStore creates a rate table private to the test and drops it on cleanup.
func newPostgresStore(t *testing.T) (*store.PostgresStore, string) {
	t.Helper()
	ctx := testContext(t)
	db := testkit.Global().DB()
	table := testkit.UniqueName("currency_rates")

	ps := store.NewPostgresStore(db, table)
	if err := ps.EnsureTable(ctx); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	t.Cleanup(func() {
		_, _ = db.ExecContext(context.Background(), `DROP TABLE IF EXISTS "`+table+`"`)
	})
	return ps, table
}

func newRedisStore() *store.RedisStore {
	return store.NewRedisStore(testkit.Global().Redis(), testkit.UniqueName("currency-rates"))
}

// upstream is an httptest rate provider serving fixed tables per base currency.
type upstream struct {
	server *httptest.Server
	tables map[string]map[string]float64
	status atomic.Int32
	calls  atomic.Int32
}

func newUpstream(t *testing.T, tables map[string]map[string]float64) *upstream {
	t.Helper()
	u := &upstream{tables: tables}
	u.status.Store(http.StatusOK)
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		if code := u.status.Load(); code != http.StatusOK {
			w.WriteHeader(int(code))
			return
		}
		base := strings.TrimPrefix(r.URL.Path, "/")
		table, ok := u.tables[base]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"base": base, "date": "2025-12-01", "rates": table})
	}))
	t.Cleanup(u.server.Close)
	return u
}

func (u *upstream) client() *provider.Client {
	return provider.NewClient(u.server.URL, 5)
}

func (u *upstream) failWith(code int) {
	u.status.Store(int32(code))
}
