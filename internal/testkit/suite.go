package testkit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"rateservice/internal/config"
	"rateservice/internal/repository"
)

// Suite owns the integration infrastructure: the containers, a migrated
// Postgres handle and a Redis client.
type Suite struct {
	mu    sync.Mutex
	cfg   Config
	pg    *endpoint
	redis *endpoint
	db    *sql.DB
	rdb   *redis.Client
	ready bool
}

var (
	globalSuite *Suite
	globalOnce  sync.Once
)

// Global returns the singleton Suite instance.
func Global() *Suite {
	globalOnce.Do(func() {
		globalSuite = &Suite{cfg: LoadConfig()}
	})
	return globalSuite
}

// Setup starts the containers (or uses external overrides), opens the
// database, applies migrations and connects to Redis.
func (s *Suite) Setup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return fmt.Errorf("suite already set up; call Shutdown first")
	}

	pg, err := startPostgres(ctx, &s.cfg)
	if err != nil {
		return fmt.Errorf("setup postgres: %w", err)
	}
	s.pg = pg

	rd, err := startRedis(ctx, &s.cfg)
	if err != nil {
		s.teardownLocked(ctx)
		return fmt.Errorf("setup redis: %w", err)
	}
	s.redis = rd

	db, err := repository.NewPostgresDB(ctx, &config.DatabaseConfig{
		DSN:                pg.addr,
		MaxOpenConns:       5,
		MaxIdleConns:       2,
		ConnMaxLifetimeSec: 60,
	})
	if err != nil {
		s.teardownLocked(ctx)
		return fmt.Errorf("open postgres: %w", err)
	}
	s.db = db

	if err := repository.RunMigrations(ctx, db, zap.NewNop().Sugar()); err != nil {
		s.teardownLocked(ctx)
		return fmt.Errorf("migrate postgres: %w", err)
	}

	s.rdb = redis.NewClient(&redis.Options{Addr: rd.addr})
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		s.teardownLocked(ctx)
		return fmt.Errorf("ping redis: %w", err)
	}

	s.ready = true
	return nil
}

// Shutdown closes connections and terminates containers unless KeepContainers is set.
func (s *Suite) Shutdown(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return
	}
	s.teardownLocked(ctx)
	s.ready = false
}

func (s *Suite) teardownLocked(ctx context.Context) {
	if s.rdb != nil {
		_ = s.rdb.Close()
		s.rdb = nil
	}
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}

	if s.cfg.KeepContainers {
		fmt.Println("RATESVC_TEST_KEEP_CONTAINERS=true, skipping container cleanup")
		if s.pg != nil {
			fmt.Println("  Postgres DSN:", s.pg.addr)
		}
		if s.redis != nil {
			fmt.Println("  Redis Addr:", s.redis.addr)
		}
		return
	}

	if err := s.redis.terminate(ctx); err != nil {
		fmt.Println("warning: failed to terminate redis container:", err)
	}
	if err := s.pg.terminate(ctx); err != nil {
		fmt.Println("warning: failed to terminate postgres container:", err)
	}
	s.pg, s.redis = nil, nil
}

// DB returns the migrated Postgres handle.
func (s *Suite) DB() *sql.DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db
}

// Redis returns the client for the test Redis instance.
func (s *Suite) Redis() *redis.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rdb
}

// RedisAddr returns the host:port address for the test Redis instance.
func (s *Suite) RedisAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.redis == nil {
		return ""
	}
	return s.redis.addr
}

// Run sets up the suite, executes tests, then shuts down. Intended for use in TestMain.
func (s *Suite) Run(m *testing.M) {
	ctx := context.Background()

	if err := s.Setup(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "integration test setup failed: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	s.Shutdown(ctx)
	os.Exit(code)
}

// Run is a package-level convenience that delegates to Global().Run.
func Run(m *testing.M) {
	Global().Run(m)
}
