package testkit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

// endpoint is a started (or externally provided) dependency and the address to reach it.
type endpoint struct {
	container testcontainers.Container
	addr      string
}

func (e *endpoint) terminate(ctx context.Context) error {
	if e == nil || e.container == nil {
		return nil
	}
	return e.container.Terminate(ctx)
}

func startPostgres(ctx context.Context, cfg *Config) (*endpoint, error) {
	if cfg.PGDSN != "" {
		return &endpoint{addr: cfg.PGDSN}, nil
	}

	ctr, err := postgres.Run(ctx,
		cfg.PGImage,
		postgres.WithDatabase(UniqueName("rates")),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategyAndDeadline(cfg.StartupTimeout,
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("get postgres connection string: %w", err)
	}
	return &endpoint{container: ctr, addr: dsn}, nil
}

func startRedis(ctx context.Context, cfg *Config) (*endpoint, error) {
	if cfg.RedisAddr != "" {
		return &endpoint{addr: cfg.RedisAddr}, nil
	}

	ctr, err := tcredis.Run(ctx, cfg.RedisImage)
	if err != nil {
		return nil, fmt.Errorf("start redis container: %w", err)
	}

	connStr, err := ctr.ConnectionString(ctx)
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("get redis connection string: %w", err)
	}

	// go-redis and asynq take host:port, not redis:// URLs.
	u, err := url.Parse(connStr)
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("parse redis connection string %q: %w", connStr, err)
	}
	return &endpoint{container: ctr, addr: u.Host}, nil
}

// UniqueName returns prefix followed by a random suffix, e.g. "rates_a1b2c3d4".
// Tests use it for per-test rate tables and key prefixes.
func UniqueName(prefix string) string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return prefix + "_fallback"
	}
	return prefix + "_" + hex.EncodeToString(b)
}
