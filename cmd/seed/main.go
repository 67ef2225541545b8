// Command seed loads the static rate table and the default users.
package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"rateservice/internal/auth"
	"rateservice/internal/config"
	"rateservice/internal/repository"
	"rateservice/internal/store"
)

type seedRate struct {
	From string
	To   string
	Rate float64
}

var staticRates = []seedRate{
	{"USD", "BRL", 5.20},
	{"USD", "EUR", 0.92},
	{"USD", "GBP", 0.79},
	{"USD", "JPY", 150.00},
	{"BRL", "USD", 0.19},
	{"BRL", "EUR", 0.18},
	{"BRL", "GBP", 0.15},
	{"BRL", "JPY", 28.85},
	{"EUR", "USD", 1.09},
	{"EUR", "BRL", 5.65},
	{"EUR", "GBP", 0.86},
	{"EUR", "JPY", 163.04},
	{"GBP", "USD", 1.27},
	{"GBP", "BRL", 6.58},
	{"GBP", "EUR", 1.16},
	{"GBP", "JPY", 189.87},
	{"JPY", "USD", 0.0067},
	{"JPY", "BRL", 0.035},
	{"JPY", "EUR", 0.0061},
	{"JPY", "GBP", 0.0053},
}

var seedUsernames = []string{"admin", "user1", "test"}

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!#$%&*+-=?@^_"

func main() {
	if err := run(os.Args[1:]); err != nil {
		color.Red("✗ %v", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	seedRates := fs.Bool("rates", true, "seed the static rate table")
	seedUsers := fs.Bool("users", true, "seed the default users")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = zapLogger.Sync() }()
	logger := zapLogger.Sugar()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := repository.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to Postgres: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := repository.RunMigrations(ctx, db, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	var errs []error
	if *seedRates {
		if err := runRateSeed(ctx, cfg, db); err != nil {
			errs = append(errs, fmt.Errorf("rate seeding failed: %w", err))
		}
	}
	if *seedUsers {
		if err := runUserSeed(ctx, auth.NewPostgresUserRepository(db)); err != nil {
			errs = append(errs, fmt.Errorf("user seeding failed: %w", err))
		}
	}
	return errors.Join(errs...)
}

func runRateSeed(ctx context.Context, cfg *config.Config, db *sql.DB) error {
	rs, closeStore, err := openRateStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeStore()

	fmt.Printf("Seeding table %s (%s backend, ttl %dh)...\n", cfg.Store.Table, cfg.Store.Backend, cfg.Store.TTLHours)

	added := 0
	for _, r := range staticRates {
		if err := rs.Upsert(ctx, r.From, r.To, r.Rate, cfg.Store.TTLHours); err != nil {
			color.Red("✗ Failed to add %s -> %s: %v", r.From, r.To, err)
			continue
		}
		added++
		color.Green("✓ Added: %s -> %s = %s", r.From, r.To, strconv.FormatFloat(r.Rate, 'f', -1, 64))
	}

	if added != len(staticRates) {
		return fmt.Errorf("%d of %d rates written", added, len(staticRates))
	}
	color.Green("\nTotal of %d rates added to table %s", added, cfg.Store.Table)
	return nil
}

func openRateStore(ctx context.Context, cfg *config.Config, db *sql.DB) (store.RateStore, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.CacheAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect to Redis (cache, %s): %w", cfg.Redis.CacheAddr, err)
		}
		return store.NewRedisStore(client, cfg.Store.Table), func() { _ = client.Close() }, nil
	case config.BackendPostgres:
		ps := store.NewPostgresStore(db, cfg.Store.Table)
		if err := ps.EnsureTable(ctx); err != nil {
			return nil, nil, err
		}
		return ps, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("store backend %q cannot be seeded from a separate process", cfg.Store.Backend)
	}
}

func runUserSeed(ctx context.Context, repo auth.UserRepository) error {
	fmt.Println("Seeding users...")

	var generated []string
	for _, username := range seedUsernames {
		password, fromEnv, err := userPassword(username)
		if err != nil {
			return err
		}
		if _, err := auth.CreateUser(ctx, repo, username, password); err != nil {
			return fmt.Errorf("create user %s: %w", username, err)
		}
		color.Green("✓ User %s created", username)
		if !fromEnv {
			generated = append(generated, fmt.Sprintf("  %s: %s", username, password))
		}
	}

	if len(generated) > 0 {
		color.Yellow("\nGenerated passwords (store them now, they are not shown again):")
		fmt.Println(strings.Join(generated, "\n"))
	}
	return nil
}

func userPassword(username string) (string, bool, error) {
	if p := os.Getenv("SEED_USER_" + strings.ToUpper(username) + "_PASSWORD"); p != "" {
		return p, true, nil
	}

	length := 16
	if v, err := strconv.Atoi(os.Getenv("SEED_PASSWORD_LENGTH")); err == nil && v > 0 {
		length = v
	}
	p, err := generatePassword(length)
	return p, false, err
}

func generatePassword(length int) (string, error) {
	limit := big.NewInt(int64(len(passwordAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
