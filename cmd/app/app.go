package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rateservice/internal/auth"
	"rateservice/internal/config"
	"rateservice/internal/metrics"
	"rateservice/internal/provider"
	"rateservice/internal/repository"
	"rateservice/internal/service"
	"rateservice/internal/store"
	"rateservice/internal/worker"
)

// App holds all application dependencies and manages their lifecycle.
type App struct {
	cfg         *config.Config
	logger      *zap.SugaredLogger
	db          *sql.DB
	rdbCache    *redis.Client
	rdbAsynq    *redis.Client
	rateStore   store.RateStore
	memStore    *store.MemoryStore
	sweeper     *store.Sweeper
	metrics     *metrics.Metrics
	asynqClient *asynq.Client
	asynqServer *asynq.Server
	asynqMux    *asynq.ServeMux
	httpServer  *http.Server
	closeHTTP   func() error
}

// NewApp initializes all dependencies and returns a ready-to-run App.
func NewApp(cfg *config.Config, logger *zap.SugaredLogger) (*App, error) {
	app := &App{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(prometheus.DefaultRegisterer),
	}

	if err := app.initStorage(); err != nil {
		_ = app.close()
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.close()
		return nil, err
	}

	return app, nil
}

// close releases database and Redis connections
func (app *App) close() error {
	var errs []error
	if app.closeHTTP != nil {
		if err := app.closeHTTP(); err != nil {
			errs = append(errs, fmt.Errorf("http extras close: %w", err))
		}
	}
	if app.asynqClient != nil {
		if err := app.asynqClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("asynq client close: %w", err))
		}
	}
	if app.rdbAsynq != nil {
		if err := app.rdbAsynq.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis asynq close: %w", err))
		}
	}
	if app.rdbCache != nil {
		if err := app.rdbCache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis cache close: %w", err))
		}
	}
	if app.memStore != nil {
		app.memStore.Close()
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("db close: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (app *App) initStorage() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := repository.NewPostgresDB(ctx, &app.cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to Postgres: %w", err)
	}
	app.db = db

	if err := repository.RunMigrations(ctx, app.db, app.logger); err != nil {
		return fmt.Errorf("run DB migrations: %w", err)
	}

	rs, err := app.newRateStore(ctx)
	if err != nil {
		return err
	}
	app.rateStore = rs
	app.logger.Infow("Rate store ready",
		"backend", app.cfg.Store.Backend,
		"table", app.cfg.Store.Table,
		"ttl_hours", app.cfg.Store.TTLHours,
	)

	return nil
}

func (app *App) newRateStore(ctx context.Context) (store.RateStore, error) {
	switch app.cfg.Store.Backend {
	case config.BackendRedis:
		app.rdbCache = redis.NewClient(&redis.Options{
			Addr: app.cfg.Redis.CacheAddr,
		})
		if err := app.rdbCache.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect to Redis (cache, %s): %w", app.cfg.Redis.CacheAddr, err)
		}
		app.logger.Infow("Connected to Redis cache", "addr", app.cfg.Redis.CacheAddr)
		return store.NewRedisStore(app.rdbCache, app.cfg.Store.Table), nil

	case config.BackendPostgres:
		ps := store.NewPostgresStore(app.db, app.cfg.Store.Table)
		if err := ps.EnsureTable(ctx); err != nil {
			return nil, fmt.Errorf("prepare rate table %q: %w", app.cfg.Store.Table, err)
		}
		interval := time.Duration(app.cfg.Store.SweepIntervalSec) * time.Second
		app.sweeper = store.NewSweeper(ps, interval, app.logger)
		return ps, nil

	case config.BackendMemory:
		ms, err := store.NewMemoryStore(app.cfg.Store.MemoryMaxItems)
		if err != nil {
			return nil, err
		}
		app.memStore = ms
		return ms, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", app.cfg.Store.Backend)
	}
}

func (app *App) initServices() error {
	redisOpt := asynq.RedisClientOpt{Addr: app.cfg.Redis.AsynqAddr}

	app.rdbAsynq = redis.NewClient(&redis.Options{Addr: app.cfg.Redis.AsynqAddr})
	app.asynqClient = asynq.NewClient(redisOpt)
	app.asynqServer = asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency:              app.cfg.Worker.Concurrency,
			DelayedTaskCheckInterval: time.Duration(app.cfg.Worker.CheckIntervalSec) * time.Second,
			TaskCheckInterval:        time.Duration(app.cfg.Worker.CheckIntervalSec) * time.Second,
			Logger:                   app.logger,
		},
	)
	app.logger.Infow("Asynq configured", "addr", app.cfg.Redis.AsynqAddr)

	rateProvider := provider.NewClient(app.cfg.Provider.BaseURL, app.cfg.Provider.TimeoutSec)
	resolver := service.NewResolver(
		app.rateStore,
		rateProvider,
		app.cfg.Store.TTLHours,
		app.logger,
		app.metrics,
	)
	warmer := service.NewWarmer(
		app.rateStore,
		rateProvider,
		app.cfg.Conversion.CurrencyList(),
		app.cfg.Store.TTLHours,
		app.logger,
		app.metrics,
	)
	validator := service.NewConversionValidator(app.cfg.Conversion)
	verifier := auth.NewBcryptVerifier(auth.NewPostgresUserRepository(app.db), app.logger)
	asynqEnqueuer := worker.NewAsynqEnqueuer(
		app.asynqClient,
		app.cfg.Worker.MaxRetry,
		time.Duration(app.cfg.Worker.TimeoutSec)*time.Second,
	)

	app.asynqMux = asynq.NewServeMux()
	app.asynqMux.HandleFunc(worker.TaskTypeWarmRates, worker.NewWarmRatesHandler(warmer, app.logger))

	app.initHTTP(handlerDeps{
		resolver:  resolver,
		validator: validator,
		verifier:  verifier,
		enqueuer:  asynqEnqueuer,
	})
	return nil
}

// Run starts the HTTP server, the Asynq worker and the expiry sweeper,
// blocking until the context is canceled.
func (app *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if app.sweeper != nil {
		if err := app.sweeper.Start(ctx); err != nil {
			return fmt.Errorf("start expired rate sweeper: %w", err)
		}
		app.logger.Infow("Expired rate sweeper started", "interval_sec", app.cfg.Store.SweepIntervalSec)
	}

	g.Go(func() error {
		app.logger.Infow("Starting Asynq worker server")
		if err := app.asynqServer.Start(app.asynqMux); err != nil {
			return fmt.Errorf("asynq worker failed to start: %w", err)
		}

		<-ctx.Done()
		return nil
	})

	g.Go(func() error {
		app.logger.Infow("HTTP server listening", "port", app.cfg.Server.Port)
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Triggered by signal or by the failure of another component.
	g.Go(func() error {
		<-ctx.Done()
		return app.shutdown()
	})

	return g.Wait()
}

// shutdown performs ordered teardown: HTTP server, Asynq worker, sweeper, connections.
func (app *App) shutdown() error {
	app.logger.Infow("Shutting down server...")

	var errs []error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		app.logger.Errorw("HTTP server shutdown error", "error", err)
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	// In-flight warm-ups finish before the store connections close.
	app.asynqServer.Shutdown()

	if app.sweeper != nil {
		if err := app.sweeper.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("sweeper shutdown: %w", err))
		}
	}

	if err := app.close(); err != nil {
		app.logger.Errorw("Connection cleanup errors", "error", err)
		errs = append(errs, err)
	}

	app.logger.Infow("Shutdown complete")
	return errors.Join(errs...)
}
