package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rateservice/internal/api"
	"rateservice/internal/api/middleware"
	"rateservice/internal/auth"
	"rateservice/internal/service"
)

type handlerDeps struct {
	resolver  service.RateResolver
	validator *service.ConversionValidator
	verifier  auth.CredentialVerifier
	enqueuer  api.WarmEnqueuer
}

func (app *App) initHTTP(deps handlerDeps) {
	r := chi.NewRouter()
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RequestLoggingMiddleware(app.logger))
	r.Use(middleware.MetricsMiddleware(app.metrics))
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", api.HandleHealth(app.cfg.Server.ServiceName, app.logger))
	r.Get("/healthz", api.HandleHealthz())
	r.Get("/readyz", api.HandleReadyz(app.readinessDeps()...))
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/rates/{from}/{to}", api.HandleGetRate(deps.resolver, deps.validator))

	r.Group(func(r chi.Router) {
		if app.cfg.Auth.Enabled {
			r.Use(middleware.BasicAuthMiddleware(deps.verifier, app.cfg.Auth.Realm, app.logger))
		} else {
			app.logger.Warnw("Authentication disabled for conversion endpoints")
		}
		r.Post("/convert", api.HandleConvert(deps.resolver, deps.validator, app.metrics, app.logger))
		r.Post("/rates/warm", api.HandleWarmRates(deps.enqueuer, deps.validator, app.logger))
	})

	if app.cfg.Server.ServeSwagger {
		r.Get("/swagger/*", api.SwaggerUIHandler())
		r.Get("/openapi.json", api.OpenAPISpecHandler())
	}

	if app.cfg.Server.ServeAsynqmon {
		mon := asynqmon.New(asynqmon.Options{
			RootPath:     "/monitoring",
			RedisConnOpt: asynq.RedisClientOpt{Addr: app.cfg.Redis.AsynqAddr},
		})
		r.Handle(mon.RootPath(), mon)
		r.Handle(mon.RootPath()+"/*", mon)
		app.closeHTTP = mon.Close
	}

	app.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func (app *App) readinessDeps() []api.Dependency {
	return []api.Dependency{
		{Name: "Rate store", Pinger: app.rateStore},
		{Name: "Database", Pinger: api.PingFunc(app.db.PingContext)},
		{Name: "Task queue", Pinger: api.PingFunc(func(ctx context.Context) error {
			return app.rdbAsynq.Ping(ctx).Err()
		})},
	}
}
