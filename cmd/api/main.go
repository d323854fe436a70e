package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/backoffice-api/internal/app"
	"github.com/noah-isme/backoffice-api/internal/config"
	"github.com/noah-isme/backoffice-api/internal/db"
	"github.com/noah-isme/backoffice-api/internal/health"
	"github.com/noah-isme/backoffice-api/internal/obs"
	"github.com/noah-isme/backoffice-api/internal/ratelimit"
	"github.com/noah-isme/backoffice-api/internal/resilience"
)

func main() {
	cfg := config.MustLoad()

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)
	if err := resilience.RegisterMetrics(nil); err != nil {
		logger.Error().Err(err).Msg("register resilience metrics")
	}

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "backoffice-api",
			Endpoint:      cfg.OTLPEndpoint,
			Exporter:      cfg.TracingExporter,
			SamplingRatio: cfg.TracingSampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}
	cfg.TracingEnabled = tracingEnabled

	if err := db.MigrateUp(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	infra, err := app.Connect(connectCtx, cfg, "backoffice-api", logger)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("connect infrastructure")
	}
	defer infra.Close(logger)

	services, err := app.NewServices(cfg, infra)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise services")
	}

	limiter, err := ratelimit.New(infra.Redis, cfg.RateLimit, "bo:ratelimit")
	if err != nil {
		logger.Fatal().Err(err).Str("rate", cfg.RateLimit).Msg("initialise rate limiter")
	}

	inspector := asynq.NewInspector(infra.RedisConn)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Error().Err(err).Msg("close task inspector")
		}
	}()

	var httpMetrics *obs.HTTPMetrics
	if cfg.MetricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBuckets), nil)
	}

	router := app.NewRouter(cfg, app.RouterDeps{
		Services: services,
		Redis:    infra.Redis,
		Health:   health.Probes{DB: infra.DB, Redis: infra.Redis},
		Limiter:  limiter,
		Jobs:     inspector,
		Metrics:  httpMetrics,
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	case <-ctx.Done():
	}

	health.SetReady(false)
	logger.Info().Msg("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}
