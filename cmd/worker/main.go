package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backoffice-api/internal/app"
	"github.com/noah-isme/backoffice-api/internal/config"
	"github.com/noah-isme/backoffice-api/internal/jobs"
	"github.com/noah-isme/backoffice-api/internal/obs"
	"github.com/noah-isme/backoffice-api/internal/resilience"
)

func main() {
	cfg := config.MustLoad()
	logger := obs.Component(obs.NewLogger(cfg.LogFormat, cfg.LogLevel), "worker")
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)
	if err := resilience.RegisterMetrics(nil); err != nil {
		logger.Error().Err(err).Msg("register resilience metrics")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	infra, err := app.Connect(connectCtx, cfg, "backoffice-worker", logger)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("connect infrastructure")
	}
	defer infra.Close(logger)

	services, err := app.NewServices(cfg, infra)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise services")
	}

	notifiers, err := app.WorkerNotifiers(cfg, infra, services)
	if err != nil {
		logger.Fatal().Err(err).Msg("configure webhooks")
	}
	handlers := jobs.Handlers{
		Proformas: services.Proformas,
		Notifiers: notifiers,
		Logger:    logger,
	}

	srv := asynq.NewServer(infra.RedisConn, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues:      jobs.Queues(),
		Logger:      asynqLogger{logger},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error().Err(err).Str("task", task.Type()).Msg("task failed")
		}),
	})
	if err := srv.Start(handlers.Mux()); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}

	scheduler := asynq.NewScheduler(infra.RedisConn, &asynq.SchedulerOpts{Logger: asynqLogger{logger}})
	entryID, err := jobs.RegisterExpiry(scheduler, cfg.ProformaExpiryCron)
	if err != nil {
		logger.Fatal().Err(err).Str("cron", cfg.ProformaExpiryCron).Msg("register proforma expiry")
	}
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start scheduler")
	}
	logger.Info().Str("entry", entryID).Int("concurrency", cfg.WorkerConcurrency).Msg("worker started")

	<-ctx.Done()
	logger.Info().Msg("worker stopping")
	scheduler.Shutdown()
	srv.Shutdown()
}

// asynqLogger routes asynq's internal logging through zerolog.
type asynqLogger struct{ l zerolog.Logger }

func (a asynqLogger) Debug(args ...any) { a.l.Debug().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...any)  { a.l.Info().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...any)  { a.l.Warn().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...any) { a.l.Error().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...any) { a.l.Fatal().Msg(fmt.Sprint(args...)) }
