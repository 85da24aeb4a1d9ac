// Package main provides the classification worker entry point.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/account-tracker/internal/config"
	"github.com/account-tracker/internal/crm"
	"github.com/account-tracker/internal/logging"
	"github.com/account-tracker/internal/status"
	"github.com/account-tracker/internal/storage"
	"github.com/account-tracker/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.L().WithError(err).Fatal("failed to load configuration")
	}

	logging.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger := logging.L()
	logger.Info("account tracker worker starting")

	if err := cfg.ValidateWorker(); err != nil {
		logger.WithError(err).Fatal("invalid worker configuration")
	}

	postgres, err := storage.NewPostgresDB(&cfg.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to Postgres")
	}
	defer postgres.Close()

	redis, err := storage.NewRedisCache(&cfg.Redis)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("database connections established")

	roster := crm.NewRosterLoader(postgres, cfg.CRM)
	statuses := status.NewClient(cfg.StatusAPI.URL, cfg.StatusAPI.Token, cfg.StatusAPI.Timeout, cfg.Worker.RateDelay)
	buckets := storage.NewBucketRepository(postgres, cfg.Tables)
	baselines := storage.NewBaselineRepository(postgres, cfg.Tables)
	runStatus := storage.NewRunStatusStore(redis, 0)

	engine, err := worker.NewEngine(&worker.EngineConfig{
		Roster:    roster,
		Statuses:  statuses,
		Buckets:   buckets,
		Baselines: baselines,
		Publisher: runStatus,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create engine")
	}

	scheduler, err := worker.NewScheduler(&worker.SchedulerConfig{
		Engine:        engine,
		Baselines:     baselines,
		RunNowOnStart: cfg.Worker.RunNowOnStart,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create scheduler")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.WithField("signal", sig.String()).Info("shutting down")
		cancel()
	}()

	if err := scheduler.Run(ctx); err != nil && err != context.Canceled {
		logger.WithError(err).Fatal("scheduler stopped")
	}
	logger.Info("worker stopped")
}
