package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ansel/internal/interfaces/scheduler"
	"ansel/internal/shared/config"
	"ansel/internal/shared/logger"
	"ansel/internal/shared/telemetry"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "application error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry := telemetry.ShutdownFunc(telemetry.Noop)
	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err = telemetry.Init(ctx, telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			Environment:  cfg.Env,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			MetricsPort:  cfg.Telemetry.MetricsPort,
		}, log)
		if err != nil {
			return err
		}
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			log.Error("failed to shut down telemetry", zap.Error(err))
		}
	}()

	deps, err := NewDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.NewScheduler(scheduler.Config{
			Spec:         cfg.Scheduler.Spec,
			WorkerCount:  cfg.Scheduler.WorkerCount,
			JobDelay:     cfg.Scheduler.JobDelay,
			QueueSize:    cfg.Scheduler.QueueSize,
			RunOnStartup: cfg.Scheduler.RunOnStartup,
		}, scheduler.UserSyncJobs(deps.ItemRepo, deps.SyncServices(log)), log)
		if err != nil {
			return err
		}
		sched.Start()
	} else {
		log.Info("scheduler is disabled")
	}

	handler := SetupRoutes(deps, cfg, log)
	srv, redirectSrv, serveErr := StartServers(NewServerConfigFromConfig(handler, cfg), log)

	select {
	case <-ctx.Done():
	case err = <-serveErr:
		log.Error("server failed", zap.Error(err))
	}

	GracefulShutdown(srv, redirectSrv, sched, shutdownTimeout, log)
	return err
}
