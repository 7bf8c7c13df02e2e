// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"flag"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/luxfi/adsprint/pkg/app"
	"github.com/luxfi/adsprint/pkg/config"
	"github.com/luxfi/adsprint/pkg/log"
	"github.com/luxfi/adsprint/pkg/tasks"
)

var configPath = flag.String("config", "", "Path to a YAML config file")

func main() {
	flag.Parse()

	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideApp,
			provideRedisOpt,
			registerServerMux,
			registerAsynqServer,
			registerScheduler,
		),
		fx.Invoke(
			registerHandlers,
			runServer,
			runScheduler,
		),
		fxLogger,
	).Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	if cfg.App.Env == "development" {
		return &fxevent.ZapLogger{Logger: logger}
	}
	return fxevent.NopLogger
})

func provideConfig() (*config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	if !cfg.Redis.Enabled() {
		return nil, errors.New("adsprint-worker requires redis.addr")
	}
	return cfg, nil
}

func provideLogger(lc fx.Lifecycle, cfg *config.Config) (log.Logger, *zap.Logger, error) {
	logger, err := log.New(cfg.App.LogLevel, cfg.App.Env == "development")
	if err != nil {
		return nil, nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			logger.Sync() //nolint:errcheck
			return nil
		},
	})
	return logger, log.Zap(logger), nil
}

func provideApp(lc fx.Lifecycle, cfg *config.Config, logger log.Logger) (*app.App, error) {
	a, err := app.New(context.Background(), cfg, logger.With(zap.String("process", "worker")))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return a.Close()
		},
	})
	return a, nil
}

func provideRedisOpt(cfg *config.Config) asynq.RedisConnOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

func registerServerMux() *asynq.ServeMux {
	return asynq.NewServeMux()
}

func registerAsynqServer(cfg *config.Config, opt asynq.RedisConnOpt, logger *zap.Logger) *asynq.Server {
	return asynq.NewServer(opt, asynq.Config{
		Concurrency:    cfg.Tasks.Concurrency,
		RetryDelayFunc: asynq.DefaultRetryDelayFunc,
		Queues:         tasks.Queues,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error("asynq task failed", zap.String("task_type", task.Type()), zap.Error(err))
		}),
	})
}

func registerScheduler(cfg *config.Config, opt asynq.RedisConnOpt, logger *zap.Logger) *asynq.Scheduler {
	return asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Location: cfg.Location(),
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				logger.Warn("periodic task not enqueued", zap.Error(err))
			}
		},
	})
}

func registerHandlers(mux *asynq.ServeMux, a *app.App) {
	a.Tasks.Register(mux)
}

func runServer(lc fx.Lifecycle, server *asynq.Server, mux *asynq.ServeMux, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := server.Start(mux); err != nil {
				return err
			}
			logger.Info("asynq server started")
			return nil
		},
		OnStop: func(context.Context) error {
			server.Shutdown()
			return nil
		},
	})
}

func runScheduler(lc fx.Lifecycle, scheduler *asynq.Scheduler, cfg *config.Config, logger *zap.Logger) error {
	entries, err := tasks.RegisterPeriodic(scheduler, cfg.Tasks, cfg.Auction.HorizonDays)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := scheduler.Start(); err != nil {
				return err
			}
			logger.Info("asynq scheduler started", zap.Strings("entries", entries))
			return nil
		},
		OnStop: func(context.Context) error {
			scheduler.Shutdown()
			return nil
		},
	})
	return nil
}
