// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/luxfi/adsprint/pkg/config"
)

// Registrar is satisfied by *asynq.Scheduler.
type Registrar interface {
	Register(cronspec string, task *asynq.Task, opts ...asynq.Option) (string, error)
}

// RegisterPeriodic installs the sweep, horizon and expiry jobs.
func RegisterPeriodic(r Registrar, cfg config.Tasks, horizonDays int) ([]string, error) {
	horizon, err := NewHorizonTask(horizonDays)
	if err != nil {
		return nil, err
	}
	jobs := []struct {
		spec  string
		task  *asynq.Task
		queue string
	}{
		{cfg.SweepSpec, asynq.NewTask(TypeAwardSweep, nil), "critical"},
		{cfg.HorizonSpec, horizon, "default"},
		{cfg.ExpirySpec, asynq.NewTask(TypeEntryExpiry, nil), "low"},
	}

	entries := make([]string, 0, len(jobs))
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		id, err := r.Register(j.spec, j.task, asynq.Queue(j.queue), asynq.MaxRetry(0))
		if err != nil {
			return entries, fmt.Errorf("register %s (%s): %w", j.task.Type(), j.spec, err)
		}
		entries = append(entries, id)
	}
	return entries, nil
}

// Loop runs the periodic jobs in process when no Redis is configured.
type Loop struct {
	handlers     *Handlers
	sweepEvery   time.Duration
	housekeeping time.Duration
}

func NewLoop(h *Handlers, sweepEvery time.Duration) *Loop {
	if sweepEvery <= 0 {
		sweepEvery = time.Minute
	}
	return &Loop{handlers: h, sweepEvery: sweepEvery, housekeeping: time.Hour}
}

// Run blocks until ctx is done. The horizon and expiry jobs run once at start
// and then hourly.
func (l *Loop) Run(ctx context.Context) {
	l.RunOnce(ctx)

	sweep := time.NewTicker(l.sweepEvery)
	defer sweep.Stop()
	house := time.NewTicker(l.housekeeping)
	defer house.Stop()

	for {
		select {
		case <-ctx.Done():
			l.handlers.log.Info("task loop stopped")
			return
		case <-sweep.C:
			l.run(ctx, TypeAwardSweep, l.handlers.HandleSweep)
		case <-house.C:
			l.run(ctx, TypeSlotHorizon, l.handlers.HandleHorizon)
			l.run(ctx, TypeEntryExpiry, l.handlers.HandleExpiry)
		}
	}
}

// RunOnce runs every periodic job a single time.
func (l *Loop) RunOnce(ctx context.Context) {
	l.run(ctx, TypeSlotHorizon, l.handlers.HandleHorizon)
	l.run(ctx, TypeEntryExpiry, l.handlers.HandleExpiry)
	l.run(ctx, TypeAwardSweep, l.handlers.HandleSweep)
}

func (l *Loop) run(ctx context.Context, typ string, fn asynq.HandlerFunc) {
	if err := fn(ctx, asynq.NewTask(typ, nil)); err != nil {
		l.handlers.log.Warn("periodic job failed", zap.String("task_type", typ), zap.Error(err))
	}
}
