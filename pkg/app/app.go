// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package app wires configuration, storage and the engine components.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/luxfi/adsprint/pkg/ads"
	"github.com/luxfi/adsprint/pkg/api"
	"github.com/luxfi/adsprint/pkg/auction"
	"github.com/luxfi/adsprint/pkg/clock"
	"github.com/luxfi/adsprint/pkg/config"
	"github.com/luxfi/adsprint/pkg/dedupe"
	"github.com/luxfi/adsprint/pkg/ids"
	"github.com/luxfi/adsprint/pkg/ledger"
	"github.com/luxfi/adsprint/pkg/log"
	"github.com/luxfi/adsprint/pkg/metric"
	"github.com/luxfi/adsprint/pkg/schedule"
	"github.com/luxfi/adsprint/pkg/sprint"
	"github.com/luxfi/adsprint/pkg/storage"
	"github.com/luxfi/adsprint/pkg/tasks"
)

// App is the assembled service.
type App struct {
	Config   *config.Config
	Log      log.Logger
	Clock    clock.Clock
	Registry *prometheus.Registry
	Metrics  *metric.Metrics
	Backend  *storage.Backend
	Redis    redis.UniversalClient

	Auctions *auction.Engine
	Schedule *schedule.Allocator
	Sprints  *sprint.Controller
	Ledger   *ledger.Ledger
	Ads      ads.Store
	Tasks    *tasks.Handlers

	asynq *asynq.Client
	local *tasks.Local
}

type options struct {
	clock    clock.Clock
	backend  *storage.Backend
	registry *prometheus.Registry
	reminder tasks.Reminder
}

type Option func(*options)

func WithClock(c clock.Clock) Option { return func(o *options) { o.clock = c } }

// WithBackend skips opening the configured database.
func WithBackend(b *storage.Backend) Option { return func(o *options) { o.backend = b } }

func WithRegistry(r *prometheus.Registry) Option { return func(o *options) { o.registry = r } }

func WithReminder(r tasks.Reminder) Option { return func(o *options) { o.reminder = r } }

// New builds every component from cfg.
func New(ctx context.Context, cfg *config.Config, logger log.Logger, opts ...Option) (*App, error) {
	o := options{clock: clock.Real}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		// Go and process collectors live on the default registry.
		o.registry = prometheus.NewRegistry()
	}

	a := &App{Config: cfg, Log: logger, Clock: o.clock, Registry: o.registry}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	m, err := metric.NewMetrics(o.registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	a.Metrics = m

	seq, err := ids.NewSequencer(cfg.App.Node)
	if err != nil {
		return nil, fmt.Errorf("snowflake node: %w", err)
	}

	a.Backend = o.backend
	if a.Backend == nil {
		a.Backend, err = storage.Open(ctx, cfg.Database, logger, cfg.App.Env == "development")
		if err != nil {
			return nil, err
		}
	}
	a.Ads = a.Backend.Ads

	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.Redis = rdb
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		logger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
	}

	loc := cfg.Location()

	// Schedule allocator
	allocOpts := []schedule.Option{
		schedule.WithClock(o.clock),
		schedule.WithLogger(logger.With(zap.String("component", "schedule"))),
		schedule.WithMetrics(m),
	}
	if fb := cfg.Schedule.Fallback; fb.Enabled {
		allocOpts = append(allocOpts, schedule.WithFallback(schedule.NewHybridFallback(schedule.FallbackConfig{
			NetworkShare: fb.NetworkShare,
			Provider:     fb.NetworkProvider,
			Unit:         fb.NetworkUnit,
			HouseAdIDs:   fb.HouseAdIDs,
		}, a.Ads)))
	}
	a.Schedule = schedule.NewAllocator(schedule.Config{
		Location:        loc,
		AuctionPriority: cfg.Schedule.AuctionPriority,
	}, a.Backend.Schedule, a.Ads, allocOpts...)

	// Auction engine
	auctionCfg, err := AuctionConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.Auctions = auction.NewEngine(auctionCfg, a.Backend.Slots, a.Schedule,
		auction.WithClock(o.clock),
		auction.WithLogger(logger.With(zap.String("component", "auction"))),
		auction.WithMetrics(m),
		auction.WithSequencer(seq),
		auction.WithAdvertisers(a.Ads),
	)

	// Sprint controller
	a.Sprints = sprint.NewController(sprint.Config{
		Location:          loc,
		AnnouncementDelay: cfg.Sprint.AnnouncementDelay,
		DefaultDuration:   cfg.Sprint.DefaultDuration,
	}, a.Backend.Sprints,
		sprint.WithClock(o.clock),
		sprint.WithLogger(logger.With(zap.String("component", "sprint"))),
	)

	// Reward ledger
	ledgerCfg, err := LedgerConfig(cfg)
	if err != nil {
		return nil, err
	}
	var dd ledger.Deduplicator = dedupe.NewMemory(cfg.Rewards.DedupeTTL, o.clock)
	if a.Redis != nil {
		dd = dedupe.NewRedis(a.Redis, cfg.Rewards.DedupeTTL)
	}

	reminder := o.reminder
	if reminder == nil {
		reminder = tasks.LogReminder{Log: logger}
	}
	var notifier ledger.Notifier
	if cfg.Tasks.Enabled && a.Redis != nil {
		a.asynq = asynq.NewClientFromRedisClient(a.Redis)
		notifier = tasks.NewClient(a.asynq, cfg.Tasks.AnnounceQueue, logger)
	} else {
		a.local = tasks.NewLocal(reminder, o.clock, logger)
		notifier = a.local
	}

	a.Ledger = ledger.New(ledgerCfg, a.Backend.Ledger, a.Ads, a.Sprints,
		ledger.WithClock(o.clock),
		ledger.WithLogger(logger.With(zap.String("component", "ledger"))),
		ledger.WithMetrics(m),
		ledger.WithSequencer(seq),
		ledger.WithDeduplicator(dd),
		ledger.WithNotifier(notifier),
	)

	a.Tasks = tasks.NewHandlers(a.Auctions, a.Schedule, reminder, cfg.Auction.HorizonDays, logger)

	ok = true
	return a, nil
}

// API returns the HTTP server for the app's components. opts are applied
// after the configured ones.
func (a *App) API(opts ...api.Option) *api.Server {
	return api.New(api.Deps{
		Auctions: a.Auctions,
		Schedule: a.Schedule,
		Sprints:  a.Sprints,
		Ledger:   a.Ledger,
		Ads:      a.Ads,
	}, append([]api.Option{
		api.WithClock(a.Clock),
		api.WithLogger(a.Log.With(zap.String("component", "api"))),
		api.WithMetrics(a.Metrics),
		api.WithLocation(a.Config.Location()),
		api.WithCORSOrigins(a.Config.HTTP.CORSOrigins),
		api.WithReleaseMode(a.Config.App.Env == "production"),
	}, opts...)...)
}

// Loop returns the in-process job loop used when asynq is off.
func (a *App) Loop() *tasks.Loop {
	return tasks.NewLoop(a.Tasks, a.Config.Auction.SweepInterval)
}

// AsynqEnabled reports whether jobs go through Redis.
func (a *App) AsynqEnabled() bool {
	return a.asynq != nil
}

// Ready checks the backing stores.
func (a *App) Ready(ctx context.Context) error {
	if a.Backend != nil {
		if err := a.Backend.Ping(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases connections and cancels pending local reminders.
func (a *App) Close() error {
	var errList []error
	if a.local != nil {
		a.local.Stop()
	}
	if a.asynq != nil {
		errList = append(errList, a.asynq.Close())
	}
	if a.Redis != nil {
		errList = append(errList, a.Redis.Close())
	}
	if a.Backend != nil {
		errList = append(errList, a.Backend.Close())
	}
	return errors.Join(errList...)
}

// AuctionConfig converts the auction section.
func AuctionConfig(cfg *config.Config) (auction.Config, error) {
	c := cfg.Auction
	out := auction.Config{
		ClosingWindow:  c.ClosingWindow,
		Location:       cfg.Location(),
		SlotHours:      c.SlotHours,
		SlotLength:     c.SlotLength,
		PrimeStartHour: c.PrimeStartHour,
		PrimeEndHour:   c.PrimeEndHour,
	}
	var err error
	for _, p := range []struct {
		key string
		val string
		dst *decimal.Decimal
	}{
		{"auction.prime_base_price", c.PrimeBasePrice, &out.PrimeBasePrice},
		{"auction.prime_min_impression_price", c.PrimeMinImpressionPrice, &out.PrimeMinImpressionPrice},
		{"auction.base_price", c.BasePrice, &out.BasePrice},
		{"auction.min_impression_price", c.MinImpressionPrice, &out.MinImpressionPrice},
	} {
		if *p.dst, err = parseDecimal(p.key, p.val); err != nil {
			return out, err
		}
	}
	return out, nil
}

// LedgerConfig converts the rewards section.
func LedgerConfig(cfg *config.Config) (ledger.Config, error) {
	r := cfg.Rewards
	out := ledger.Config{
		MinViewDuration:    r.MinViewDuration,
		BaseTicketsPerView: r.BaseTicketsPerView,
		MaxViewsPerSprint:  r.MaxViewsPerSprint,
	}
	var err error
	if out.DefaultMultiplier, err = parseDecimal("rewards.default_multiplier", r.DefaultMultiplier); err != nil {
		return out, err
	}
	if out.WinnerMultiplier, err = parseDecimal("rewards.winner_multiplier", r.WinnerMultiplier); err != nil {
		return out, err
	}
	if out.LoserIncrease, err = parseDecimal("rewards.loser_increase", r.LoserIncrease); err != nil {
		return out, err
	}
	return out, nil
}

func parseDecimal(key, v string) (decimal.Decimal, error) {
	if v == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
