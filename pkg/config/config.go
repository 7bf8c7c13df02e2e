// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ADSPRINT_DATABASE_DRIVER.
const EnvPrefix = "ADSPRINT"

type Config struct {
	App struct {
		Env      string `mapstructure:"env"`
		LogLevel string `mapstructure:"log_level"`
		Timezone string `mapstructure:"timezone"`
		Node     int64  `mapstructure:"node"`
	} `mapstructure:"app"`

	HTTP struct {
		Addr            string        `mapstructure:"addr"`
		OpsAddr         string        `mapstructure:"ops_addr"`
		CORSOrigins     []string      `mapstructure:"cors_origins"`
		ReadTimeout     time.Duration `mapstructure:"read_timeout"`
		WriteTimeout    time.Duration `mapstructure:"write_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"http"`

	Database Database `mapstructure:"database"`

	Redis Redis `mapstructure:"redis"`

	Auction  Auction  `mapstructure:"auction"`
	Schedule Schedule `mapstructure:"schedule"`
	Rewards  Rewards  `mapstructure:"rewards"`
	Sprint   Sprint   `mapstructure:"sprint"`
	Tasks    Tasks    `mapstructure:"tasks"`
}

type Database struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`
	Metrics         bool          `mapstructure:"metrics"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled reports whether a Redis address is configured.
func (r Redis) Enabled() bool { return r.Addr != "" }

type Auction struct {
	ClosingWindow           time.Duration `mapstructure:"closing_window"`
	HorizonDays             int           `mapstructure:"horizon_days"`
	SlotHours               []int         `mapstructure:"slot_hours"`
	SlotLength              time.Duration `mapstructure:"slot_length"`
	PrimeStartHour          int           `mapstructure:"prime_start_hour"`
	PrimeEndHour            int           `mapstructure:"prime_end_hour"`
	PrimeBasePrice          string        `mapstructure:"prime_base_price"`
	PrimeMinImpressionPrice string        `mapstructure:"prime_min_impression_price"`
	BasePrice               string        `mapstructure:"base_price"`
	MinImpressionPrice      string        `mapstructure:"min_impression_price"`
	SweepInterval           time.Duration `mapstructure:"sweep_interval"`
}

type Schedule struct {
	AuctionPriority int      `mapstructure:"auction_priority"`
	Fallback        Fallback `mapstructure:"fallback"`
}

type Fallback struct {
	Enabled         bool     `mapstructure:"enabled"`
	NetworkShare    float64  `mapstructure:"network_share"`
	NetworkProvider string   `mapstructure:"network_provider"`
	NetworkUnit     string   `mapstructure:"network_unit"`
	HouseAdIDs      []string `mapstructure:"house_ad_ids"`
}

type Rewards struct {
	MinViewDuration    time.Duration `mapstructure:"min_view_duration"`
	BaseTicketsPerView int64         `mapstructure:"base_tickets_per_view"`
	DefaultMultiplier  string        `mapstructure:"default_multiplier"`
	WinnerMultiplier   string        `mapstructure:"winner_multiplier"`
	LoserIncrease      string        `mapstructure:"loser_increase"`
	MaxViewsPerSprint  int           `mapstructure:"max_views_per_sprint"`
	DedupeTTL          time.Duration `mapstructure:"dedupe_ttl"`
}

type Sprint struct {
	AnnouncementDelay time.Duration `mapstructure:"announcement_delay"`
	DefaultDuration   time.Duration `mapstructure:"default_duration"`
}

type Tasks struct {
	Enabled       bool   `mapstructure:"enabled"`
	Concurrency   int    `mapstructure:"concurrency"`
	SweepSpec     string `mapstructure:"sweep_spec"`
	HorizonSpec   string `mapstructure:"horizon_spec"`
	ExpirySpec    string `mapstructure:"expiry_spec"`
	AnnounceQueue string `mapstructure:"announce_queue"`
}

// SetDefaults registers every known key so env overrides and Unmarshal see it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.timezone", "UTC")
	v.SetDefault("app.node", 1)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.ops_addr", ":9090")
	v.SetDefault("http.cors_origins", []string{"*"})
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.slow_threshold", 200*time.Millisecond)
	v.SetDefault("database.metrics", true)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auction.closing_window", 24*time.Hour)
	v.SetDefault("auction.horizon_days", 14)
	v.SetDefault("auction.slot_hours", []int{14, 16, 20, 22})
	v.SetDefault("auction.slot_length", time.Hour)
	v.SetDefault("auction.prime_start_hour", 19)
	v.SetDefault("auction.prime_end_hour", 23)
	v.SetDefault("auction.prime_base_price", "1000000")
	v.SetDefault("auction.prime_min_impression_price", "0.003")
	v.SetDefault("auction.base_price", "100000")
	v.SetDefault("auction.min_impression_price", "0.001")
	v.SetDefault("auction.sweep_interval", time.Minute)

	v.SetDefault("schedule.auction_priority", 1000)
	v.SetDefault("schedule.fallback.enabled", true)
	v.SetDefault("schedule.fallback.network_share", 0.7)
	v.SetDefault("schedule.fallback.network_provider", "admob")
	v.SetDefault("schedule.fallback.network_unit", "")
	v.SetDefault("schedule.fallback.house_ad_ids", []string{})

	v.SetDefault("rewards.min_view_duration", 15*time.Second)
	v.SetDefault("rewards.base_tickets_per_view", 1)
	v.SetDefault("rewards.default_multiplier", "1.0")
	v.SetDefault("rewards.winner_multiplier", "0.25")
	v.SetDefault("rewards.loser_increase", "0.1")
	v.SetDefault("rewards.max_views_per_sprint", 100)
	v.SetDefault("rewards.dedupe_ttl", 24*time.Hour)

	v.SetDefault("sprint.announcement_delay", 15*time.Minute)
	v.SetDefault("sprint.default_duration", time.Hour)

	v.SetDefault("tasks.enabled", false)
	v.SetDefault("tasks.concurrency", 10)
	v.SetDefault("tasks.sweep_spec", "@every 1m")
	v.SetDefault("tasks.horizon_spec", "@every 1h")
	v.SetDefault("tasks.expiry_spec", "@every 1h")
	v.SetDefault("tasks.announce_queue", "critical")
}

// Load reads defaults, then the optional YAML file at path, then environment
// overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("app.timezone: %w", err)
	}
	if c.Auction.ClosingWindow <= 0 {
		return errors.New("auction.closing_window must be positive")
	}
	if c.Auction.SlotLength <= 0 || c.Auction.SlotLength > 24*time.Hour {
		return errors.New("auction.slot_length must be within a day")
	}
	for _, h := range c.Auction.SlotHours {
		if h < 0 || h > 23 {
			return fmt.Errorf("auction.slot_hours: invalid hour %d", h)
		}
	}
	if f := c.Schedule.Fallback.NetworkShare; f < 0 || f > 1 {
		return fmt.Errorf("schedule.fallback.network_share must be within [0,1], got %v", f)
	}
	if c.Rewards.MinViewDuration < 0 {
		return errors.New("rewards.min_view_duration must not be negative")
	}
	if c.Tasks.Enabled && !c.Redis.Enabled() {
		return errors.New("tasks.enabled requires redis.addr")
	}
	return nil
}

// Location returns the configured business time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
