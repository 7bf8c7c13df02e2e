// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package storage selects and opens the repository backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/plugin/prometheus"

	"github.com/luxfi/adsprint/pkg/ads"
	"github.com/luxfi/adsprint/pkg/auction"
	"github.com/luxfi/adsprint/pkg/config"
	"github.com/luxfi/adsprint/pkg/ledger"
	"github.com/luxfi/adsprint/pkg/log"
	"github.com/luxfi/adsprint/pkg/schedule"
	"github.com/luxfi/adsprint/pkg/sprint"
	"github.com/luxfi/adsprint/pkg/storage/memory"
	"github.com/luxfi/adsprint/pkg/storage/sqlstore"
)

// Supported drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

const (
	openAttempts = 5
	openBackoff  = 3 * time.Second
)

var ErrUnknownDriver = errors.New("unknown database driver")

// Backend is the set of repositories the engine runs on.
type Backend struct {
	Driver   string
	Slots    auction.Repository
	Schedule schedule.Repository
	Sprints  sprint.Repository
	Ledger   ledger.Repository
	Ads      ads.Store

	// DB is nil for the memory driver.
	DB *gorm.DB
}

// Ping checks the database connection. The memory backend is always ready.
func (b *Backend) Ping(ctx context.Context) error {
	if b.DB == nil {
		return nil
	}
	sqlDB, err := b.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (b *Backend) Close() error {
	if b.DB == nil {
		return nil
	}
	sqlDB, err := b.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NewMemory returns a backend on the in-memory repositories.
func NewMemory() *Backend {
	m := memory.New()
	return &Backend{
		Driver:   DriverMemory,
		Slots:    m.Slots,
		Schedule: m.Schedule,
		Sprints:  m.Sprints,
		Ledger:   m.Ledger,
		Ads:      m.Ads,
	}
}

// FromDB wraps an open gorm connection.
func FromDB(driver string, db *gorm.DB) *Backend {
	s := sqlstore.New(db)
	return &Backend{
		Driver:   driver,
		Slots:    s.Slots,
		Schedule: s.Schedule,
		Sprints:  s.Sprints,
		Ledger:   s.Ledger,
		Ads:      s.Ads,
		DB:       db,
	}
}

// Dialector maps a driver name and DSN to a gorm dialector.
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch strings.ToLower(driver) {
	case DriverSQLite:
		if dsn == "" {
			dsn = "file:adsprint.db?_busy_timeout=5000"
		}
		return sqlite.Open(dsn), nil
	case DriverPostgres:
		return postgres.Open(dsn), nil
	case DriverMySQL:
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// Open connects to the configured database, retrying while it comes up.
func Open(ctx context.Context, cfg config.Database, logger log.Logger, development bool) (*Backend, error) {
	driver := strings.ToLower(cfg.Driver)
	if driver == "" || driver == DriverMemory {
		logger.Info("using in-memory storage")
		return NewMemory(), nil
	}

	dialector, err := Dialector(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	gcfg := &gorm.Config{
		Logger:         sqlstore.NewGormLogger(logger, cfg.SlowThreshold, development),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}

	var db *gorm.DB
	for i := 0; i < openAttempts; i++ {
		db, err = gorm.Open(dialector, gcfg)
		if err == nil {
			break
		}
		logger.Warn("database not ready, retrying",
			zap.String("driver", driver),
			zap.Int("retry", i+1),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(openBackoff):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if cfg.Metrics {
		if err := db.Use(prometheus.New(prometheus.Config{
			DBName:          driver,
			RefreshInterval: 15,
		})); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("register db metrics: %w", err)
		}
	}

	if cfg.AutoMigrate {
		if err := sqlstore.Migrate(ctx, db); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}

	logger.Info("database connection configured",
		zap.String("driver", driver),
		zap.Bool("metrics", cfg.Metrics),
	)
	return FromDB(driver, db), nil
}
