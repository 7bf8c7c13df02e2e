// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package sqlstore implements the repositories on gorm. It runs on
// PostgreSQL, MySQL and SQLite.
package sqlstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store bundles the gorm repositories sharing one connection pool.
type Store struct {
	DB       *gorm.DB
	Slots    *Slots
	Schedule *Schedule
	Sprints  *Sprints
	Ledger   *Ledger
	Ads      *Ads
}

// New wraps db. The db should be opened with TranslateError so unique
// violations surface as gorm.ErrDuplicatedKey.
func New(db *gorm.DB) *Store {
	return &Store{
		DB:       db,
		Slots:    &Slots{db: db},
		Schedule: &Schedule{db: db},
		Sprints:  &Sprints{db: db},
		Ledger:   &Ledger{db: db},
		Ads:      &Ads{db: db},
	}
}

// Migrate creates or updates every table.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var forUpdate = clause.Locking{Strength: "UPDATE"}

var doNothing = clause.OnConflict{DoNothing: true}

func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func duplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
