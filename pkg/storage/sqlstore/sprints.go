// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sqlstore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/luxfi/adsprint/pkg/sprint"
)

// Sprints is a sprint.Repository.
type Sprints struct {
	db *gorm.DB
}

func (s *Sprints) Create(ctx context.Context, sp *sprint.Sprint) error {
	rec := sprintRecord(sp)
	err := s.db.WithContext(ctx).Create(&rec).Error
	if duplicate(err) {
		return sprint.ErrSprintExists.With("%s at %s", sp.Category, sp.StartDate.Format(time.RFC3339))
	}
	return err
}

func (s *Sprints) Get(ctx context.Context, id string) (*sprint.Sprint, error) {
	return s.first(s.db.WithContext(ctx).Where("id = ?", id))
}

func (s *Sprints) ActiveAt(ctx context.Context, now time.Time) (*sprint.Sprint, error) {
	now = now.UTC()
	return s.first(s.db.WithContext(ctx).Where("start_date <= ? AND end_date > ?", now, now))
}

func (s *Sprints) NextAfter(ctx context.Context, t time.Time) (*sprint.Sprint, error) {
	return s.first(s.db.WithContext(ctx).Where("start_date > ?", t.UTC()))
}

func (s *Sprints) first(q *gorm.DB) (*sprint.Sprint, error) {
	var rec SprintRecord
	err := q.Order("start_date, id").First(&rec).Error
	if notFound(err) {
		return nil, sprint.ErrSprintNotFound
	}
	if err != nil {
		return nil, err
	}
	sp := rec.sprint()
	return &sp, nil
}

func (s *Sprints) List(ctx context.Context, from, to time.Time) ([]sprint.Sprint, error) {
	var recs []SprintRecord
	err := s.db.WithContext(ctx).
		Where("start_date >= ? AND start_date < ?", from.UTC(), to.UTC()).
		Order("start_date, id").
		Find(&recs).Error
	out := make([]sprint.Sprint, len(recs))
	for i := range recs {
		out[i] = recs[i].sprint()
	}
	return out, err
}

// AdvanceStatus only matches rows whose status ranks below status, so a
// stale writer cannot move the cache backwards.
func (s *Sprints) AdvanceStatus(ctx context.Context, id string, status sprint.Status) error {
	var earlier []string
	for _, st := range []sprint.Status{sprint.StatusUpcoming, sprint.StatusActive, sprint.StatusEnded} {
		if st.Rank() < status.Rank() {
			earlier = append(earlier, string(st))
		}
	}
	if len(earlier) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&SprintRecord{}).
		Where("id = ? AND status IN ?", id, earlier).
		Update("status", string(status)).Error
}

func (s *Sprints) AddViews(ctx context.Context, id string, views, participants int64) error {
	res := s.db.WithContext(ctx).Model(&SprintRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"total_views":        gorm.Expr("total_views + ?", views),
			"total_participants": gorm.Expr("total_participants + ?", participants),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return sprint.ErrSprintNotFound.With("sprint %s", id)
	}
	return nil
}
