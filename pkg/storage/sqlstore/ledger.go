// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sqlstore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/luxfi/adsprint/pkg/ledger"
)

// Ledger is a ledger.Repository.
type Ledger struct {
	db *gorm.DB
}

func (l *Ledger) GetAccount(ctx context.Context, userID string) (*ledger.Account, error) {
	var rec AccountRecord
	err := l.db.WithContext(ctx).First(&rec, "user_id = ?", userID).Error
	if notFound(err) {
		return nil, ledger.ErrAccountNotFound.With("user %s", userID)
	}
	if err != nil {
		return nil, err
	}
	a := rec.account()
	return &a, nil
}

// WithAccount inserts the seed if needed and locks the account row.
func (l *Ledger) WithAccount(ctx context.Context, seed ledger.Account, fn func(tx ledger.AccountTx) error) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := accountRecord(&seed)
		if err := tx.Clauses(doNothing).Create(&rec).Error; err != nil {
			return err
		}
		if err := tx.Clauses(forUpdate).First(&rec, "user_id = ?", seed.UserID).Error; err != nil {
			return err
		}
		acct := rec.account()
		return fn(&accountTx{tx: tx, acct: &acct})
	})
}

type accountTx struct {
	tx   *gorm.DB
	acct *ledger.Account
}

func (t *accountTx) Account() *ledger.Account { return t.acct }

func (t *accountTx) CountEligibleViews(sprintID string) (int, error) {
	var n int64
	err := t.tx.Model(&ViewRecord{}).
		Where("user_id = ? AND sprint_id = ? AND ticket_eligible = ?", t.acct.UserID, sprintID, true).
		Count(&n).Error
	return int(n), err
}

func (t *accountTx) AppendView(v *ledger.View) error {
	rec := viewRecord(v)
	err := t.tx.Create(&rec).Error
	if duplicate(err) {
		return ledger.ErrDuplicateView.With("attempt %s", v.AttemptID)
	}
	return err
}

func (t *accountTx) SaveAccount(a *ledger.Account) error {
	rec := accountRecord(a)
	return t.tx.Save(&rec).Error
}

func (t *accountTx) MarkAdjusted(sprintID string, at time.Time) (bool, error) {
	rec := AdjustmentRecord{UserID: t.acct.UserID, SprintID: sprintID, AdjustedAt: at.UTC()}
	res := t.tx.Clauses(doNothing).Create(&rec)
	return res.RowsAffected == 1, res.Error
}

func (l *Ledger) ListViews(ctx context.Context, userID, sprintID string) ([]ledger.View, error) {
	q := l.db.WithContext(ctx).Where("user_id = ?", userID)
	if sprintID != "" {
		q = q.Where("sprint_id = ?", sprintID)
	}
	var recs []ViewRecord
	if err := q.Order("recorded_at, id").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]ledger.View, len(recs))
	for i := range recs {
		out[i] = recs[i].view()
	}
	return out, nil
}

func (l *Ledger) Participants(ctx context.Context, sprintID string) ([]string, error) {
	var users []string
	err := l.db.WithContext(ctx).Model(&ViewRecord{}).
		Where("sprint_id = ? AND ticket_eligible = ?", sprintID, true).
		Distinct().
		Order("user_id").
		Pluck("user_id", &users).Error
	return users, err
}

func (l *Ledger) CreateResult(ctx context.Context, r *ledger.RaffleResult) (*ledger.RaffleResult, bool, error) {
	var (
		stored  *ledger.RaffleResult
		created bool
	)
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := raffleRecord(r)
		res := tx.Clauses(doNothing).Create(&rec)
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected == 1
		var got RaffleRecord
		if err := tx.First(&got, "sprint_id = ?", r.SprintID).Error; err != nil {
			return err
		}
		result := got.result()
		stored = &result
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

func (l *Ledger) GetResult(ctx context.Context, sprintID string) (*ledger.RaffleResult, error) {
	var rec RaffleRecord
	err := l.db.WithContext(ctx).First(&rec, "sprint_id = ?", sprintID).Error
	if notFound(err) {
		return nil, ledger.ErrResultNotFound.With("sprint %s", sprintID)
	}
	if err != nil {
		return nil, err
	}
	r := rec.result()
	return &r, nil
}
