// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/luxfi/adsprint/pkg/ledger"
)

// Ledger is a ledger.Repository. All accounts share one lock.
type Ledger struct {
	mu       sync.Mutex
	accounts map[string]ledger.Account
	views    []ledger.View
	attempts map[attemptKey]struct{}
	adjusted map[adjustKey]time.Time
	results  map[string]ledger.RaffleResult
}

type adjustKey struct {
	user, sprint string
}

// Attempt ids are scoped to the user that sent them.
type attemptKey struct {
	user, attempt string
}

func NewLedger() *Ledger {
	return &Ledger{
		accounts: make(map[string]ledger.Account),
		attempts: make(map[attemptKey]struct{}),
		adjusted: make(map[adjustKey]time.Time),
		results:  make(map[string]ledger.RaffleResult),
	}
}

func (l *Ledger) GetAccount(_ context.Context, userID string) (*ledger.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.accounts[userID]
	if !ok {
		return nil, ledger.ErrAccountNotFound.With("user %s", userID)
	}
	return &a, nil
}

func (l *Ledger) WithAccount(_ context.Context, seed ledger.Account, fn func(tx ledger.AccountTx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[seed.UserID]
	if !ok {
		acct = seed
	}
	tx := &accountTx{store: l, acct: &acct, fresh: !ok}
	if err := fn(tx); err != nil {
		return err
	}

	if tx.saved != nil {
		l.accounts[seed.UserID] = *tx.saved
	} else if tx.fresh {
		l.accounts[seed.UserID] = seed
	}
	for _, v := range tx.views {
		l.views = append(l.views, v)
		l.attempts[attemptKey{v.UserID, v.AttemptID}] = struct{}{}
	}
	for sprintID, at := range tx.marks {
		l.adjusted[adjustKey{seed.UserID, sprintID}] = at
	}
	return nil
}

type accountTx struct {
	store *Ledger
	acct  *ledger.Account
	fresh bool
	saved *ledger.Account
	views []ledger.View
	marks map[string]time.Time
}

func (t *accountTx) Account() *ledger.Account { return t.acct }

func (t *accountTx) CountEligibleViews(sprintID string) (int, error) {
	n := 0
	count := func(v ledger.View) {
		if v.TicketEligible && v.UserID == t.acct.UserID && v.SprintID == sprintID {
			n++
		}
	}
	for _, v := range t.store.views {
		count(v)
	}
	for _, v := range t.views {
		count(v)
	}
	return n, nil
}

func (t *accountTx) AppendView(v *ledger.View) error {
	if _, ok := t.store.attempts[attemptKey{v.UserID, v.AttemptID}]; ok {
		return ledger.ErrDuplicateView.With("attempt %s", v.AttemptID)
	}
	for _, p := range t.views {
		if p.UserID == v.UserID && p.AttemptID == v.AttemptID {
			return ledger.ErrDuplicateView.With("attempt %s", v.AttemptID)
		}
	}
	t.views = append(t.views, *v)
	return nil
}

func (t *accountTx) SaveAccount(a *ledger.Account) error {
	saved := *a
	t.saved = &saved
	return nil
}

func (t *accountTx) MarkAdjusted(sprintID string, at time.Time) (bool, error) {
	if _, ok := t.store.adjusted[adjustKey{t.acct.UserID, sprintID}]; ok {
		return false, nil
	}
	if _, ok := t.marks[sprintID]; ok {
		return false, nil
	}
	if t.marks == nil {
		t.marks = make(map[string]time.Time)
	}
	t.marks[sprintID] = at
	return true, nil
}

func (l *Ledger) ListViews(_ context.Context, userID, sprintID string) ([]ledger.View, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []ledger.View
	for _, v := range l.views {
		if v.UserID == userID && (sprintID == "" || v.SprintID == sprintID) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (l *Ledger) Participants(_ context.Context, sprintID string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[string]struct{})
	for _, v := range l.views {
		if v.TicketEligible && v.SprintID == sprintID {
			seen[v.UserID] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	sort.Strings(out)
	return out, nil
}

func (l *Ledger) CreateResult(_ context.Context, r *ledger.RaffleResult) (*ledger.RaffleResult, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.results[r.SprintID]; ok {
		return &existing, false, nil
	}
	l.results[r.SprintID] = *r
	stored := *r
	return &stored, true, nil
}

func (l *Ledger) GetResult(_ context.Context, sprintID string) (*ledger.RaffleResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.results[sprintID]
	if !ok {
		return nil, ledger.ErrResultNotFound.With("sprint %s", sprintID)
	}
	return &r, nil
}
