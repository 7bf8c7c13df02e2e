// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/luxfi/adsprint/pkg/errs"
	"github.com/luxfi/adsprint/pkg/sprint"
)

var (
	ErrInvalidView     = errs.New(errs.Validation, "INVALID_VIEW", "invalid view")
	ErrAdNotServable   = errs.New(errs.Validation, "AD_NOT_SERVABLE", "ad is not approved or not active")
	ErrInvalidRaffle   = errs.New(errs.Validation, "INVALID_RAFFLE_RESULT", "invalid raffle result")
	ErrAccountNotFound = errs.New(errs.NotFound, "ACCOUNT_NOT_FOUND", "ticket account not found")
	ErrResultNotFound  = errs.New(errs.NotFound, "RAFFLE_RESULT_NOT_FOUND", "raffle result not found")
	ErrDuplicateView   = errs.New(errs.Conflict, "DUPLICATE_VIEW", "view attempt already recorded")
	ErrSprintNotEnded  = errs.New(errs.Conflict, "SPRINT_NOT_ENDED", "sprint has not ended")
	ErrSprintNotActive = errs.New(errs.Eligibility, "SPRINT_NOT_ACTIVE", "sprint not active")
	ErrViewTooShort    = errs.New(errs.Eligibility, "VIEW_TOO_SHORT", "view too short to earn tickets")
	ErrViewCapReached  = errs.New(errs.Eligibility, "VIEW_CAP_REACHED", "view limit for this sprint reached")
	ErrResultImmutable = errs.New(errs.Invariant, "RESULT_IMMUTABLE", "a different raffle result already exists for the sprint")
)

// Account is a user's raffle ticket balance and multiplier.
type Account struct {
	UserID     string          `json:"userId"`
	Tickets    int64           `json:"tickets"`
	Multiplier decimal.Decimal `json:"multiplier"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// View is the append-only audit record of one viewing attempt.
type View struct {
	ID              string          `json:"id"`
	AttemptID       string          `json:"attemptId"`
	UserID          string          `json:"userId"`
	AdID            string          `json:"adId"`
	SprintID        string          `json:"sprintId"`
	DurationSeconds int             `json:"durationSeconds"`
	TicketEligible  bool            `json:"ticketEligible"`
	TicketsEarned   int64           `json:"ticketsEarned"`
	Multiplier      decimal.Decimal `json:"multiplier"`
	Rejection       string          `json:"rejection,omitempty"`
	RecordedAt      time.Time       `json:"recordedAt"`
}

// RejectedView is returned when a view earns nothing. The audit row was
// still written.
type RejectedView struct {
	Reason *errs.Error
	View   View
}

func (r *RejectedView) Error() string { return r.Reason.Error() }
func (r *RejectedView) Unwrap() error { return r.Reason }

// Prize assigned to a winner.
type Prize struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// RaffleResult is the immutable outcome of a sprint's draw.
type RaffleResult struct {
	SprintID    string    `json:"sprintId"`
	Winners     []string  `json:"winners"`
	Prizes      []Prize   `json:"prizes"`
	DrawnAt     time.Time `json:"drawnAt"`
	AnnouncedAt time.Time `json:"announcementTimestamp"`
	NotaryHash  string    `json:"notaryHash"`
	CreatedAt   time.Time `json:"createdAt"`
}

// IsWinner reports whether user won.
func (r *RaffleResult) IsWinner(user string) bool {
	for _, w := range r.Winners {
		if w == user {
			return true
		}
	}
	return false
}

// Repository is the ledger's transactional store.
type Repository interface {
	GetAccount(ctx context.Context, userID string) (*Account, error)
	// WithAccount locks the account of seed.UserID, inserting seed if the
	// account does not exist, and commits writes made through tx if fn
	// returns nil.
	WithAccount(ctx context.Context, seed Account, fn func(tx AccountTx) error) error
	ListViews(ctx context.Context, userID, sprintID string) ([]View, error)
	// Participants returns the users with ticket-eligible views in a sprint.
	Participants(ctx context.Context, sprintID string) ([]string, error)
	// CreateResult stores r unless the sprint already has a result, and
	// returns the stored result.
	CreateResult(ctx context.Context, r *RaffleResult) (stored *RaffleResult, created bool, err error)
	GetResult(ctx context.Context, sprintID string) (*RaffleResult, error)
}

// AccountTx is the view of one locked account.
type AccountTx interface {
	Account() *Account
	// CountEligibleViews counts the account owner's accepted views in a sprint.
	CountEligibleViews(sprintID string) (int, error)
	// AppendView fails with ErrDuplicateView if the owner already used the
	// attempt id.
	AppendView(v *View) error
	SaveAccount(a *Account) error
	// MarkAdjusted records the sprint's multiplier adjustment for the
	// account owner and reports whether it had not been recorded before.
	MarkAdjusted(sprintID string, at time.Time) (bool, error)
}

// Sprints is what the ledger needs from the sprint controller.
type Sprints interface {
	Get(ctx context.Context, sprintID string) (*sprint.Sprint, error)
	HasEnded(ctx context.Context, sprintID string) (bool, error)
	AnnouncementTime(drawTime time.Time) time.Time
	RecordView(ctx context.Context, sprintID string, newParticipant bool) error
}

// Deduplicator claims view attempt keys.
type Deduplicator interface {
	// Claim reports whether key was claimed now, false if seen before.
	Claim(ctx context.Context, key string) (bool, error)
	// Release gives a claim back after a failure so the attempt can retry.
	Release(ctx context.Context, key string) error
}

// Announcement is handed to the reminder service.
type Announcement struct {
	SprintID   string    `json:"sprintId"`
	AnnounceAt time.Time `json:"announceAt"`
	Winners    []string  `json:"winners"`
}

// Notifier schedules raffle announcement reminders. It is best effort.
type Notifier interface {
	ScheduleAnnouncement(ctx context.Context, a Announcement) error
}
