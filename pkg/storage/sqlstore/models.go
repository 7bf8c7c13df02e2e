// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sqlstore

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/luxfi/adsprint/pkg/ads"
	"github.com/luxfi/adsprint/pkg/auction"
	"github.com/luxfi/adsprint/pkg/calendar"
	"github.com/luxfi/adsprint/pkg/ledger"
	"github.com/luxfi/adsprint/pkg/schedule"
	"github.com/luxfi/adsprint/pkg/sprint"
)

// Times are stored in UTC so that range predicates compare correctly on
// every driver.

// SlotRecord is a stored auction slot.
type SlotRecord struct {
	ID                 string          `gorm:"column:id;primaryKey;type:varchar(32)"`
	Date               time.Time       `gorm:"column:date;not null"`
	Start              time.Time       `gorm:"column:start_at;not null;index"`
	End                time.Time       `gorm:"column:end_at;not null"`
	PrimeTime          bool            `gorm:"column:prime_time;not null"`
	BasePrice          decimal.Decimal `gorm:"column:base_price;type:numeric(24,8);not null"`
	MinImpressionPrice decimal.Decimal `gorm:"column:min_impression_price;type:numeric(24,8);not null"`
	Status             string          `gorm:"column:status;type:varchar(16);not null;index"`
	WinningBidID       string          `gorm:"column:winning_bid_id;type:varchar(32)"`
	SettledAt          *time.Time      `gorm:"column:settled_at"`
	CreatedAt          time.Time       `gorm:"column:created_at"`
}

func (SlotRecord) TableName() string { return "slots" }

func slotRecord(s *auction.Slot) SlotRecord {
	return SlotRecord{
		ID:                 s.ID,
		Date:               s.Date.UTC(),
		Start:              s.Start.UTC(),
		End:                s.End.UTC(),
		PrimeTime:          s.PrimeTime,
		BasePrice:          s.BasePrice,
		MinImpressionPrice: s.MinImpressionPrice,
		Status:             string(s.Status),
		WinningBidID:       s.WinningBidID,
		SettledAt:          utcPtr(s.SettledAt),
		CreatedAt:          s.CreatedAt.UTC(),
	}
}

func (r *SlotRecord) slot() auction.Slot {
	return auction.Slot{
		ID:                 r.ID,
		Date:               r.Date,
		Start:              r.Start,
		End:                r.End,
		PrimeTime:          r.PrimeTime,
		BasePrice:          r.BasePrice,
		MinImpressionPrice: r.MinImpressionPrice,
		Status:             auction.Status(r.Status),
		WinningBidID:       r.WinningBidID,
		SettledAt:          r.SettledAt,
		CreatedAt:          r.CreatedAt,
	}
}

// BidRecord is a stored bid. Bids are never updated.
type BidRecord struct {
	ID                   string          `gorm:"column:id;primaryKey;type:varchar(32)"`
	Seq                  int64           `gorm:"column:seq;not null"`
	SlotID               string          `gorm:"column:slot_id;type:varchar(32);not null;index"`
	AdvertiserID         string          `gorm:"column:advertiser_id;type:varchar(64);not null"`
	BasePriceOffer       decimal.Decimal `gorm:"column:base_price_offer;type:numeric(24,8);not null"`
	ImpressionPriceOffer decimal.Decimal `gorm:"column:impression_price_offer;type:numeric(24,8);not null"`
	PlacedAt             time.Time       `gorm:"column:placed_at;not null"`
}

func (BidRecord) TableName() string { return "bids" }

func bidRecord(b *auction.Bid) BidRecord {
	return BidRecord{
		ID:                   b.ID,
		Seq:                  b.Seq,
		SlotID:               b.SlotID,
		AdvertiserID:         b.AdvertiserID,
		BasePriceOffer:       b.BasePriceOffer,
		ImpressionPriceOffer: b.ImpressionPriceOffer,
		PlacedAt:             b.PlacedAt.UTC(),
	}
}

func (r *BidRecord) bid() auction.Bid {
	return auction.Bid{
		ID:                   r.ID,
		Seq:                  r.Seq,
		SlotID:               r.SlotID,
		AdvertiserID:         r.AdvertiserID,
		BasePriceOffer:       r.BasePriceOffer,
		ImpressionPriceOffer: r.ImpressionPriceOffer,
		PlacedAt:             r.PlacedAt,
	}
}

// EntryRecord is a stored schedule entry. SlotID is NULL for manual entries.
type EntryRecord struct {
	ID            string     `gorm:"column:id;primaryKey;type:varchar(36)"`
	AdvertiserID  string     `gorm:"column:advertiser_id;type:varchar(64);not null;index"`
	AdID          string     `gorm:"column:ad_id;type:varchar(64)"`
	DayOfWeek     int        `gorm:"column:day_of_week;not null;index"`
	StartMinute   int        `gorm:"column:start_minute;not null"`
	EndMinute     int        `gorm:"column:end_minute;not null"`
	StartDate     *time.Time `gorm:"column:start_date"`
	EndDate       *time.Time `gorm:"column:end_date;index"`
	Priority      int        `gorm:"column:priority;not null"`
	Active        bool       `gorm:"column:active;not null"`
	AllowFallback bool       `gorm:"column:allow_fallback;not null"`
	Source        string     `gorm:"column:source;type:varchar(16);not null"`
	SlotID        *string    `gorm:"column:slot_id;type:varchar(32);uniqueIndex"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
}

func (EntryRecord) TableName() string { return "schedule_entries" }

func entryRecord(e *schedule.Entry) EntryRecord {
	r := EntryRecord{
		ID:            e.ID,
		AdvertiserID:  e.AdvertiserID,
		AdID:          e.AdID,
		DayOfWeek:     int(e.DayOfWeek),
		StartMinute:   int(e.Start),
		EndMinute:     int(e.End),
		StartDate:     datePtr(e.StartDate),
		EndDate:       datePtr(e.EndDate),
		Priority:      e.Priority,
		Active:        e.Active,
		AllowFallback: e.AllowFallback,
		Source:        string(e.Source),
		CreatedAt:     e.CreatedAt.UTC(),
	}
	if e.SlotID != "" {
		slot := e.SlotID
		r.SlotID = &slot
	}
	return r
}

func (r *EntryRecord) entry() schedule.Entry {
	e := schedule.Entry{
		ID:            r.ID,
		AdvertiserID:  r.AdvertiserID,
		AdID:          r.AdID,
		DayOfWeek:     time.Weekday(r.DayOfWeek),
		Start:         calendar.TimeOfDay(r.StartMinute),
		End:           calendar.TimeOfDay(r.EndMinute),
		Priority:      r.Priority,
		Active:        r.Active,
		AllowFallback: r.AllowFallback,
		Source:        schedule.Source(r.Source),
		CreatedAt:     r.CreatedAt,
	}
	if r.StartDate != nil {
		e.StartDate = *r.StartDate
	}
	if r.EndDate != nil {
		e.EndDate = *r.EndDate
	}
	if r.SlotID != nil {
		e.SlotID = *r.SlotID
	}
	return e
}

// dayLockRecord serializes entry creation per weekday.
type dayLockRecord struct {
	Day int `gorm:"column:day;primaryKey;autoIncrement:false"`
}

func (dayLockRecord) TableName() string { return "schedule_day_locks" }

// SprintRecord is a stored sprint.
type SprintRecord struct {
	ID                string    `gorm:"column:id;primaryKey;type:varchar(36)"`
	DayOfWeek         int       `gorm:"column:day_of_week;not null"`
	StartMinute       int       `gorm:"column:start_minute;not null"`
	EndMinute         int       `gorm:"column:end_minute;not null"`
	DurationMinutes   int       `gorm:"column:duration_minutes;not null"`
	Category          string    `gorm:"column:category;type:varchar(64);not null;uniqueIndex:idx_sprints_start_category"`
	Status            string    `gorm:"column:status;type:varchar(16);not null"`
	StartDate         time.Time `gorm:"column:start_date;not null;uniqueIndex:idx_sprints_start_category"`
	EndDate           time.Time `gorm:"column:end_date;not null;index"`
	TotalViews        int64     `gorm:"column:total_views;not null;default:0"`
	TotalParticipants int64     `gorm:"column:total_participants;not null;default:0"`
	CreatedAt         time.Time `gorm:"column:created_at"`
}

func (SprintRecord) TableName() string { return "sprints" }

func sprintRecord(s *sprint.Sprint) SprintRecord {
	return SprintRecord{
		ID:                s.ID,
		DayOfWeek:         int(s.DayOfWeek),
		StartMinute:       int(s.Start),
		EndMinute:         int(s.End),
		DurationMinutes:   s.DurationMinutes,
		Category:          s.Category,
		Status:            string(s.Status),
		StartDate:         s.StartDate.UTC(),
		EndDate:           s.EndDate.UTC(),
		TotalViews:        s.TotalViews,
		TotalParticipants: s.TotalParticipants,
		CreatedAt:         s.CreatedAt.UTC(),
	}
}

func (r *SprintRecord) sprint() sprint.Sprint {
	return sprint.Sprint{
		ID:                r.ID,
		DayOfWeek:         time.Weekday(r.DayOfWeek),
		Start:             calendar.TimeOfDay(r.StartMinute),
		End:               calendar.TimeOfDay(r.EndMinute),
		DurationMinutes:   r.DurationMinutes,
		Category:          r.Category,
		Status:            sprint.Status(r.Status),
		StartDate:         r.StartDate,
		EndDate:           r.EndDate,
		TotalViews:        r.TotalViews,
		TotalParticipants: r.TotalParticipants,
		CreatedAt:         r.CreatedAt,
	}
}

// AccountRecord is a user's ticket account.
type AccountRecord struct {
	UserID     string          `gorm:"column:user_id;primaryKey;type:varchar(64)"`
	Tickets    int64           `gorm:"column:tickets;not null;default:0"`
	Multiplier decimal.Decimal `gorm:"column:multiplier;type:numeric(12,4);not null"`
	UpdatedAt  time.Time       `gorm:"column:updated_at"`
}

func (AccountRecord) TableName() string { return "ticket_accounts" }

func accountRecord(a *ledger.Account) AccountRecord {
	return AccountRecord{UserID: a.UserID, Tickets: a.Tickets, Multiplier: a.Multiplier, UpdatedAt: a.UpdatedAt.UTC()}
}

func (r *AccountRecord) account() ledger.Account {
	return ledger.Account{UserID: r.UserID, Tickets: r.Tickets, Multiplier: r.Multiplier, UpdatedAt: r.UpdatedAt}
}

// ViewRecord is the audit row of a viewing attempt.
type ViewRecord struct {
	ID              string          `gorm:"column:id;primaryKey;type:varchar(32)"`
	AttemptID       string          `gorm:"column:attempt_id;type:varchar(64);not null;uniqueIndex:idx_views_user_attempt,priority:2"`
	UserID          string          `gorm:"column:user_id;type:varchar(64);not null;index:idx_views_user_sprint;uniqueIndex:idx_views_user_attempt,priority:1"`
	SprintID        string          `gorm:"column:sprint_id;type:varchar(36);not null;index:idx_views_user_sprint;index"`
	AdID            string          `gorm:"column:ad_id;type:varchar(64);not null"`
	DurationSeconds int             `gorm:"column:duration_seconds;not null"`
	TicketEligible  bool            `gorm:"column:ticket_eligible;not null"`
	TicketsEarned   int64           `gorm:"column:tickets_earned;not null"`
	Multiplier      decimal.Decimal `gorm:"column:multiplier;type:numeric(12,4);not null"`
	Rejection       string          `gorm:"column:rejection;type:varchar(32)"`
	RecordedAt      time.Time       `gorm:"column:recorded_at;not null"`
}

func (ViewRecord) TableName() string { return "ad_views" }

func viewRecord(v *ledger.View) ViewRecord {
	return ViewRecord{
		ID:              v.ID,
		AttemptID:       v.AttemptID,
		UserID:          v.UserID,
		SprintID:        v.SprintID,
		AdID:            v.AdID,
		DurationSeconds: v.DurationSeconds,
		TicketEligible:  v.TicketEligible,
		TicketsEarned:   v.TicketsEarned,
		Multiplier:      v.Multiplier,
		Rejection:       v.Rejection,
		RecordedAt:      v.RecordedAt.UTC(),
	}
}

func (r *ViewRecord) view() ledger.View {
	return ledger.View{
		ID:              r.ID,
		AttemptID:       r.AttemptID,
		UserID:          r.UserID,
		AdID:            r.AdID,
		SprintID:        r.SprintID,
		DurationSeconds: r.DurationSeconds,
		TicketEligible:  r.TicketEligible,
		TicketsEarned:   r.TicketsEarned,
		Multiplier:      r.Multiplier,
		Rejection:       r.Rejection,
		RecordedAt:      r.RecordedAt,
	}
}

// AdjustmentRecord marks a sprint's multiplier adjustment as applied to a user.
type AdjustmentRecord struct {
	UserID     string    `gorm:"column:user_id;primaryKey;type:varchar(64)"`
	SprintID   string    `gorm:"column:sprint_id;primaryKey;type:varchar(36)"`
	AdjustedAt time.Time `gorm:"column:adjusted_at;not null"`
}

func (AdjustmentRecord) TableName() string { return "multiplier_adjustments" }

// RaffleRecord is a sprint's raffle result.
type RaffleRecord struct {
	SprintID    string         `gorm:"column:sprint_id;primaryKey;type:varchar(36)"`
	Winners     []string       `gorm:"column:winners;type:text;serializer:json"`
	Prizes      []ledger.Prize `gorm:"column:prizes;type:text;serializer:json"`
	DrawnAt     time.Time      `gorm:"column:drawn_at;not null"`
	AnnouncedAt time.Time      `gorm:"column:announced_at;not null"`
	NotaryHash  string         `gorm:"column:notary_hash;type:char(64);not null"`
	CreatedAt   time.Time      `gorm:"column:created_at"`
}

func (RaffleRecord) TableName() string { return "raffle_results" }

func raffleRecord(r *ledger.RaffleResult) RaffleRecord {
	return RaffleRecord{
		SprintID:    r.SprintID,
		Winners:     r.Winners,
		Prizes:      r.Prizes,
		DrawnAt:     r.DrawnAt.UTC(),
		AnnouncedAt: r.AnnouncedAt.UTC(),
		NotaryHash:  r.NotaryHash,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

func (r *RaffleRecord) result() ledger.RaffleResult {
	return ledger.RaffleResult{
		SprintID:    r.SprintID,
		Winners:     r.Winners,
		Prizes:      r.Prizes,
		DrawnAt:     r.DrawnAt,
		AnnouncedAt: r.AnnouncedAt,
		NotaryHash:  r.NotaryHash,
		CreatedAt:   r.CreatedAt,
	}
}

// AdvertiserRecord is a stored advertiser.
type AdvertiserRecord struct {
	ID        string    `gorm:"column:id;primaryKey;type:varchar(64)"`
	Name      string    `gorm:"column:name;type:varchar(255)"`
	Active    bool      `gorm:"column:active;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (AdvertiserRecord) TableName() string { return "advertisers" }

// AdRecord is a stored creative.
type AdRecord struct {
	ID              string     `gorm:"column:id;primaryKey;type:varchar(64)"`
	AdvertiserID    string     `gorm:"column:advertiser_id;type:varchar(64);not null;index"`
	MediaURL        string     `gorm:"column:media_url;type:text;not null"`
	DurationSeconds int        `gorm:"column:duration_seconds;not null"`
	Status          string     `gorm:"column:status;type:varchar(16);not null"`
	Active          bool       `gorm:"column:active;not null"`
	Impressions     int64      `gorm:"column:impressions;not null;default:0"`
	Clicks          int64      `gorm:"column:clicks;not null;default:0"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	ReviewedAt      *time.Time `gorm:"column:reviewed_at"`
}

func (AdRecord) TableName() string { return "ads" }

func adRecord(a *ads.Ad) AdRecord {
	return AdRecord{
		ID:              a.ID,
		AdvertiserID:    a.AdvertiserID,
		MediaURL:        a.MediaURL,
		DurationSeconds: a.DurationSeconds,
		Status:          string(a.Status),
		Active:          a.Active,
		Impressions:     a.Impressions,
		Clicks:          a.Clicks,
		CreatedAt:       a.CreatedAt.UTC(),
		ReviewedAt:      utcPtr(a.ReviewedAt),
	}
}

func (r *AdRecord) ad() ads.Ad {
	return ads.Ad{
		ID:              r.ID,
		AdvertiserID:    r.AdvertiserID,
		MediaURL:        r.MediaURL,
		DurationSeconds: r.DurationSeconds,
		Status:          ads.ApprovalStatus(r.Status),
		Active:          r.Active,
		Impressions:     r.Impressions,
		Clicks:          r.Clicks,
		CreatedAt:       r.CreatedAt,
		ReviewedAt:      r.ReviewedAt,
	}
}

// Models lists every table, for migrations.
func Models() []any {
	return []any{
		&SlotRecord{},
		&BidRecord{},
		&EntryRecord{},
		&dayLockRecord{},
		&SprintRecord{},
		&AccountRecord{},
		&ViewRecord{},
		&AdjustmentRecord{},
		&RaffleRecord{},
		&AdvertiserRecord{},
		&AdRecord{},
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func datePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
