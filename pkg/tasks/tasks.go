// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package tasks runs the background jobs: the award sweep, the slot horizon,
// schedule entry expiry and raffle announcement reminders. Jobs run on asynq
// when Redis is configured and on a local ticker loop otherwise.
package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/luxfi/adsprint/pkg/ledger"
)

const (
	TypeAwardSweep   = "auction:sweep"
	TypeSlotHorizon  = "auction:horizon"
	TypeEntryExpiry  = "schedule:expire"
	TypeAnnouncement = "raffle:announce"
)

// Queues and their asynq priority weights.
var Queues = map[string]int{
	"critical": 6,
	"default":  3,
	"low":      1,
}

// HorizonPayload asks for slots to be generated for the next Days days.
type HorizonPayload struct {
	Days int `json:"days"`
}

// AnnouncementPayload is the body of a raffle announcement reminder.
type AnnouncementPayload struct {
	SprintID   string    `json:"sprint_id"`
	AnnounceAt time.Time `json:"announce_at"`
	Winners    []string  `json:"winners"`
}

func (p AnnouncementPayload) announcement() ledger.Announcement {
	return ledger.Announcement{SprintID: p.SprintID, AnnounceAt: p.AnnounceAt, Winners: p.Winners}
}

// NewHorizonTask builds a slot horizon job.
func NewHorizonTask(days int) (*asynq.Task, error) {
	payload, err := json.Marshal(HorizonPayload{Days: days})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSlotHorizon, payload), nil
}

// NewAnnouncementTask builds a reminder for a stored raffle result.
func NewAnnouncementTask(a ledger.Announcement) (*asynq.Task, error) {
	payload, err := json.Marshal(AnnouncementPayload{
		SprintID:   a.SprintID,
		AnnounceAt: a.AnnounceAt.UTC(),
		Winners:    a.Winners,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeAnnouncement, payload), nil
}

// announcementTaskID keeps one reminder per sprint in the queue.
func announcementTaskID(sprintID string) string {
	return fmt.Sprintf("announce:%s", sprintID)
}
