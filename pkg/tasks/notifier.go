// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/luxfi/adsprint/pkg/clock"
	"github.com/luxfi/adsprint/pkg/ledger"
	"github.com/luxfi/adsprint/pkg/log"
)

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Client schedules announcement reminders on asynq.
type Client struct {
	enqueuer Enqueuer
	queue    string
	log      log.Logger
}

var _ ledger.Notifier = (*Client)(nil)

func NewClient(e Enqueuer, queue string, logger log.Logger) *Client {
	if queue == "" {
		queue = "critical"
	}
	if logger == nil {
		logger = log.NoOp()
	}
	return &Client{enqueuer: e, queue: queue, log: logger}
}

// ScheduleAnnouncement enqueues the reminder to run at the announcement
// time. A reminder already queued for the sprint counts as scheduled.
func (c *Client) ScheduleAnnouncement(ctx context.Context, a ledger.Announcement) error {
	task, err := NewAnnouncementTask(a)
	if err != nil {
		return err
	}
	info, err := c.enqueuer.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.ProcessAt(a.AnnounceAt),
		asynq.TaskID(announcementTaskID(a.SprintID)),
		asynq.MaxRetry(5),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		c.log.Debug("announcement already scheduled", zap.String("sprint", a.SprintID))
		return nil
	}
	if err != nil {
		return err
	}
	c.log.Info("announcement scheduled",
		zap.String("sprint", a.SprintID),
		zap.String("task_id", info.ID),
		zap.Time("process_at", a.AnnounceAt),
	)
	return nil
}

// Local schedules reminders in process with timers. Pending reminders are
// lost on restart.
type Local struct {
	reminder Reminder
	clock    clock.Clock
	log      log.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
}

var _ ledger.Notifier = (*Local)(nil)

func NewLocal(reminder Reminder, c clock.Clock, logger log.Logger) *Local {
	if logger == nil {
		logger = log.NoOp()
	}
	if c == nil {
		c = clock.Real
	}
	if reminder == nil {
		reminder = LogReminder{Log: logger}
	}
	return &Local{reminder: reminder, clock: c, log: logger, pending: make(map[string]*time.Timer)}
}

func (l *Local) ScheduleAnnouncement(_ context.Context, a ledger.Announcement) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errors.New("local notifier stopped")
	}
	if _, ok := l.pending[a.SprintID]; ok {
		return nil
	}
	delay := a.AnnounceAt.Sub(l.clock.Now())
	if delay < 0 {
		delay = 0
	}
	l.pending[a.SprintID] = time.AfterFunc(delay, func() {
		if err := l.reminder.Announce(context.Background(), a); err != nil {
			l.log.Warn("announcement failed", zap.String("sprint", a.SprintID), zap.Error(err))
		}
		l.mu.Lock()
		delete(l.pending, a.SprintID)
		l.mu.Unlock()
	})
	return nil
}

// Pending returns the number of reminders not yet delivered.
func (l *Local) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Stop cancels every pending reminder.
func (l *Local) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	for id, t := range l.pending {
		t.Stop()
		delete(l.pending, id)
	}
}
