// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tasks_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/adsprint/pkg/auction"
	"github.com/luxfi/adsprint/pkg/clock"
	"github.com/luxfi/adsprint/pkg/config"
	"github.com/luxfi/adsprint/pkg/ledger"
	"github.com/luxfi/adsprint/pkg/log"
	"github.com/luxfi/adsprint/pkg/storage/memory"
	"github.com/luxfi/adsprint/pkg/tasks"
)

var epoch = time.Date(2026, time.October, 20, 10, 0, 0, 0, time.UTC)

type fakeAuctions struct {
	mu       sync.Mutex
	sweeps   int
	horizons []int
	err      error
}

func (f *fakeAuctions) Sweep(context.Context) (auction.SweepReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	return auction.SweepReport{Due: 2, Awarded: 1, Unsold: 1}, f.err
}

func (f *fakeAuctions) GenerateSlots(_ context.Context, days int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.horizons = append(f.horizons, days)
	return 4 * days, f.err
}

type fakeExpirer struct{ calls int }

func (f *fakeExpirer) Expire(context.Context) (int, error) {
	f.calls++
	return 1, nil
}

type chanReminder chan ledger.Announcement

func (c chanReminder) Announce(_ context.Context, a ledger.Announcement) error {
	c <- a
	return nil
}

type enqueued struct {
	task *asynq.Task
	opts map[asynq.OptionType]interface{}
}

type fakeEnqueuer struct {
	ids   map[string]bool
	tasks []enqueued
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	e := enqueued{task: task, opts: make(map[asynq.OptionType]interface{})}
	for _, o := range opts {
		e.opts[o.Type()] = o.Value()
	}
	id, _ := e.opts[asynq.TaskIDOpt].(string)
	if f.ids[id] {
		return nil, asynq.ErrTaskIDConflict
	}
	f.ids[id] = true
	f.tasks = append(f.tasks, e)
	return &asynq.TaskInfo{ID: id, Type: task.Type()}, nil
}

type fakeRegistrar struct {
	specs map[string]string
	fail  string
}

func (f *fakeRegistrar) Register(spec string, task *asynq.Task, _ ...asynq.Option) (string, error) {
	if task.Type() == f.fail {
		return "", errors.New("bad spec")
	}
	f.specs[task.Type()] = spec
	return task.Type() + "-entry", nil
}

func TestHandlers(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	auctions := &fakeAuctions{}
	expirer := &fakeExpirer{}
	reminders := make(chanReminder, 1)
	h := tasks.NewHandlers(auctions, expirer, reminders, 14, log.NoOp())

	require.NoError(h.HandleSweep(ctx, asynq.NewTask(tasks.TypeAwardSweep, nil)))
	require.Equal(1, auctions.sweeps)

	// Empty payload uses the configured horizon.
	require.NoError(h.HandleHorizon(ctx, asynq.NewTask(tasks.TypeSlotHorizon, nil)))
	task, err := tasks.NewHorizonTask(3)
	require.NoError(err)
	require.NoError(h.HandleHorizon(ctx, task))
	require.Equal([]int{14, 3}, auctions.horizons)

	require.NoError(h.HandleExpiry(ctx, asynq.NewTask(tasks.TypeEntryExpiry, nil)))
	require.Equal(1, expirer.calls)

	a := ledger.Announcement{SprintID: "sprint-1", AnnounceAt: epoch, Winners: []string{"u1"}}
	task, err = tasks.NewAnnouncementTask(a)
	require.NoError(err)
	require.NoError(h.HandleAnnouncement(ctx, task))
	got := <-reminders
	require.Equal("sprint-1", got.SprintID)
	require.True(epoch.Equal(got.AnnounceAt))
	require.Equal([]string{"u1"}, got.Winners)
}

func TestHandlersBadPayload(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	h := tasks.NewHandlers(&fakeAuctions{}, &fakeExpirer{}, nil, 14, nil)

	err := h.HandleAnnouncement(ctx, asynq.NewTask(tasks.TypeAnnouncement, []byte("{")))
	require.ErrorIs(err, asynq.SkipRetry)

	payload, _ := json.Marshal(tasks.AnnouncementPayload{})
	err = h.HandleAnnouncement(ctx, asynq.NewTask(tasks.TypeAnnouncement, payload))
	require.ErrorIs(err, asynq.SkipRetry)

	err = h.HandleHorizon(ctx, asynq.NewTask(tasks.TypeSlotHorizon, []byte("nope")))
	require.ErrorIs(err, asynq.SkipRetry)
}

func TestHandlersPropagateFailures(t *testing.T) {
	require := require.New(t)
	boom := errors.New("store down")
	h := tasks.NewHandlers(&fakeAuctions{err: boom}, &fakeExpirer{}, nil, 14, nil)

	require.ErrorIs(h.HandleSweep(context.Background(), asynq.NewTask(tasks.TypeAwardSweep, nil)), boom)
	require.ErrorIs(h.HandleHorizon(context.Background(), asynq.NewTask(tasks.TypeSlotHorizon, nil)), boom)
}

func TestHorizonWithEngine(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	repo := memory.NewSlots()
	engine := auction.NewEngine(auction.DefaultConfig(), repo, nil, auction.WithClock(clock.NewManual(epoch)))
	h := tasks.NewHandlers(engine, &fakeExpirer{}, nil, 2, nil)

	require.NoError(h.HandleHorizon(ctx, asynq.NewTask(tasks.TypeSlotHorizon, nil)))
	slots, err := repo.ListSlots(ctx, epoch.Add(-24*time.Hour), epoch.Add(72*time.Hour))
	require.NoError(err)
	require.NotEmpty(slots)

	// Generation is idempotent.
	require.NoError(h.HandleHorizon(ctx, asynq.NewTask(tasks.TypeSlotHorizon, nil)))
	again, err := repo.ListSlots(ctx, epoch.Add(-24*time.Hour), epoch.Add(72*time.Hour))
	require.NoError(err)
	require.Len(again, len(slots))
}

func TestClientSchedulesAnnouncement(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	enq := &fakeEnqueuer{ids: make(map[string]bool)}
	c := tasks.NewClient(enq, "", nil)

	at := epoch.Add(75 * time.Minute)
	a := ledger.Announcement{SprintID: "sprint-1", AnnounceAt: at, Winners: []string{"u2", "u1"}}
	require.NoError(c.ScheduleAnnouncement(ctx, a))
	require.Len(enq.tasks, 1)

	e := enq.tasks[0]
	require.Equal(tasks.TypeAnnouncement, e.task.Type())
	require.Equal("critical", e.opts[asynq.QueueOpt])
	require.Equal("announce:sprint-1", e.opts[asynq.TaskIDOpt])
	processAt, ok := e.opts[asynq.ProcessAtOpt].(time.Time)
	require.True(ok)
	require.True(at.Equal(processAt))

	var p tasks.AnnouncementPayload
	require.NoError(json.Unmarshal(e.task.Payload(), &p))
	require.Equal("sprint-1", p.SprintID)
	require.Equal([]string{"u2", "u1"}, p.Winners)

	// A second schedule for the same sprint is a no-op.
	require.NoError(c.ScheduleAnnouncement(ctx, a))
	require.Len(enq.tasks, 1)

	enq.err = errors.New("redis unavailable")
	require.Error(c.ScheduleAnnouncement(ctx, ledger.Announcement{SprintID: "sprint-2", AnnounceAt: at}))
}

func TestLocalNotifier(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	reminders := make(chanReminder, 1)
	l := tasks.NewLocal(reminders, clock.NewManual(epoch), nil)

	// Due reminders fire right away.
	require.NoError(l.ScheduleAnnouncement(ctx, ledger.Announcement{SprintID: "past", AnnounceAt: epoch.Add(-time.Minute)}))
	select {
	case a := <-reminders:
		require.Equal("past", a.SprintID)
	case <-time.After(5 * time.Second):
		require.FailNow("reminder not delivered")
	}

	future := ledger.Announcement{SprintID: "future", AnnounceAt: epoch.Add(time.Hour)}
	require.NoError(l.ScheduleAnnouncement(ctx, future))
	require.NoError(l.ScheduleAnnouncement(ctx, future))
	require.Eventually(func() bool { return l.Pending() == 1 }, 5*time.Second, 10*time.Millisecond)

	l.Stop()
	require.Zero(l.Pending())
	require.Error(l.ScheduleAnnouncement(ctx, future))
}

func TestRegisterPeriodic(t *testing.T) {
	require := require.New(t)

	cfg := config.Tasks{SweepSpec: "@every 1m", HorizonSpec: "@every 1h", ExpirySpec: ""}
	r := &fakeRegistrar{specs: make(map[string]string)}
	entries, err := tasks.RegisterPeriodic(r, cfg, 14)
	require.NoError(err)
	require.Len(entries, 2)
	require.Equal("@every 1m", r.specs[tasks.TypeAwardSweep])
	require.Equal("@every 1h", r.specs[tasks.TypeSlotHorizon])
	require.NotContains(r.specs, tasks.TypeEntryExpiry)

	r = &fakeRegistrar{specs: make(map[string]string), fail: tasks.TypeSlotHorizon}
	_, err = tasks.RegisterPeriodic(r, cfg, 14)
	require.Error(err)
}

func TestLoopRunOnce(t *testing.T) {
	require := require.New(t)

	auctions := &fakeAuctions{}
	expirer := &fakeExpirer{}
	loop := tasks.NewLoop(tasks.NewHandlers(auctions, expirer, nil, 7, nil), 0)
	loop.RunOnce(context.Background())

	require.Equal(1, auctions.sweeps)
	require.Equal([]int{7}, auctions.horizons)
	require.Equal(1, expirer.calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	loop.Run(ctx)
	require.Equal(2, auctions.sweeps)
}
