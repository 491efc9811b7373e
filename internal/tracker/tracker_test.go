package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dohr-michael/nudge/internal/clock"
	"github.com/dohr-michael/nudge/internal/events"
	"github.com/dohr-michael/nudge/internal/ledger"
	"github.com/dohr-michael/nudge/internal/scheduler"
	"github.com/dohr-michael/nudge/internal/scheduler/schedtest"
	"github.com/dohr-michael/nudge/internal/state"
	"github.com/dohr-michael/nudge/internal/tasks"
)

var key = tasks.Key{GroupID: "g1", UserID: "u1"}

type harness struct {
	svc       *Service
	reminders *scheduler.Reminders
	clock     *clock.Fixed
	store     *state.MemoryStore
	state     *state.State
	timeline  *schedtest.ManualTimeline
	bus       *events.Bus
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	store := state.NewMemoryStore()
	st, err := state.Open(context.Background(), store)
	require.NoError(t, err)

	clk := clock.NewFixed(time.Date(2025, 11, 1, 10, 0, 0, 0, loc))
	tl := schedtest.NewManualTimeline()
	bus := events.NewBus(64)
	t.Cleanup(bus.Close)

	rem := scheduler.NewReminders(tl, clk, st, events.NewNotifier(bus), scheduler.DefaultReminderOptions())
	svc := New(Config{
		State:     st,
		Clock:     clk,
		Reminders: rem,
		Ledger:    ledger.New(st, clk),
		Bus:       bus,
	})
	return &harness{svc: svc, reminders: rem, clock: clk, store: store, state: st, timeline: tl, bus: bus}
}

func TestStartTask(t *testing.T) {
	h := newHarness(t)

	task, err := h.svc.StartTask(context.Background(), key, "未定", "2025-11-30")
	require.NoError(t, err)
	assert.Equal(t, "2025-11-30 23:59", tasks.FormatDeadline(*task.Deadline, h.clock.Location()))
	assert.Len(t, task.Jobs, 6)
	for _, m := range tasks.Milestones {
		assert.False(t, task.Milestones[m])
	}
	assert.Equal(t, 1, h.store.Saves(), "one atomic save per operation")
}

func TestStartTask_InvalidDeadlineMutatesNothing(t *testing.T) {
	h := newHarness(t)

	for _, in := range []string{"", "next friday", "2025-11-31", "30/11/2025"} {
		_, err := h.svc.StartTask(context.Background(), key, "x", in)
		require.Error(t, err, in)
		assert.True(t, tasks.IsValidation(err), in)
	}
	_, err := h.svc.SetDeadline(context.Background(), key, "soon")
	assert.True(t, tasks.IsValidation(err))

	assert.Zero(t, h.store.Saves())
	assert.Empty(t, h.timeline.Jobs())
	_, err = h.svc.Status(key)
	assert.ErrorIs(t, err, tasks.ErrNotFound)
}

func TestStartTask_ResetsButKeepsThread(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.StartTask(ctx, key, "first", "2025-11-30")
	require.NoError(t, err)
	_, err = h.svc.AttachThread(ctx, key, "th-1")
	require.NoError(t, err)
	_, err = h.svc.LogProgress(ctx, key, "read sources")
	require.NoError(t, err)
	_, err = h.svc.MarkMilestone(ctx, key, "テーマ")
	require.NoError(t, err)

	task, err := h.svc.StartTask(ctx, key, "second", "2025-12-20 18:00")
	require.NoError(t, err)
	assert.Equal(t, "second", task.Theme)
	assert.Empty(t, task.Progress)
	assert.False(t, task.Milestones[tasks.MilestoneTheme])
	assert.Equal(t, "th-1", task.ThreadID)
	assert.ElementsMatch(t, h.timeline.Jobs(), task.Jobs)
}

func TestSetDeadline_Reschedules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.StartTask(ctx, key, "", "2025-11-30")
	require.NoError(t, err)
	task, err := h.svc.SetDeadline(ctx, key, "2025-11-03 12:00")
	require.NoError(t, err)

	// 11-02 12:00 (1d), 11-03 07:45 (0d) and weekly remain.
	assert.Equal(t, []tasks.JobID{
		tasks.CheckpointJob(key, tasks.Checkpoint0D),
		tasks.CheckpointJob(key, tasks.Checkpoint1D),
		tasks.WeeklyJob(key),
	}, h.timeline.Jobs())
	assert.ElementsMatch(t, h.timeline.Jobs(), task.Jobs)
}

func TestSetDeadline_UpsertsMissingTask(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.SetDeadline(context.Background(), key, "2025-11-30")
	require.NoError(t, err)

	st, err := h.svc.Status(key)
	require.NoError(t, err)
	assert.Equal(t, tasks.DefaultTheme, st.Theme)
}

func TestSetDeadline_SchedulingFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.StartTask(ctx, key, "", "2025-11-30")
	require.NoError(t, err)

	h.timeline.FailWhen(func(tasks.JobID) error { return errors.New("down") })
	_, err = h.svc.SetDeadline(ctx, key, "2025-12-24")
	require.Error(t, err)
	assert.True(t, tasks.IsScheduling(err))

	st, err := h.svc.Status(key)
	require.NoError(t, err)
	assert.Equal(t, "2025-11-30 23:59", st.Deadline, "deadline change not committed")
}

func TestSetDeadline_SaveFailureRestoresJobs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	loc := h.clock.Location()
	_, err := h.svc.StartTask(ctx, key, "", "2025-11-30")
	require.NoError(t, err)

	h.store.FailSaves(errors.New("disk full"))
	_, err = h.svc.SetDeadline(ctx, key, "2025-12-20")
	require.Error(t, err)
	assert.True(t, tasks.IsPersistence(err))

	st, err := h.svc.Status(key)
	require.NoError(t, err)
	assert.Equal(t, "2025-11-30 23:59", st.Deadline)

	trigger, ok := h.timeline.Trigger(tasks.CheckpointJob(key, tasks.Checkpoint1D))
	require.True(t, ok)
	assert.True(t, time.Date(2025, 11, 29, 23, 59, 0, 0, loc).Equal(trigger.At), "1d fires at %s", trigger.At)
	assert.Len(t, h.timeline.Jobs(), 6)
	assert.True(t, h.reminders.Audit().Consistent())
}

func TestSetDeadline_RegistrationFailureRestoresJobs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	loc := h.clock.Location()
	_, err := h.svc.StartTask(ctx, key, "", "2025-11-30")
	require.NoError(t, err)

	failed := false
	h.timeline.FailWhen(func(id tasks.JobID) error {
		if id.Tag == string(tasks.Checkpoint3D) && !failed {
			failed = true
			return errors.New("down")
		}
		return nil
	})
	_, err = h.svc.SetDeadline(ctx, key, "2025-12-20")
	require.Error(t, err)
	assert.True(t, tasks.IsScheduling(err))

	trigger, ok := h.timeline.Trigger(tasks.CheckpointJob(key, tasks.Checkpoint3D))
	require.True(t, ok)
	assert.True(t, time.Date(2025, 11, 27, 23, 59, 0, 0, loc).Equal(trigger.At))
	assert.Len(t, h.timeline.Jobs(), 6)
	assert.True(t, h.reminders.Audit().Consistent())
}

func TestThemeStoredAsGiven(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.StartTask(ctx, key, " 環境と経済 ", "2025-11-30")
	require.NoError(t, err)
	st, err := h.svc.Status(key)
	require.NoError(t, err)
	assert.Equal(t, " 環境と経済 ", st.Theme)

	require.NoError(t, h.svc.SetTheme(ctx, key, "再生可能エネルギー "))
	st, err = h.svc.Status(key)
	require.NoError(t, err)
	assert.Equal(t, "再生可能エネルギー ", st.Theme)
}

func TestMarkMilestone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ms, err := h.svc.MarkMilestone(ctx, key, "提出")
		require.NoError(t, err)
		assert.True(t, ms[tasks.MilestoneSubmit])
	}

	saves := h.store.Saves()
	_, err := h.svc.MarkMilestone(ctx, key, "不明")
	require.Error(t, err)
	assert.True(t, tasks.IsValidation(err))
	assert.Equal(t, saves, h.store.Saves())

	st, err := h.svc.Status(key)
	require.NoError(t, err)
	for _, m := range st.Milestones {
		assert.Equal(t, m.Name == tasks.MilestoneSubmit, m.Done, m.Name)
	}
}

func TestAttachThread_FirstWins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	got, err := h.svc.AttachThread(ctx, key, "th-1")
	require.NoError(t, err)
	assert.Equal(t, "th-1", got)

	got, err = h.svc.AttachThread(ctx, key, "th-2")
	require.NoError(t, err)
	assert.Equal(t, "th-1", got)

	_, err = h.svc.AttachThread(ctx, key, " ")
	assert.True(t, tasks.IsValidation(err))
}

func TestStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.StartTask(ctx, key, "環境問題", "2025-11-30")
	require.NoError(t, err)
	for _, n := range []string{"one", "two", "three", "four"} {
		_, err := h.svc.LogProgress(ctx, key, n)
		require.NoError(t, err)
		h.clock.Advance(time.Minute)
	}

	st, err := h.svc.Status(key)
	require.NoError(t, err)
	assert.Equal(t, "環境問題", st.Theme)
	assert.Equal(t, "2025-11-30 23:59", st.Deadline)
	require.Len(t, st.Recent, 3)
	assert.Equal(t, "two", st.Recent[0].Note)
	assert.Equal(t, "four", st.Recent[2].Note)
	require.NotNil(t, st.NextCheckpoint)
	assert.Equal(t, tasks.Checkpoint2W, st.NextCheckpoint.Tag)
	assert.Equal(t, "2025-11-16 23:59", st.NextCheckpoint.At)
	assert.Len(t, st.Milestones, len(tasks.Milestones))
}

func TestDeeds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		n, err := h.svc.RecordDeed(ctx, key, "deed")
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	today := h.svc.Today(key)
	assert.Equal(t, "2025-11-01", today.Date)
	assert.Len(t, today.Deeds, 3)

	week := h.svc.LastWeek(key)
	require.Len(t, week, 7)
	assert.Equal(t, 3, week[6].Count)

	sr := h.svc.Streak(key)
	assert.Equal(t, 1, sr.Streak)
	assert.Len(t, sr.Week, 7)
}

func TestPersistenceFailureReported(t *testing.T) {
	h := newHarness(t)
	h.store.FailSaves(errors.New("disk full"))

	_, err := h.svc.LogProgress(context.Background(), key, "note")
	require.Error(t, err)
	assert.True(t, tasks.IsPersistence(err))

	_, err = h.svc.Status(key)
	assert.ErrorIs(t, err, tasks.ErrNotFound)
}

func TestPublishesEvents(t *testing.T) {
	h := newHarness(t)
	ch, unsub := h.bus.SubscribeChan(16, events.EventReportStarted, events.EventDeedRecorded)
	defer unsub()

	ctx := context.Background()
	_, err := h.svc.StartTask(ctx, key, "t", "2025-11-30")
	require.NoError(t, err)
	_, err = h.svc.RecordDeed(ctx, key, "wrote")
	require.NoError(t, err)

	var got []events.EventType
	for len(got) < 2 {
		select {
		case e := <-ch:
			assert.Equal(t, "g1", e.GroupID)
			got = append(got, e.Type)
		case <-time.After(time.Second):
			t.Fatalf("timeout, got %v", got)
		}
	}
	assert.ElementsMatch(t, []events.EventType{events.EventReportStarted, events.EventDeedRecorded}, got)
}
