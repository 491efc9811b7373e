package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dohr-michael/nudge/internal/clock"
	"github.com/dohr-michael/nudge/internal/scheduler"
	"github.com/dohr-michael/nudge/internal/scheduler/schedtest"
	"github.com/dohr-michael/nudge/internal/state"
	"github.com/dohr-michael/nudge/internal/tasks"
)

type call struct {
	Kind   string
	Group  string
	Thread string
	Tag    tasks.CheckpointTag
}

// recordingNotifier captures calls and can fail per group.
type recordingNotifier struct {
	mu     sync.Mutex
	calls  []call
	failOn map[string]bool
}

func (n *recordingNotifier) record(c call) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failOn[c.Group] {
		return errors.New("delivery refused")
	}
	n.calls = append(n.calls, c)
	return nil
}

func (n *recordingNotifier) OnCheckpoint(_ context.Context, group, thread string, tag tasks.CheckpointTag) error {
	return n.record(call{Kind: "checkpoint", Group: group, Thread: thread, Tag: tag})
}

func (n *recordingNotifier) OnWeeklyPing(_ context.Context, group, thread string) error {
	return n.record(call{Kind: "weekly", Group: group, Thread: thread})
}

func (n *recordingNotifier) OnNightlyRollCall(_ context.Context, group, thread string) error {
	return n.record(call{Kind: "rollcall", Group: group, Thread: thread})
}

func (n *recordingNotifier) Calls() []call {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]call(nil), n.calls...)
}

type fixture struct {
	clock     *clock.Fixed
	store     *state.MemoryStore
	state     *state.State
	timeline  *schedtest.ManualTimeline
	notifier  *recordingNotifier
	reminders *scheduler.Reminders
	nightly   *scheduler.Nightly
}

func tokyo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	return loc
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	store := state.NewMemoryStore()
	st, err := state.Open(context.Background(), store)
	require.NoError(t, err)

	f := &fixture{
		clock:    clock.NewFixed(now),
		store:    store,
		state:    st,
		timeline: schedtest.NewManualTimeline(),
		notifier: &recordingNotifier{failOn: map[string]bool{}},
	}
	f.reminders = scheduler.NewReminders(f.timeline, f.clock, st, f.notifier, scheduler.DefaultReminderOptions())
	f.nightly = scheduler.NewNightly(f.timeline, f.clock, st, f.notifier, scheduler.DefaultNightlyHour, scheduler.DefaultNightlyMinute)
	return f
}

// setDeadline upserts key with deadline and reschedules it in one update.
func (f *fixture) setDeadline(t *testing.T, key tasks.Key, deadline time.Time) error {
	t.Helper()
	return f.state.Update(context.Background(), "set deadline", func(doc *state.Document) error {
		task := doc.Upsert(key, f.clock.Now())
		task.Deadline = &deadline
		return f.reminders.Reschedule(doc, key)
	})
}

func (f *fixture) attachThread(t *testing.T, key tasks.Key, thread string) {
	t.Helper()
	require.NoError(t, f.state.Update(context.Background(), "attach thread", func(doc *state.Document) error {
		doc.Upsert(key, f.clock.Now()).ThreadID = thread
		return nil
	}))
}

func (f *fixture) task(t *testing.T, key tasks.Key) *tasks.Task {
	t.Helper()
	task, ok := f.state.Snapshot().Task(key)
	require.True(t, ok)
	return task
}
