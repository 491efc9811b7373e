package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dohr-michael/nudge/internal/scheduler"
	"github.com/dohr-michael/nudge/internal/state"
	"github.com/dohr-michael/nudge/internal/tasks"
)

var (
	nightlyFirst = tasks.GlobalJob(tasks.TagNightlyFirst)
	nightlyLoop  = tasks.GlobalJob(tasks.TagNightlyLoop)
)

func TestNightlyArm_TodayOrTomorrow(t *testing.T) {
	loc := tokyo(t)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before 21:30", time.Date(2025, 11, 1, 20, 0, 0, 0, loc), time.Date(2025, 11, 1, 21, 30, 0, 0, loc)},
		{"exactly 21:30", time.Date(2025, 11, 1, 21, 30, 0, 0, loc), time.Date(2025, 11, 2, 21, 30, 0, 0, loc)},
		{"after 21:30", time.Date(2025, 11, 1, 23, 0, 0, 0, loc), time.Date(2025, 11, 2, 21, 30, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.now)
			first, err := f.nightly.Arm()
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(first), "got %s", first)

			trig, ok := f.timeline.Trigger(nightlyFirst)
			require.True(t, ok)
			assert.True(t, trig.IsOnce())
		})
	}
}

func TestNightlyArm_RestartDoesNotDuplicate(t *testing.T) {
	loc := tokyo(t)
	f := newFixture(t, time.Date(2025, 11, 1, 20, 0, 0, 0, loc))

	_, err := f.nightly.Arm()
	require.NoError(t, err)
	require.True(t, f.timeline.Fire(nightlyFirst))
	require.Contains(t, f.timeline.Jobs(), nightlyLoop)

	for i := 0; i < 3; i++ {
		_, err := f.nightly.Arm()
		require.NoError(t, err)
	}
	assert.Equal(t, []tasks.JobID{nightlyFirst}, f.timeline.Jobs())
}

func TestNightly_FirstFireInstallsLoop(t *testing.T) {
	loc := tokyo(t)
	f := newFixture(t, time.Date(2025, 11, 1, 20, 0, 0, 0, loc))
	f.attachThread(t, key, "th")

	first, err := f.nightly.Arm()
	require.NoError(t, err)

	fired := f.timeline.RunUntil(first.Add(48 * time.Hour))
	assert.Equal(t, []tasks.JobID{nightlyFirst, nightlyLoop, nightlyLoop}, fired)

	trig, ok := f.timeline.Trigger(nightlyLoop)
	require.True(t, ok)
	assert.Equal(t, 24*time.Hour, trig.Every)
	assert.True(t, first.Add(24*time.Hour).Equal(trig.At))
	assert.Len(t, f.notifier.Calls(), 3)
}

func TestRollCall_PerTaskIsolation(t *testing.T) {
	f := newFixture(t, time.Now())
	f.attachThread(t, tasks.Key{GroupID: "a", UserID: "1"}, "th-a")
	f.attachThread(t, tasks.Key{GroupID: "b", UserID: "1"}, "th-b")
	f.attachThread(t, tasks.Key{GroupID: "c", UserID: "1"}, "th-c")
	require.NoError(t, f.state.Update(context.Background(), "no thread", func(doc *state.Document) error {
		doc.Upsert(tasks.Key{GroupID: "d", UserID: "1"}, time.Now())
		return nil
	}))
	f.notifier.failOn["b"] = true

	sent := f.nightly.RollCall(context.Background())
	assert.Equal(t, 2, sent)
	assert.Equal(t, []call{
		{Kind: "rollcall", Group: "a", Thread: "th-a"},
		{Kind: "rollcall", Group: "c", Thread: "th-c"},
	}, f.notifier.Calls())
}

type panickyNotifier struct{ recordingNotifier }

func (p *panickyNotifier) OnNightlyRollCall(ctx context.Context, group, thread string) error {
	if group == "a" {
		panic("boom")
	}
	return p.recordingNotifier.OnNightlyRollCall(ctx, group, thread)
}

func TestRollCall_RecoversPanics(t *testing.T) {
	f := newFixture(t, time.Now())
	f.attachThread(t, tasks.Key{GroupID: "a", UserID: "1"}, "th-a")
	f.attachThread(t, tasks.Key{GroupID: "b", UserID: "1"}, "th-b")

	n := &panickyNotifier{}
	nightly := scheduler.NewNightly(f.timeline, f.clock, f.state, n, 21, 30)
	assert.Equal(t, 1, nightly.RollCall(context.Background()))
	assert.Len(t, n.Calls(), 1)
}
