package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dohr-michael/nudge/internal/tasks"
)

func TestTrigger_Next(t *testing.T) {
	base := time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC)

	once := Once(base)
	if got := once.Next(base.Add(-time.Minute)); !got.Equal(base) {
		t.Fatalf("expected %v before start, got %v", base, got)
	}
	if got := once.Next(base); !got.IsZero() {
		t.Fatalf("expected zero after one-shot fired, got %v", got)
	}

	every := Repeat(base, time.Hour)
	if got := every.Next(base); !got.Equal(base.Add(time.Hour)) {
		t.Fatalf("expected %v, got %v", base.Add(time.Hour), got)
	}
	if got := every.Next(base.Add(90 * time.Minute)); !got.Equal(base.Add(2 * time.Hour)) {
		t.Fatalf("expected %v, got %v", base.Add(2*time.Hour), got)
	}
}

func TestTrigger_Validate(t *testing.T) {
	if err := (Trigger{}).validate(); err == nil {
		t.Fatal("expected error for zero start")
	}
	if err := (Trigger{At: time.Now(), Every: -time.Second}).validate(); err == nil {
		t.Fatal("expected error for negative interval")
	}
}

func newTestTimeline(t *testing.T) *CronTimeline {
	t.Helper()
	tl := NewCronTimeline(time.UTC)
	tl.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		tl.Stop(ctx)
	})
	return tl
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestCronTimeline_OnceFiresAndForgets(t *testing.T) {
	tl := newTestTimeline(t)
	id := tasks.CheckpointJob(tasks.Key{GroupID: "g", UserID: "u"}, tasks.Checkpoint1D)

	var fired atomic.Int32
	if err := tl.Schedule(id, Once(time.Now().Add(50*time.Millisecond)), func() { fired.Add(1) }); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if jobs := tl.Jobs(); len(jobs) != 1 {
		t.Fatalf("expected 1 live job, got %d", len(jobs))
	}

	waitFor(t, func() bool { return fired.Load() == 1 && len(tl.Jobs()) == 0 })

	time.Sleep(100 * time.Millisecond)
	if n := fired.Load(); n != 1 {
		t.Fatalf("one-shot fired %d times", n)
	}
}

func TestCronTimeline_Repeat(t *testing.T) {
	tl := newTestTimeline(t)
	id := tasks.WeeklyJob(tasks.Key{GroupID: "g", UserID: "u"})

	var fired atomic.Int32
	if err := tl.Schedule(id, Repeat(time.Now().Add(20*time.Millisecond), 50*time.Millisecond), func() { fired.Add(1) }); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	waitFor(t, func() bool { return fired.Load() >= 3 })
	if jobs := tl.Jobs(); len(jobs) != 1 {
		t.Fatalf("repeating job should stay live, got %d jobs", len(jobs))
	}
}

func TestCronTimeline_CancelBeforeFire(t *testing.T) {
	tl := newTestTimeline(t)
	id := tasks.CheckpointJob(tasks.Key{GroupID: "g", UserID: "u"}, tasks.Checkpoint0D)

	var fired atomic.Int32
	if err := tl.Schedule(id, Once(time.Now().Add(100*time.Millisecond)), func() { fired.Add(1) }); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if !tl.Cancel(id) {
		t.Fatal("expected Cancel to find the job")
	}
	if tl.Cancel(id) {
		t.Fatal("second Cancel should be a no-op")
	}

	time.Sleep(250 * time.Millisecond)
	if n := fired.Load(); n != 0 {
		t.Fatalf("cancelled job fired %d times", n)
	}
}

func TestCronTimeline_ScheduleReplaces(t *testing.T) {
	tl := newTestTimeline(t)
	id := tasks.GlobalJob(tasks.TagNightlyFirst)

	var first, second atomic.Int32
	far := time.Now().Add(time.Hour)
	if err := tl.Schedule(id, Once(far), func() { first.Add(1) }); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if err := tl.Schedule(id, Once(time.Now().Add(30*time.Millisecond)), func() { second.Add(1) }); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	waitFor(t, func() bool { return second.Load() == 1 })
	if first.Load() != 0 {
		t.Fatal("replaced job must not fire")
	}
}

func TestCronTimeline_StoppedRejects(t *testing.T) {
	tl := NewCronTimeline(time.UTC)
	tl.Start()
	tl.Stop(context.Background())

	err := tl.Schedule(tasks.GlobalJob(tasks.TagNightlyLoop), Once(time.Now().Add(time.Hour)), func() {})
	if err != ErrTimelineStopped {
		t.Fatalf("expected ErrTimelineStopped, got %v", err)
	}
}

func TestCronTimeline_Trigger(t *testing.T) {
	tl := newTestTimeline(t)
	id := tasks.CheckpointJob(tasks.Key{GroupID: "g", UserID: "u"}, tasks.Checkpoint2W)
	at := time.Now().Add(time.Hour).Truncate(time.Second)

	if err := tl.Schedule(id, Once(at), func() {}); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	got, ok := tl.Trigger(id)
	if !ok || !got.At.Equal(at) || !got.IsOnce() {
		t.Fatalf("Trigger = %+v, %v", got, ok)
	}

	tl.Cancel(id)
	if _, ok := tl.Trigger(id); ok {
		t.Fatal("cancelled job still has a trigger")
	}
}

func TestCronTimeline_ManyOneShotsForgetThemselves(t *testing.T) {
	tl := newTestTimeline(t)
	key := tasks.Key{GroupID: "g", UserID: "u"}

	var fired atomic.Int32
	at := time.Now().Add(20 * time.Millisecond)
	for i := 0; i < 50; i++ {
		id := tasks.JobID{Task: key, Tag: fmt.Sprintf("n%d", i)}
		if err := tl.Schedule(id, Once(at), func() { fired.Add(1) }); err != nil {
			t.Fatalf("Schedule: %v", err)
		}
	}

	waitFor(t, func() bool { return fired.Load() == 50 && len(tl.Jobs()) == 0 })
}
