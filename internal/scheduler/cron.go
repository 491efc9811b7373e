package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	cron "github.com/netresearch/go-cron"

	"github.com/dohr-michael/nudge/internal/tasks"
)

// triggerSchedule adapts a Trigger to cron.Schedule.
type triggerSchedule struct {
	trigger Trigger
}

func (s triggerSchedule) Next(t time.Time) time.Time {
	return s.trigger.Next(t)
}

// CronTimeline runs jobs on a cron runner in a fixed location.
type CronTimeline struct {
	cron *cron.Cron

	mu      sync.Mutex
	entries map[tasks.JobID]*cronEntry
	stopped bool
}

// cronEntry is only read or written under CronTimeline.mu.
type cronEntry struct {
	id      cron.EntryID
	trigger Trigger
}

// NewCronTimeline returns a timeline evaluating triggers in loc. Call Start
// to begin firing.
func NewCronTimeline(loc *time.Location) *CronTimeline {
	return &CronTimeline{
		cron:    cron.New(cron.WithLocation(loc)),
		entries: make(map[tasks.JobID]*cronEntry),
	}
}

// Start begins dispatching due jobs in the background.
func (t *CronTimeline) Start() {
	t.cron.Start()
	slog.Info("scheduler: timeline started")
}

// Stop halts dispatching and waits for running jobs or ctx.
func (t *CronTimeline) Stop(ctx context.Context) {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()

	select {
	case <-t.cron.Stop().Done():
	case <-ctx.Done():
		slog.Warn("scheduler: stop timed out with jobs still running")
	}
	slog.Info("scheduler: timeline stopped")
}

func (t *CronTimeline) Schedule(id tasks.JobID, trigger Trigger, fn func()) error {
	if err := trigger.validate(); err != nil {
		return fmt.Errorf("schedule %s: %w", id, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return ErrTimelineStopped
	}
	if old, ok := t.entries[id]; ok {
		t.cron.Remove(old.id)
	}

	entry := &cronEntry{trigger: trigger}
	job := cron.FuncJob(func() {
		fn()
		if trigger.IsOnce() {
			t.forget(id, entry)
		}
	})
	entry.id = t.cron.Schedule(triggerSchedule{trigger: trigger}, job)
	t.entries[id] = entry

	slog.Debug("scheduler: registered", "job", id.String(), "at", trigger.At, "every", trigger.Every)
	return nil
}

// forget drops a fired one-shot unless it has been replaced since.
func (t *CronTimeline) forget(id tasks.JobID, entry *cronEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.entries[id]; ok && cur == entry {
		delete(t.entries, id)
		t.cron.Remove(entry.id)
	}
}

func (t *CronTimeline) Cancel(id tasks.JobID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[id]
	if !ok {
		return false
	}
	t.cron.Remove(entry.id)
	delete(t.entries, id)
	return true
}

func (t *CronTimeline) Trigger(id tasks.JobID) (Trigger, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[id]
	if !ok {
		return Trigger{}, false
	}
	return entry.trigger, true
}

func (t *CronTimeline) Jobs() []tasks.JobID {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]tasks.JobID, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, tasks.JobID.Compare)
	return ids
}
