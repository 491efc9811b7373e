package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dohr-michael/nudge/internal/clock"
	"github.com/dohr-michael/nudge/internal/state"
	"github.com/dohr-michael/nudge/internal/tasks"
)

// Defaults for ReminderOptions.
const (
	DefaultMorningHour      = 7
	DefaultMorningMinute    = 45
	DefaultWeeklyFirstDelay = 5 * time.Second
	DefaultWeeklyInterval   = 7 * 24 * time.Hour
)

// ReminderOptions tunes checkpoint and weekly timings.
type ReminderOptions struct {
	MorningHour      int
	MorningMinute    int
	WeeklyFirstDelay time.Duration
	WeeklyInterval   time.Duration
}

// DefaultReminderOptions returns the stock timings: due-day reminder at
// 07:45, weekly ping 5s after scheduling and then every 7 days.
func DefaultReminderOptions() ReminderOptions {
	return ReminderOptions{
		MorningHour:      DefaultMorningHour,
		MorningMinute:    DefaultMorningMinute,
		WeeklyFirstDelay: DefaultWeeklyFirstDelay,
		WeeklyInterval:   DefaultWeeklyInterval,
	}
}

// Reminders registers per-task checkpoint and weekly jobs.
type Reminders struct {
	timeline Timeline
	clock    clock.Clock
	state    *state.State
	notifier Notifier
	opts     ReminderOptions
}

// NewReminders wires the reminder scheduler.
func NewReminders(tl Timeline, clk clock.Clock, st *state.State, n Notifier, opts ReminderOptions) *Reminders {
	return &Reminders{
		timeline: tl,
		clock:    clk,
		state:    st,
		notifier: n,
		opts:     opts,
	}
}

// Checkpoints returns the five checkpoint instants of deadline.
func (r *Reminders) Checkpoints(deadline time.Time) []tasks.Checkpoint {
	return tasks.ComputeCheckpoints(deadline, r.clock.Location(), r.opts.MorningHour, r.opts.MorningMinute)
}

// NextCheckpoint returns the first checkpoint of t strictly after now.
func (r *Reminders) NextCheckpoint(t *tasks.Task) (tasks.Checkpoint, bool) {
	if t.Deadline == nil {
		return tasks.Checkpoint{}, false
	}
	now := r.clock.Now()
	for _, cp := range r.Checkpoints(*t.Deadline) {
		if cp.At.After(now) {
			return cp, true
		}
	}
	return tasks.Checkpoint{}, false
}

// Reschedule replaces every job owned by the task at key. It must run inside
// a state.Update on doc; the caller persists doc once afterwards.
//
// A task without a deadline is left untouched. Previously owned jobs are
// cancelled, then future checkpoints and the weekly ping are registered.
// If any registration fails, the jobs registered by this call are
// cancelled, the task is left owning none, and a *tasks.SchedulingError
// is returned.
func (r *Reminders) Reschedule(doc *state.Document, key tasks.Key) error {
	t, ok := doc.Task(key)
	if !ok || t.Deadline == nil {
		return nil
	}

	for _, id := range t.Jobs {
		if !r.timeline.Cancel(id) {
			slog.Debug("scheduler: cancel missed", "job", id.String())
		}
	}
	t.Jobs = nil

	now := r.clock.Now()
	var registered []tasks.JobID
	register := func(id tasks.JobID, trigger Trigger, fn func()) error {
		if err := r.timeline.Schedule(id, trigger, fn); err != nil {
			for _, done := range registered {
				r.timeline.Cancel(done)
			}
			slog.Error("scheduler: registration failed", "job", id.String(), "error", err)
			return &tasks.SchedulingError{Job: id, Err: err}
		}
		registered = append(registered, id)
		return nil
	}

	for _, cp := range r.Checkpoints(*t.Deadline) {
		if !cp.At.After(now) {
			continue
		}
		if err := register(tasks.CheckpointJob(key, cp.Tag), Once(cp.At), r.checkpointJob(key, cp.Tag)); err != nil {
			return err
		}
	}

	weekly := Repeat(now.Add(r.opts.WeeklyFirstDelay), r.opts.WeeklyInterval)
	if err := register(tasks.WeeklyJob(key), weekly, r.weeklyJob(key)); err != nil {
		return err
	}

	t.Jobs = registered
	slog.Info("scheduler: rescheduled", "task", key.String(), "jobs", len(registered))
	return nil
}

// Restore realigns the live jobs of key with the committed document. Call it
// after an Update that rescheduled key failed: Reschedule acts on the
// timeline before the save, so a rejected write would otherwise leave jobs
// firing for a deadline that was never stored.
func (r *Reminders) Restore(key tasks.Key) error {
	var err error
	r.state.Committed(func(doc *state.Document) {
		r.cancelOwned(key)
		scratch := doc.Clone()
		if t, ok := scratch.Task(key); ok {
			t.Jobs = nil
		}
		err = r.Reschedule(scratch, key)
	})
	if err != nil {
		return fmt.Errorf("restore %s: %w", key, err)
	}
	slog.Info("scheduler: restored jobs from committed state", "task", key.String())
	return nil
}

// cancelOwned cancels every job id key can own, recorded or not.
func (r *Reminders) cancelOwned(key tasks.Key) {
	for _, tag := range tasks.CheckpointTags {
		r.timeline.Cancel(tasks.CheckpointJob(key, tag))
	}
	r.timeline.Cancel(tasks.WeeklyJob(key))
}

// Resume re-registers the jobs of every task with a deadline. It runs on
// startup, where the timeline starts empty, and is safe to repeat.
// Failures are isolated per task and joined into the returned error.
func (r *Reminders) Resume(ctx context.Context) (int, error) {
	var resumed int
	var errs []error
	err := r.state.Update(ctx, "resume reminders", func(doc *state.Document) error {
		for _, key := range doc.Keys() {
			t, _ := doc.Task(key)
			if t.Deadline == nil {
				continue
			}
			if err := r.Reschedule(doc, key); err != nil {
				errs = append(errs, fmt.Errorf("resume %s: %w", key, err))
				continue
			}
			resumed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return resumed, errors.Join(errs...)
}

func (r *Reminders) checkpointJob(key tasks.Key, tag tasks.CheckpointTag) func() {
	return func() {
		thread, ok := r.resolveThread(key)
		if !ok {
			slog.Debug("scheduler: checkpoint skipped, no thread", "task", key.String(), "tag", tag)
			return
		}
		if err := r.notifier.OnCheckpoint(context.Background(), key.GroupID, thread, tag); err != nil {
			slog.Warn("scheduler: checkpoint delivery failed", "task", key.String(), "tag", tag, "error", err)
		}
	}
}

func (r *Reminders) weeklyJob(key tasks.Key) func() {
	return func() {
		thread, ok := r.resolveThread(key)
		if !ok {
			slog.Debug("scheduler: weekly ping skipped, no thread", "task", key.String())
			return
		}
		if err := r.notifier.OnWeeklyPing(context.Background(), key.GroupID, thread); err != nil {
			slog.Warn("scheduler: weekly delivery failed", "task", key.String(), "error", err)
		}
	}
}

// resolveThread reads the current thread handle of key from state.
func (r *Reminders) resolveThread(key tasks.Key) (string, bool) {
	var thread string
	_ = r.state.View(func(doc *state.Document) error {
		if t, ok := doc.Task(key); ok {
			thread = t.ThreadID
		}
		return nil
	})
	return thread, thread != ""
}

// AuditReport compares recorded job ids with the timeline.
type AuditReport struct {
	Live []tasks.JobID `json:"live"`
	// Stale ids are recorded on a task but neither live nor elapsed.
	Stale []tasks.JobID `json:"stale"`
	// Orphaned ids are live task jobs that no task records.
	Orphaned []tasks.JobID `json:"orphaned"`
	// Elapsed ids are recorded checkpoints that have already fired.
	Elapsed []tasks.JobID `json:"elapsed"`
	// Drifted ids are live checkpoints whose firing instant differs from
	// the one the stored deadline yields.
	Drifted []tasks.JobID `json:"drifted"`
}

// Consistent reports whether no stale, orphaned or drifted ids were found.
func (a AuditReport) Consistent() bool {
	return len(a.Stale) == 0 && len(a.Orphaned) == 0 && len(a.Drifted) == 0
}

// Audit detects jobs left behind by a failed write or registration.
func (r *Reminders) Audit() AuditReport {
	live := r.timeline.Jobs()
	report := AuditReport{Live: live}
	now := r.clock.Now()

	recorded := make(map[tasks.JobID]bool)
	_ = r.state.View(func(doc *state.Document) error {
		for _, key := range doc.Keys() {
			t, _ := doc.Task(key)
			due := make(map[string]time.Time)
			if t.Deadline != nil {
				for _, cp := range r.Checkpoints(*t.Deadline) {
					due[string(cp.Tag)] = cp.At
				}
			}
			for _, id := range t.Jobs {
				recorded[id] = true
				at, isCheckpoint := due[id.Tag]
				switch {
				case slices.Contains(live, id):
					if trigger, ok := r.timeline.Trigger(id); ok && isCheckpoint && !trigger.At.Equal(at) {
						report.Drifted = append(report.Drifted, id)
					}
				case isCheckpoint && !at.After(now):
					report.Elapsed = append(report.Elapsed, id)
				default:
					report.Stale = append(report.Stale, id)
				}
			}
		}
		return nil
	})

	for _, id := range live {
		if !id.IsGlobal() && !recorded[id] {
			report.Orphaned = append(report.Orphaned, id)
		}
	}
	return report
}
