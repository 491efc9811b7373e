// Package scheduler owns every time-based job: deadline checkpoints, the
// per-task weekly ping and the nightly roll-call.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/dohr-michael/nudge/internal/tasks"
)

// ErrTimelineStopped is returned when scheduling on a stopped timeline.
var ErrTimelineStopped = errors.New("timeline stopped")

// Trigger describes when a job fires. With Every == 0 it fires once at At;
// otherwise it fires at At and then every Every.
type Trigger struct {
	At    time.Time
	Every time.Duration
}

// Once returns a one-shot trigger.
func Once(at time.Time) Trigger {
	return Trigger{At: at}
}

// Repeat returns a trigger firing at first and then every interval.
func Repeat(first time.Time, every time.Duration) Trigger {
	return Trigger{At: first, Every: every}
}

// IsOnce reports whether the trigger fires a single time.
func (t Trigger) IsOnce() bool { return t.Every == 0 }

func (t Trigger) validate() error {
	if t.At.IsZero() {
		return errors.New("trigger has no start time")
	}
	if t.Every < 0 {
		return errors.New("trigger interval must not be negative")
	}
	return nil
}

// Next returns the first firing instant strictly after now, or the zero
// time when a one-shot trigger has passed.
func (t Trigger) Next(now time.Time) time.Time {
	if now.Before(t.At) {
		return t.At
	}
	if t.IsOnce() {
		return time.Time{}
	}
	n := now.Sub(t.At)/t.Every + 1
	return t.At.Add(n * t.Every)
}

// Timeline is a registry of jobs keyed by JobID. Scheduling an id that is
// already live replaces it. Cancelling an unknown id is a no-op.
type Timeline interface {
	Schedule(id tasks.JobID, trigger Trigger, fn func()) error
	Cancel(id tasks.JobID) bool
	Jobs() []tasks.JobID
	// Trigger returns the trigger of a live job.
	Trigger(id tasks.JobID) (Trigger, bool)
}

// Notifier receives fired reminders. Implementations turn them into
// user-visible messages; the scheduler only supplies identity and tag.
type Notifier interface {
	OnCheckpoint(ctx context.Context, groupID, threadID string, tag tasks.CheckpointTag) error
	OnWeeklyPing(ctx context.Context, groupID, threadID string) error
	OnNightlyRollCall(ctx context.Context, groupID, threadID string) error
}
