package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dohr-michael/nudge/internal/clock"
	"github.com/dohr-michael/nudge/internal/state"
	"github.com/dohr-michael/nudge/internal/tasks"
)

// Defaults for the nightly roll-call.
const (
	DefaultNightlyHour   = 21
	DefaultNightlyMinute = 30
	nightlyInterval      = 24 * time.Hour
)

// Nightly manages the process-wide roll-call job.
type Nightly struct {
	timeline Timeline
	clock    clock.Clock
	state    *state.State
	notifier Notifier

	mu     sync.Mutex
	hour   int
	minute int
}

// NewNightly returns a roll-call manager firing at hour:minute local time.
func NewNightly(tl Timeline, clk clock.Clock, st *state.State, n Notifier, hour, minute int) *Nightly {
	return &Nightly{
		timeline: tl,
		clock:    clk,
		state:    st,
		notifier: n,
		hour:     hour,
		minute:   minute,
	}
}

// SetTime changes the wall-clock time used by the next Arm.
func (n *Nightly) SetTime(hour, minute int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hour, n.minute = hour, minute
}

// Arm cancels any armed roll-call jobs and registers the first one at the
// next occurrence of the configured time. It returns that instant.
func (n *Nightly) Arm() (time.Time, error) {
	n.mu.Lock()
	hour, minute := n.hour, n.minute
	n.mu.Unlock()

	firstID := tasks.GlobalJob(tasks.TagNightlyFirst)
	loopID := tasks.GlobalJob(tasks.TagNightlyLoop)
	n.timeline.Cancel(firstID)
	n.timeline.Cancel(loopID)

	first := clock.NextAt(n.clock.Now(), hour, minute, n.clock.Location())
	err := n.timeline.Schedule(firstID, Once(first), func() {
		n.RollCall(context.Background())
		n.installLoop(first)
	})
	if err != nil {
		return time.Time{}, &tasks.SchedulingError{Job: firstID, Err: err}
	}

	slog.Info("scheduler: armed nightly", "first", first)
	return first, nil
}

func (n *Nightly) installLoop(firedAt time.Time) {
	loopID := tasks.GlobalJob(tasks.TagNightlyLoop)
	err := n.timeline.Schedule(loopID, Repeat(firedAt.Add(nightlyInterval), nightlyInterval), func() {
		n.RollCall(context.Background())
	})
	if err != nil {
		slog.Error("scheduler: install nightly loop", "error", err)
	}
}

type rollCallTarget struct {
	key    tasks.Key
	thread string
}

// RollCall notifies every task that has a group and a thread. A failure
// for one task is logged and does not stop the others. It returns the
// number of successful notifications.
func (n *Nightly) RollCall(ctx context.Context) int {
	var targets []rollCallTarget
	_ = n.state.View(func(doc *state.Document) error {
		for _, key := range doc.Keys() {
			t, _ := doc.Task(key)
			if t.GroupID == "" || !t.HasThread() {
				continue
			}
			targets = append(targets, rollCallTarget{key: key, thread: t.ThreadID})
		}
		return nil
	})

	var sent int
	for _, tgt := range targets {
		if err := n.notify(ctx, tgt); err != nil {
			slog.Warn("scheduler: roll-call delivery failed", "task", tgt.key.String(), "error", err)
			continue
		}
		sent++
	}
	slog.Info("scheduler: roll-call done", "targets", len(targets), "sent", sent)
	return sent
}

func (n *Nightly) notify(ctx context.Context, tgt rollCallTarget) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panic: %v", r)
		}
	}()
	return n.notifier.OnNightlyRollCall(ctx, tgt.key.GroupID, tgt.thread)
}
