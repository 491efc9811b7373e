// Package schedtest provides a deterministic scheduler.Timeline for tests.
package schedtest

import (
	"slices"
	"sync"
	"time"

	"github.com/dohr-michael/nudge/internal/scheduler"
	"github.com/dohr-michael/nudge/internal/tasks"
)

type job struct {
	trigger scheduler.Trigger
	next    time.Time
	fn      func()
}

// ManualTimeline records registrations and fires jobs only when asked.
type ManualTimeline struct {
	mu        sync.Mutex
	jobs      map[tasks.JobID]*job
	scheduled []tasks.JobID
	cancelled []tasks.JobID
	fail      func(tasks.JobID) error
}

var _ scheduler.Timeline = (*ManualTimeline)(nil)

// NewManualTimeline returns an empty timeline.
func NewManualTimeline() *ManualTimeline {
	return &ManualTimeline{jobs: make(map[tasks.JobID]*job)}
}

// FailWhen makes Schedule return the error of fn when it is non-nil.
func (m *ManualTimeline) FailWhen(fn func(tasks.JobID) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fn
}

func (m *ManualTimeline) Schedule(id tasks.JobID, trigger scheduler.Trigger, fn func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail != nil {
		if err := m.fail(id); err != nil {
			return err
		}
	}
	m.jobs[id] = &job{trigger: trigger, next: trigger.At, fn: fn}
	m.scheduled = append(m.scheduled, id)
	return nil
}

func (m *ManualTimeline) Cancel(id tasks.JobID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[id]; !ok {
		return false
	}
	delete(m.jobs, id)
	m.cancelled = append(m.cancelled, id)
	return true
}

func (m *ManualTimeline) Jobs() []tasks.JobID {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]tasks.JobID, 0, len(m.jobs))
	for id := range m.jobs {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, tasks.JobID.Compare)
	return ids
}

// Trigger returns the trigger of a live job.
func (m *ManualTimeline) Trigger(id tasks.JobID) (scheduler.Trigger, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return scheduler.Trigger{}, false
	}
	return j.trigger, true
}

// Scheduled returns every id passed to a successful Schedule, in order.
func (m *ManualTimeline) Scheduled() []tasks.JobID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.scheduled)
}

// Cancelled returns every id removed by Cancel, in order.
func (m *ManualTimeline) Cancelled() []tasks.JobID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.cancelled)
}

// Fire runs a live job synchronously, as if its time had come. One-shot
// jobs are removed first. It reports whether the job existed.
func (m *ManualTimeline) Fire(id tasks.JobID) bool {
	m.mu.Lock()
	j, ok := m.jobs[id]
	if ok {
		m.advance(id, j)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	j.fn()
	return true
}

// RunUntil fires, in chronological order, every job due at or before t.
// Repeating jobs fire once per elapsed period. It returns the fired ids.
func (m *ManualTimeline) RunUntil(t time.Time) []tasks.JobID {
	var fired []tasks.JobID
	for {
		m.mu.Lock()
		var (
			nextID  tasks.JobID
			nextJob *job
		)
		for id, j := range m.jobs {
			if j.next.After(t) {
				continue
			}
			if nextJob == nil || j.next.Before(nextJob.next) ||
				(j.next.Equal(nextJob.next) && id.Compare(nextID) < 0) {
				nextID, nextJob = id, j
			}
		}
		if nextJob == nil {
			m.mu.Unlock()
			return fired
		}
		m.advance(nextID, nextJob)
		m.mu.Unlock()

		nextJob.fn()
		fired = append(fired, nextID)
	}
}

// advance moves j past its current firing. Caller must hold m.mu.
func (m *ManualTimeline) advance(id tasks.JobID, j *job) {
	if j.trigger.IsOnce() {
		delete(m.jobs, id)
		return
	}
	j.next = j.next.Add(j.trigger.Every)
}
