// Package tracker is the inbound surface of nudge: every command a front-end
// can issue about a user's report or deed ledger goes through Service.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dohr-michael/nudge/internal/clock"
	"github.com/dohr-michael/nudge/internal/events"
	"github.com/dohr-michael/nudge/internal/ledger"
	"github.com/dohr-michael/nudge/internal/scheduler"
	"github.com/dohr-michael/nudge/internal/state"
	"github.com/dohr-michael/nudge/internal/tasks"
)

// statusNotes is how many recent progress notes Status returns.
const statusNotes = 3

// Config holds the collaborators of a Service.
type Config struct {
	State     *state.State
	Clock     clock.Clock
	Reminders *scheduler.Reminders
	Ledger    *ledger.Ledger
	Bus       *events.Bus // optional
}

// Service applies commands to the state and keeps reminders in sync.
type Service struct {
	state     *state.State
	clock     clock.Clock
	reminders *scheduler.Reminders
	ledger    *ledger.Ledger
	bus       *events.Bus
}

// New creates a Service.
func New(cfg Config) *Service {
	return &Service{
		state:     cfg.State,
		clock:     cfg.Clock,
		reminders: cfg.Reminders,
		ledger:    cfg.Ledger,
		bus:       cfg.Bus,
	}
}

// StartTask (re)starts the report of key with theme and deadline. Theme,
// progress and milestones are reset; an attached thread is kept.
func (s *Service) StartTask(ctx context.Context, key tasks.Key, theme, deadlineText string) (*tasks.Task, error) {
	deadline, err := tasks.ParseDeadline(deadlineText, s.clock.Location())
	if err != nil {
		return nil, err
	}
	var out *tasks.Task
	err = s.state.Update(ctx, "start task", func(doc *state.Document) error {
		now := s.clock.Now()
		t := doc.Upsert(key, now)
		t.Theme = theme
		t.Deadline = &deadline
		t.Progress = nil
		t.ResetMilestones()
		t.UpdatedAt = now
		if err := s.reminders.Reschedule(doc, key); err != nil {
			return err
		}
		out = t.Clone()
		return nil
	})
	if err != nil {
		s.restoreReminders(key)
		return nil, fmt.Errorf("start task %s: %w", key, err)
	}

	slog.Info("tracker: task started", "task", key.String(), "deadline", deadline, "jobs", len(out.Jobs))
	s.publish(events.ReportStartedPayload{
		GroupID:  key.GroupID,
		UserID:   key.UserID,
		Theme:    out.ThemeOrDefault(),
		Deadline: tasks.FormatDeadline(deadline, s.clock.Location()),
	})
	return out, nil
}

// SetTheme replaces the theme of key.
func (s *Service) SetTheme(ctx context.Context, key tasks.Key, theme string) error {
	err := s.state.Update(ctx, "set theme", func(doc *state.Document) error {
		now := s.clock.Now()
		t := doc.Upsert(key, now)
		t.Theme = theme
		t.UpdatedAt = now
		return nil
	})
	if err != nil {
		return fmt.Errorf("set theme %s: %w", key, err)
	}
	s.publish(events.ThemeSetPayload{GroupID: key.GroupID, UserID: key.UserID, Theme: theme})
	return nil
}

// SetDeadline parses deadlineText and reschedules every job of key.
func (s *Service) SetDeadline(ctx context.Context, key tasks.Key, deadlineText string) (*tasks.Task, error) {
	deadline, err := tasks.ParseDeadline(deadlineText, s.clock.Location())
	if err != nil {
		return nil, err
	}

	var out *tasks.Task
	err = s.state.Update(ctx, "set deadline", func(doc *state.Document) error {
		now := s.clock.Now()
		t := doc.Upsert(key, now)
		t.Deadline = &deadline
		t.UpdatedAt = now
		if err := s.reminders.Reschedule(doc, key); err != nil {
			return err
		}
		out = t.Clone()
		return nil
	})
	if err != nil {
		s.restoreReminders(key)
		return nil, fmt.Errorf("set deadline %s: %w", key, err)
	}

	s.publish(events.DeadlineSetPayload{
		GroupID:  key.GroupID,
		UserID:   key.UserID,
		Deadline: tasks.FormatDeadline(deadline, s.clock.Location()),
		Jobs:     len(out.Jobs),
	})
	return out, nil
}

// LogProgress appends a progress note to key.
func (s *Service) LogProgress(ctx context.Context, key tasks.Key, note string) (tasks.ProgressNote, error) {
	if strings.TrimSpace(note) == "" {
		return tasks.ProgressNote{}, &tasks.ValidationError{Field: "note", Reason: "required"}
	}

	var added tasks.ProgressNote
	err := s.state.Update(ctx, "log progress", func(doc *state.Document) error {
		now := s.clock.Now()
		t := doc.Upsert(key, now)
		added = t.AppendProgress(note, now)
		t.UpdatedAt = now
		return nil
	})
	if err != nil {
		return tasks.ProgressNote{}, fmt.Errorf("log progress %s: %w", key, err)
	}

	s.publish(events.ProgressLoggedPayload{GroupID: key.GroupID, UserID: key.UserID, Note: note, Ts: added.Ts})
	return added, nil
}

// MarkMilestone sets the named milestone. Unknown names fail validation
// before anything is touched. Marking twice is a no-op.
func (s *Service) MarkMilestone(ctx context.Context, key tasks.Key, name string) (map[tasks.Milestone]bool, error) {
	m, err := tasks.ParseMilestone(name)
	if err != nil {
		return nil, err
	}

	var out map[tasks.Milestone]bool
	err = s.state.Update(ctx, "mark milestone", func(doc *state.Document) error {
		now := s.clock.Now()
		t := doc.Upsert(key, now)
		t.Mark(m)
		t.UpdatedAt = now
		out = t.Clone().Milestones
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mark milestone %s: %w", key, err)
	}

	s.publish(events.MilestoneMarkedPayload{GroupID: key.GroupID, UserID: key.UserID, Milestone: string(m)})
	return out, nil
}

// AttachThread records the external conversation handle of key. The first
// attached handle wins; attaching again returns the existing one.
func (s *Service) AttachThread(ctx context.Context, key tasks.Key, threadID string) (string, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return "", &tasks.ValidationError{Field: "thread_id", Reason: "required"}
	}

	var current string
	var attached bool
	err := s.state.Update(ctx, "attach thread", func(doc *state.Document) error {
		now := s.clock.Now()
		t := doc.Upsert(key, now)
		if !t.HasThread() {
			t.ThreadID = threadID
			t.UpdatedAt = now
			attached = true
		}
		current = t.ThreadID
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("attach thread %s: %w", key, err)
	}

	if attached {
		s.publish(events.ThreadAttachedPayload{GroupID: key.GroupID, UserID: key.UserID, ThreadID: current})
	}
	return current, nil
}

// RecordDeed appends text to today's deeds of key and returns today's count.
func (s *Service) RecordDeed(ctx context.Context, key tasks.Key, text string) (int, error) {
	count, err := s.ledger.Record(ctx, key, text, "")
	if err != nil {
		return 0, fmt.Errorf("record deed %s: %w", key, err)
	}
	s.publish(events.DeedRecordedPayload{
		GroupID: key.GroupID,
		UserID:  key.UserID,
		Date:    s.ledger.Today(),
		Text:    text,
		Count:   count,
	})
	return count, nil
}

// Today lists today's deeds of key.
func (s *Service) Today(key tasks.Key) TodayReport {
	return TodayReport{Date: s.ledger.Today(), Deeds: s.ledger.List(key, "")}
}

// LastWeek returns the counts of the last seven days, today last.
func (s *Service) LastWeek(key tasks.Key) []ledger.DayCount {
	return s.ledger.LastNDays(key, ledger.DefaultWindow)
}

// Streak returns the current streak with the last seven days for context.
func (s *Service) Streak(key tasks.Key) StreakReport {
	return StreakReport{Streak: s.ledger.Streak(key), Week: s.LastWeek(key)}
}

// Status summarises the report of key. It fails with tasks.ErrNotFound
// when no task was ever started.
func (s *Service) Status(key tasks.Key) (Status, error) {
	var t *tasks.Task
	_ = s.state.View(func(doc *state.Document) error {
		if found, ok := doc.Task(key); ok {
			t = found.Clone()
		}
		return nil
	})
	if t == nil {
		return Status{}, fmt.Errorf("status %s: %w", key, tasks.ErrNotFound)
	}

	loc := s.clock.Location()
	st := Status{
		GroupID:    t.GroupID,
		UserID:     t.UserID,
		Theme:      t.ThemeOrDefault(),
		Recent:     t.RecentProgress(statusNotes),
		Milestones: make([]MilestoneState, 0, len(tasks.Milestones)),
		Jobs:       t.Jobs,
		ThreadID:   t.ThreadID,
		UpdatedAt:  t.UpdatedAt,
	}
	if t.Deadline != nil {
		st.Deadline = tasks.FormatDeadline(*t.Deadline, loc)
	}
	for _, m := range tasks.Milestones {
		st.Milestones = append(st.Milestones, MilestoneState{Name: m, Done: t.Milestones[m]})
	}
	if cp, ok := s.reminders.NextCheckpoint(t); ok {
		st.NextCheckpoint = &NextCheckpoint{Tag: cp.Tag, At: tasks.FormatDeadline(cp.At, loc)}
	}
	return st, nil
}

// restoreReminders undoes timeline changes of a rescheduling update that
// was not committed.
func (s *Service) restoreReminders(key tasks.Key) {
	if err := s.reminders.Restore(key); err != nil {
		slog.Error("tracker: restore reminders", "task", key.String(), "error", err)
	}
}

func (s *Service) publish(p events.EventPayload) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.NewTypedEvent(events.SourceTracker, p))
}

// TodayReport lists the deeds of one day.
type TodayReport struct {
	Date  string   `json:"date"`
	Deeds []string `json:"deeds"`
}

// StreakReport is the streak with its seven-day context.
type StreakReport struct {
	Streak int               `json:"streak"`
	Week   []ledger.DayCount `json:"week"`
}

// MilestoneState is one milestone with its completion flag.
type MilestoneState struct {
	Name tasks.Milestone `json:"name"`
	Done bool            `json:"done"`
}

// NextCheckpoint is the next pending reminder of a task.
type NextCheckpoint struct {
	Tag tasks.CheckpointTag `json:"tag"`
	At  string              `json:"at"`
}

// Status is the read model returned by Service.Status.
type Status struct {
	GroupID        string               `json:"group_id"`
	UserID         string               `json:"user_id"`
	Theme          string               `json:"theme"`
	Deadline       string               `json:"deadline,omitempty"`
	Recent         []tasks.ProgressNote `json:"recent"`
	Milestones     []MilestoneState     `json:"milestones"`
	NextCheckpoint *NextCheckpoint      `json:"next_checkpoint,omitempty"`
	Jobs           []tasks.JobID        `json:"jobs"`
	ThreadID       string               `json:"thread_id,omitempty"`
	UpdatedAt      time.Time            `json:"updated_at"`
}
