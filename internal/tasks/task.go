// Package tasks holds the report-tracking domain model: task records, keys,
// milestones, checkpoint tags and job identifiers.
package tasks

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTheme is shown when a task has no theme yet.
const DefaultTheme = "未定"

// Milestone is one of the fixed steps of writing a report.
type Milestone string

const (
	MilestoneTheme   Milestone = "テーマ"
	MilestoneOutline Milestone = "構成"
	MilestoneDraft   Milestone = "下書き"
	MilestoneFinal   Milestone = "清書"
	MilestoneSubmit  Milestone = "提出"
)

// Milestones lists every milestone in report order.
var Milestones = []Milestone{
	MilestoneTheme,
	MilestoneOutline,
	MilestoneDraft,
	MilestoneFinal,
	MilestoneSubmit,
}

// ParseMilestone validates a milestone name.
func ParseMilestone(name string) (Milestone, error) {
	m := Milestone(strings.TrimSpace(name))
	if !slices.Contains(Milestones, m) {
		return "", &ValidationError{
			Field:  "milestone",
			Value:  name,
			Reason: "must be one of テーマ/構成/下書き/清書/提出",
		}
	}
	return m, nil
}

// ProgressNote is a single timestamped progress entry.
type ProgressNote struct {
	ID   string    `json:"id,omitempty"`
	Ts   time.Time `json:"ts"`
	Note string    `json:"note"`
}

// Task is the record tracked for one user in one group.
type Task struct {
	GroupID    string             `json:"guild_id"`
	UserID     string             `json:"user_id"`
	Theme      string             `json:"theme"`
	Deadline   *time.Time         `json:"deadline,omitempty"`
	Progress   []ProgressNote     `json:"progress"`
	Milestones map[Milestone]bool `json:"milestones"`
	Jobs       []JobID            `json:"jobs"`
	ThreadID   string             `json:"thread_id,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// New returns a default record for key.
func New(key Key, now time.Time) *Task {
	t := &Task{
		GroupID:   key.GroupID,
		UserID:    key.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.ResetMilestones()
	return t
}

// Key returns the composite key of the record.
func (t *Task) Key() Key {
	return Key{GroupID: t.GroupID, UserID: t.UserID}
}

// ResetMilestones sets every milestone to false.
func (t *Task) ResetMilestones() {
	t.Milestones = make(map[Milestone]bool, len(Milestones))
	for _, m := range Milestones {
		t.Milestones[m] = false
	}
}

// Mark sets a milestone. Marking twice is a no-op.
func (t *Task) Mark(m Milestone) {
	if t.Milestones == nil {
		t.ResetMilestones()
	}
	t.Milestones[m] = true
}

// AppendProgress adds a progress note stamped at now.
func (t *Task) AppendProgress(note string, now time.Time) ProgressNote {
	p := ProgressNote{
		ID:   GenerateNoteID(),
		Ts:   now,
		Note: note,
	}
	t.Progress = append(t.Progress, p)
	return p
}

// RecentProgress returns up to n latest notes, oldest first.
func (t *Task) RecentProgress(n int) []ProgressNote {
	if len(t.Progress) <= n {
		return slices.Clone(t.Progress)
	}
	return slices.Clone(t.Progress[len(t.Progress)-n:])
}

// ThemeOrDefault returns the theme, or DefaultTheme when empty.
func (t *Task) ThemeOrDefault() string {
	if t.Theme == "" {
		return DefaultTheme
	}
	return t.Theme
}

// HasThread reports whether an external conversation handle is attached.
func (t *Task) HasThread() bool {
	return t.ThreadID != ""
}

// Clone returns a deep copy.
func (t *Task) Clone() *Task {
	c := *t
	if t.Deadline != nil {
		d := *t.Deadline
		c.Deadline = &d
	}
	c.Progress = slices.Clone(t.Progress)
	c.Jobs = slices.Clone(t.Jobs)
	if t.Milestones != nil {
		c.Milestones = make(map[Milestone]bool, len(t.Milestones))
		for k, v := range t.Milestones {
			c.Milestones[k] = v
		}
	}
	return &c
}

// GenerateNoteID creates a unique progress note identifier.
func GenerateNoteID() string {
	u := uuid.New().String()
	return "note_" + strings.ReplaceAll(u[:8], "-", "")
}
