package events

import (
	"encoding/json"
	"time"
)

// EventPayload is the interface all typed payloads implement.
type EventPayload interface {
	EventType() EventType
}

// groupScoped payloads stamp their group onto the event envelope.
type groupScoped interface {
	Group() string
}

// =============================================================================
// REPORT EVENTS
// =============================================================================

type ReportStartedPayload struct {
	GroupID  string `json:"group_id"`
	UserID   string `json:"user_id"`
	Theme    string `json:"theme"`
	Deadline string `json:"deadline"`
}

func (ReportStartedPayload) EventType() EventType { return EventReportStarted }
func (p ReportStartedPayload) Group() string      { return p.GroupID }

type ThemeSetPayload struct {
	GroupID string `json:"group_id"`
	UserID  string `json:"user_id"`
	Theme   string `json:"theme"`
}

func (ThemeSetPayload) EventType() EventType { return EventThemeSet }
func (p ThemeSetPayload) Group() string      { return p.GroupID }

type DeadlineSetPayload struct {
	GroupID  string `json:"group_id"`
	UserID   string `json:"user_id"`
	Deadline string `json:"deadline"`
	Jobs     int    `json:"jobs"`
}

func (DeadlineSetPayload) EventType() EventType { return EventDeadlineSet }
func (p DeadlineSetPayload) Group() string      { return p.GroupID }

type ProgressLoggedPayload struct {
	GroupID string    `json:"group_id"`
	UserID  string    `json:"user_id"`
	Note    string    `json:"note"`
	Ts      time.Time `json:"ts"`
}

func (ProgressLoggedPayload) EventType() EventType { return EventProgressLogged }
func (p ProgressLoggedPayload) Group() string      { return p.GroupID }

type MilestoneMarkedPayload struct {
	GroupID   string `json:"group_id"`
	UserID    string `json:"user_id"`
	Milestone string `json:"milestone"`
}

func (MilestoneMarkedPayload) EventType() EventType { return EventMilestoneMarked }
func (p MilestoneMarkedPayload) Group() string      { return p.GroupID }

type ThreadAttachedPayload struct {
	GroupID  string `json:"group_id"`
	UserID   string `json:"user_id"`
	ThreadID string `json:"thread_id"`
}

func (ThreadAttachedPayload) EventType() EventType { return EventThreadAttached }
func (p ThreadAttachedPayload) Group() string      { return p.GroupID }

// =============================================================================
// DEED EVENTS
// =============================================================================

type DeedRecordedPayload struct {
	GroupID string `json:"group_id"`
	UserID  string `json:"user_id"`
	Date    string `json:"date"`
	Text    string `json:"text"`
	Count   int    `json:"count"`
}

func (DeedRecordedPayload) EventType() EventType { return EventDeedRecorded }
func (p DeedRecordedPayload) Group() string      { return p.GroupID }

// =============================================================================
// REMINDER EVENTS
// =============================================================================

type CheckpointPayload struct {
	GroupID  string `json:"group_id"`
	ThreadID string `json:"thread_id"`
	Tag      string `json:"tag"`
}

func (CheckpointPayload) EventType() EventType { return EventCheckpoint }
func (p CheckpointPayload) Group() string      { return p.GroupID }

type WeeklyPingPayload struct {
	GroupID  string `json:"group_id"`
	ThreadID string `json:"thread_id"`
}

func (WeeklyPingPayload) EventType() EventType { return EventWeeklyPing }
func (p WeeklyPingPayload) Group() string      { return p.GroupID }

type RollCallPayload struct {
	GroupID  string `json:"group_id"`
	ThreadID string `json:"thread_id"`
}

func (RollCallPayload) EventType() EventType { return EventRollCall }
func (p RollCallPayload) Group() string      { return p.GroupID }

type NightlyArmedPayload struct {
	FirstAt time.Time `json:"first_at"`
}

func (NightlyArmedPayload) EventType() EventType { return EventNightlyArmed }

// =============================================================================
// TYPED EVENT CONSTRUCTORS
// =============================================================================

func NewTypedEvent(source EventSource, payload EventPayload) Event {
	e := Event{
		ID:        generateEventID(),
		Type:      payload.EventType(),
		Timestamp: time.Now(),
		Source:    source,
		Payload:   toMap(payload),
	}
	if g, ok := payload.(groupScoped); ok {
		e.GroupID = g.Group()
	}
	return e
}

func toMap(v any) map[string]any {
	var result map[string]any
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

// =============================================================================
// TYPED PAYLOAD EXTRACTORS
// =============================================================================

func ExtractPayload[T EventPayload](e Event) (T, bool) {
	var result T
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return result, false
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, false
	}
	return result, true
}

func GetCheckpointPayload(e Event) (CheckpointPayload, bool) {
	return ExtractPayload[CheckpointPayload](e)
}

func GetWeeklyPingPayload(e Event) (WeeklyPingPayload, bool) {
	return ExtractPayload[WeeklyPingPayload](e)
}

func GetRollCallPayload(e Event) (RollCallPayload, bool) {
	return ExtractPayload[RollCallPayload](e)
}

func GetDeedRecordedPayload(e Event) (DeedRecordedPayload, bool) {
	return ExtractPayload[DeedRecordedPayload](e)
}
