package storage

import (
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dohr-michael/nudge/internal/events"
)

// globalLog receives events that belong to no group (e.g. nightly arming).
const globalLog = "_global"

// EventLogger persists bus events to JSONL files, one file per group.
type EventLogger struct {
	dir         string
	unsubscribe func()
}

// NewEventLogger creates an EventLogger that subscribes to all bus events
// and appends them to dir/<group>.jsonl.
func NewEventLogger(dir string, bus *events.Bus) *EventLogger {
	el := &EventLogger{dir: dir}
	el.unsubscribe = bus.Subscribe(el.handleEvent)
	return el
}

// Close unsubscribes the logger from the event bus.
func (el *EventLogger) Close() {
	if el.unsubscribe != nil {
		el.unsubscribe()
	}
}

func (el *EventLogger) handleEvent(e events.Event) {
	if err := AppendJSONL(LogPath(el.dir, e.GroupID), e); err != nil {
		slog.Warn("eventlog: append failed", "type", e.Type, "error", err)
	}
}

// LogPath returns the JSONL file holding events of groupID.
func LogPath(dir, groupID string) string {
	if groupID == "" {
		groupID = globalLog
	}
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, groupID)
	return filepath.Join(dir, name+".jsonl")
}

// ReadEvents returns the last limit events of groupID, optionally filtered by type.
func ReadEvents(dir, groupID string, limit int, types ...events.EventType) ([]events.Event, error) {
	all, err := LoadJSONL[events.Event](LogPath(dir, groupID))
	if err != nil {
		return nil, err
	}

	var out []events.Event
	for _, e := range all {
		if len(types) > 0 && !slices.Contains(types, e.Type) {
			continue
		}
		out = append(out, e)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
