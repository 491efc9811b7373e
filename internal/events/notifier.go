package events

import (
	"context"
	"fmt"

	"github.com/dohr-michael/nudge/internal/tasks"
)

// Notifier turns fired reminders into bus events. The gateway's WS hub and
// the event log pick them up from there; rendering is the front-end's job.
type Notifier struct {
	bus *Bus
}

// NewNotifier returns a Notifier publishing on bus.
func NewNotifier(bus *Bus) *Notifier {
	return &Notifier{bus: bus}
}

func (n *Notifier) OnCheckpoint(ctx context.Context, groupID, threadID string, tag tasks.CheckpointTag) error {
	return n.publish(ctx, CheckpointPayload{GroupID: groupID, ThreadID: threadID, Tag: string(tag)})
}

func (n *Notifier) OnWeeklyPing(ctx context.Context, groupID, threadID string) error {
	return n.publish(ctx, WeeklyPingPayload{GroupID: groupID, ThreadID: threadID})
}

func (n *Notifier) OnNightlyRollCall(ctx context.Context, groupID, threadID string) error {
	return n.publish(ctx, RollCallPayload{GroupID: groupID, ThreadID: threadID})
}

func (n *Notifier) publish(ctx context.Context, p EventPayload) error {
	if err := n.bus.PublishAsync(ctx, NewTypedEvent(SourceScheduler, p)); err != nil {
		return fmt.Errorf("publish %s: %w", p.EventType(), err)
	}
	return nil
}
