package tasks

import (
	"strings"
	"time"
)

// CheckpointTag names one of the fixed reminders before a deadline.
type CheckpointTag string

const (
	Checkpoint2W CheckpointTag = "2w"
	Checkpoint1W CheckpointTag = "1w"
	Checkpoint3D CheckpointTag = "3d"
	Checkpoint1D CheckpointTag = "1d"
	Checkpoint0D CheckpointTag = "0d"
)

// CheckpointTags lists the tags in firing order.
var CheckpointTags = []CheckpointTag{
	Checkpoint2W,
	Checkpoint1W,
	Checkpoint3D,
	Checkpoint1D,
	Checkpoint0D,
}

// Checkpoint is a computed reminder instant.
type Checkpoint struct {
	Tag CheckpointTag `json:"tag"`
	At  time.Time     `json:"at"`
}

// ComputeCheckpoints derives the five reminder instants for deadline in loc.
// Day offsets are civil days, so the deadline's wall-clock time is kept.
// The due-day reminder is pinned to morningHH:morningMM on the deadline's date.
func ComputeCheckpoints(deadline time.Time, loc *time.Location, morningHH, morningMM int) []Checkpoint {
	d := deadline.In(loc)
	y, m, day := d.Date()
	return []Checkpoint{
		{Tag: Checkpoint2W, At: d.AddDate(0, 0, -14)},
		{Tag: Checkpoint1W, At: d.AddDate(0, 0, -7)},
		{Tag: Checkpoint3D, At: d.AddDate(0, 0, -3)},
		{Tag: Checkpoint1D, At: d.AddDate(0, 0, -1)},
		{Tag: Checkpoint0D, At: time.Date(y, m, day, morningHH, morningMM, 0, 0, loc)},
	}
}

// Job tags that are not checkpoints.
const (
	TagWeekly       = "weekly"
	TagNightlyFirst = "nightly_first"
	TagNightlyLoop  = "nightly_loop"
)

// JobID identifies a scheduled job. Task jobs carry their task key; global
// jobs (the nightly roll-call) carry the zero key.
type JobID struct {
	Task Key    `json:"task"`
	Tag  string `json:"tag"`
}

// CheckpointJob returns the job id of a checkpoint reminder for key.
func CheckpointJob(key Key, tag CheckpointTag) JobID {
	return JobID{Task: key, Tag: string(tag)}
}

// WeeklyJob returns the job id of the weekly ping for key.
func WeeklyJob(key Key) JobID {
	return JobID{Task: key, Tag: TagWeekly}
}

// GlobalJob returns the id of a process-wide job.
func GlobalJob(tag string) JobID {
	return JobID{Tag: tag}
}

// IsGlobal reports whether the job belongs to no task.
func (j JobID) IsGlobal() bool {
	return j.Task.IsZero()
}

func (j JobID) String() string {
	if j.IsGlobal() {
		return j.Tag
	}
	return j.Task.String() + "#" + j.Tag
}

// Compare orders job ids by task key then tag.
func (j JobID) Compare(o JobID) int {
	if c := j.Task.Compare(o.Task); c != 0 {
		return c
	}
	return strings.Compare(j.Tag, o.Tag)
}
