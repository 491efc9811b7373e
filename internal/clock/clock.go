// Package clock supplies the current time in a fixed civil timezone.
//
// All scheduling and ledger math runs in that zone: "the day before" and
// "07:45 on the due date" are calendar concepts, not UTC offsets.
package clock

import (
	"fmt"
	"sync"
	"time"
)

// DateLayout is the civil date format used for ledger buckets.
const DateLayout = "2006-01-02"

// Clock returns the current instant in its configured location.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// System is the wall clock pinned to a location.
type System struct {
	loc *time.Location
}

// NewSystem returns a wall clock for loc.
func NewSystem(loc *time.Location) *System {
	return &System{loc: loc}
}

// Load resolves an IANA zone name into a wall clock.
func Load(zone string) (*System, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", zone, err)
	}
	return NewSystem(loc), nil
}

func (s *System) Now() time.Time           { return time.Now().In(s.loc) }
func (s *System) Location() *time.Location { return s.loc }

// Fixed is a settable clock for tests and replays.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed returns a clock frozen at now. The location of now is the clock's location.
func NewFixed(now time.Time) *Fixed {
	return &Fixed{now: now}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fixed) Location() *time.Location {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now.Location()
}

// Set moves the clock to t.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Today returns the civil date of c's current instant.
func Today(c Clock) string {
	return DateString(c.Now())
}

// DateString formats t as a civil date in t's own location.
func DateString(t time.Time) string {
	return t.Format(DateLayout)
}

// AtClock returns the instant on t's civil date at hh:mm in loc.
func AtClock(t time.Time, hh, mm int, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, hh, mm, 0, 0, loc)
}

// NextAt returns the next occurrence of hh:mm in loc strictly after now.
// If hh:mm today is still ahead it is returned, otherwise tomorrow's.
func NextAt(now time.Time, hh, mm int, loc *time.Location) time.Time {
	first := AtClock(now, hh, mm, loc)
	if !first.After(now) {
		first = first.AddDate(0, 0, 1)
	}
	return first
}

// ParseHHMM parses a "HH:MM" wall-clock string.
func ParseHHMM(s string) (hh, mm int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}
