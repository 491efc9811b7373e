// Package ledger records daily "deeds" and derives counts and streaks.
//
// Days are civil dates in the clock's location: "today" flips at local
// midnight, which defines streak boundaries.
package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/dohr-michael/nudge/internal/clock"
	"github.com/dohr-michael/nudge/internal/state"
	"github.com/dohr-michael/nudge/internal/tasks"
)

// DefaultWindow is the number of days reported by LastNDays by default.
const DefaultWindow = 7

// DayCount is the number of deeds recorded on Date.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Ledger reads and appends deeds through the shared state.
type Ledger struct {
	state *state.State
	clock clock.Clock
}

// New returns a ledger over st.
func New(st *state.State, clk clock.Clock) *Ledger {
	return &Ledger{state: st, clock: clk}
}

// Today returns the current civil date.
func (l *Ledger) Today() string {
	return clock.Today(l.clock)
}

// Record appends text as given to key's bucket for date (today when empty)
// and returns the new count for that day. Blank text is rejected.
func (l *Ledger) Record(ctx context.Context, key tasks.Key, text, date string) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, &tasks.ValidationError{Field: "text", Reason: "required"}
	}
	if date == "" {
		date = l.Today()
	} else if _, err := time.ParseInLocation(clock.DateLayout, date, l.clock.Location()); err != nil {
		return 0, &tasks.ValidationError{Field: "date", Value: date, Reason: "expected YYYY-MM-DD"}
	}

	var count int
	err := l.state.Update(ctx, "record deed", func(doc *state.Document) error {
		count = doc.AppendDeed(key, date, text)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// List returns the deeds of key on date (today when empty), oldest first.
func (l *Ledger) List(key tasks.Key, date string) []string {
	if date == "" {
		date = l.Today()
	}
	var out []string
	_ = l.state.View(func(doc *state.Document) error {
		out = append([]string{}, doc.Deeds(key, date)...)
		return nil
	})
	return out
}

// Count returns the number of deeds of key on date.
func (l *Ledger) Count(key tasks.Key, date string) int {
	var n int
	_ = l.state.View(func(doc *state.Document) error {
		n = len(doc.Deeds(key, date))
		return nil
	})
	return n
}

// LastNDays returns n entries ending today, oldest first, zero-filled.
func (l *Ledger) LastNDays(key tasks.Key, n int) []DayCount {
	if n <= 0 {
		n = DefaultWindow
	}
	today := l.clock.Now()
	out := make([]DayCount, 0, n)
	_ = l.state.View(func(doc *state.Document) error {
		for i := n - 1; i >= 0; i-- {
			date := clock.DateString(today.AddDate(0, 0, -i))
			out = append(out, DayCount{Date: date, Count: len(doc.Deeds(key, date))})
		}
		return nil
	})
	return out
}

// Streak counts consecutive days with at least one deed, walking back from
// today. A day without deeds ends the walk; if today has none the streak is 0.
func (l *Ledger) Streak(key tasks.Key) int {
	day := l.clock.Now()
	var streak int
	_ = l.state.View(func(doc *state.Document) error {
		log := doc.DoneLogs[key]
		for len(log[clock.DateString(day)]) > 0 {
			streak++
			day = day.AddDate(0, 0, -1)
		}
		return nil
	})
	return streak
}
