// Package state holds the persisted document (task records and deed ledgers)
// and the single-writer transaction wrapper around its backing store.
package state

import (
	"slices"
	"time"

	"github.com/dohr-michael/nudge/internal/tasks"
)

// DeedLog maps a civil date (YYYY-MM-DD) to the ordered deeds of that day.
type DeedLog map[string][]string

// Document is everything nudge persists.
type Document struct {
	Reports  map[tasks.Key]*tasks.Task `json:"reports"`
	DoneLogs map[tasks.Key]DeedLog     `json:"done_logs"`
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{
		Reports:  make(map[tasks.Key]*tasks.Task),
		DoneLogs: make(map[tasks.Key]DeedLog),
	}
}

// Task returns the record for key.
func (d *Document) Task(key tasks.Key) (*tasks.Task, bool) {
	t, ok := d.Reports[key]
	return t, ok
}

// Upsert returns the record for key, creating a default one if missing.
func (d *Document) Upsert(key tasks.Key, now time.Time) *tasks.Task {
	if t, ok := d.Reports[key]; ok {
		return t
	}
	t := tasks.New(key, now)
	d.Reports[key] = t
	return t
}

// Keys returns every task key in stable order.
func (d *Document) Keys() []tasks.Key {
	keys := make([]tasks.Key, 0, len(d.Reports))
	for k := range d.Reports {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, tasks.Key.Compare)
	return keys
}

// Deeds returns the entries of key on date. The result must not be modified.
func (d *Document) Deeds(key tasks.Key, date string) []string {
	return d.DoneLogs[key][date]
}

// AppendDeed adds text to the date bucket of key and returns the new count.
func (d *Document) AppendDeed(key tasks.Key, date, text string) int {
	log, ok := d.DoneLogs[key]
	if !ok {
		log = make(DeedLog)
		d.DoneLogs[key] = log
	}
	log[date] = append(log[date], text)
	return len(log[date])
}

// Clone returns a deep copy. Update mutates clones so that readers holding
// the previous document never observe a partial change.
func (d *Document) Clone() *Document {
	c := NewDocument()
	for k, t := range d.Reports {
		c.Reports[k] = t.Clone()
	}
	for k, log := range d.DoneLogs {
		cl := make(DeedLog, len(log))
		for day, items := range log {
			cl[day] = slices.Clone(items)
		}
		c.DoneLogs[k] = cl
	}
	return c
}

// Stats summarises the document for heartbeats and health checks.
type Stats struct {
	Tasks int `json:"tasks"`
	Jobs  int `json:"jobs"`
	Users int `json:"users"`
}

// Stats counts tasks, recorded job ids and users with a deed ledger.
func (d *Document) Stats() Stats {
	s := Stats{Tasks: len(d.Reports), Users: len(d.DoneLogs)}
	for _, t := range d.Reports {
		s.Jobs += len(t.Jobs)
	}
	return s
}
