// Package heartbeat lets `nudge status` tell whether a daemon is running.
package heartbeat

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dohr-michael/nudge/internal/state"
	"github.com/dohr-michael/nudge/internal/storage"
)

// DefaultInterval is how often the daemon refreshes its heartbeat.
const DefaultInterval = 30 * time.Second

// Status represents the liveness state of the daemon.
type Status string

const (
	StatusAlive Status = "alive"
	StatusStale Status = "stale"
	StatusDead  Status = "dead"
)

// Heartbeat is the data written to the heartbeat file.
type Heartbeat struct {
	PID       int         `json:"pid"`
	StartedAt time.Time   `json:"started_at"`
	Timestamp time.Time   `json:"timestamp"`
	Uptime    string      `json:"uptime"`
	Addr      string      `json:"addr,omitempty"`
	Stats     state.Stats `json:"stats"`
	Jobs      int         `json:"timeline_jobs"`
}

// Source supplies the figures embedded in each beat.
type Source interface {
	Stats() state.Stats
	Jobs() int
}

// Writer periodically writes a heartbeat file to disk.
type Writer struct {
	path     string
	addr     string
	interval time.Duration
	source   Source
	started  time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWriter creates a heartbeat writer for path. A nil source writes zero stats.
func NewWriter(path, addr string, source Source) *Writer {
	return &Writer{
		path:     path,
		addr:     addr,
		interval: DefaultInterval,
		source:   source,
	}
}

// Start writes a first beat and keeps refreshing it until Stop.
func (w *Writer) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return
	}

	w.started = time.Now()
	w.done = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.write()

	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				w.write()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops writing and removes the heartbeat file.
func (w *Writer) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel == nil {
		return
	}

	w.cancel()
	<-w.done
	w.cancel = nil

	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("heartbeat: remove failed", "path", w.path, "error", err)
	}
}

func (w *Writer) write() {
	hb := Heartbeat{
		PID:       os.Getpid(),
		StartedAt: w.started,
		Timestamp: time.Now(),
		Uptime:    time.Since(w.started).Truncate(time.Second).String(),
		Addr:      w.addr,
	}
	if w.source != nil {
		hb.Stats = w.source.Stats()
		hb.Jobs = w.source.Jobs()
	}

	if err := storage.WriteJSONAtomic(w.path, hb); err != nil {
		slog.Warn("heartbeat: write failed", "path", w.path, "error", err)
	}
}

// Check reads a heartbeat file and returns the liveness status.
// A beat older than maxAge is stale; a missing file is dead.
func Check(path string, maxAge time.Duration) (Status, *Heartbeat, error) {
	var hb Heartbeat
	found, err := storage.ReadJSON(path, &hb)
	if err != nil {
		return StatusDead, nil, err
	}
	if !found {
		return StatusDead, nil, nil
	}

	if time.Since(hb.Timestamp) > maxAge {
		return StatusStale, &hb, nil
	}
	return StatusAlive, &hb, nil
}
