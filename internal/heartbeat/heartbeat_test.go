package heartbeat

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dohr-michael/nudge/internal/state"
	"github.com/dohr-michael/nudge/internal/storage"
)

type fakeSource struct{}

func (fakeSource) Stats() state.Stats { return state.Stats{Tasks: 2, Jobs: 6, Users: 1} }
func (fakeSource) Jobs() int          { return 8 }

func TestWriteReadCycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heartbeat.json")

	w := NewWriter(path, "127.0.0.1:18440", fakeSource{})
	w.Start()
	defer w.Stop()

	status, hb, err := Check(path, 2*time.Minute)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if status != StatusAlive {
		t.Errorf("expected alive, got %s", status)
	}
	if hb == nil {
		t.Fatal("expected heartbeat, got nil")
	}
	if hb.PID != os.Getpid() {
		t.Errorf("PID: got %d, want %d", hb.PID, os.Getpid())
	}
	if hb.Stats.Tasks != 2 || hb.Jobs != 8 {
		t.Errorf("stats: got %+v jobs=%d", hb.Stats, hb.Jobs)
	}
	if hb.Addr != "127.0.0.1:18440" {
		t.Errorf("addr: got %q", hb.Addr)
	}
}

func TestStaleDetection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heartbeat.json")

	old := Heartbeat{
		PID:       os.Getpid(),
		StartedAt: time.Now().Add(-2 * time.Hour),
		Timestamp: time.Now().Add(-1 * time.Hour),
		Uptime:    "1h0m0s",
	}
	if err := storage.WriteJSONAtomic(path, old); err != nil {
		t.Fatal(err)
	}

	status, hb, err := Check(path, 30*time.Minute)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if status != StatusStale {
		t.Errorf("expected stale, got %s", status)
	}
	if hb == nil {
		t.Fatal("expected heartbeat, got nil")
	}
}

func TestDeadDetection(t *testing.T) {
	status, hb, err := Check(filepath.Join(t.TempDir(), "heartbeat.json"), 2*time.Minute)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if status != StatusDead {
		t.Errorf("expected dead, got %s", status)
	}
	if hb != nil {
		t.Errorf("expected nil heartbeat, got %+v", hb)
	}
}

func TestCorruptedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heartbeat.json")
	if err := os.WriteFile(path, []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	status, _, err := Check(path, time.Minute)
	if err == nil {
		t.Fatal("expected error")
	}
	if status != StatusDead {
		t.Errorf("expected dead, got %s", status)
	}
}

func TestStopRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heartbeat.json")

	w := NewWriter(path, "", nil)
	w.Start()
	w.Stop()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected heartbeat file to be removed after Stop")
	}
}
