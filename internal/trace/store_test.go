package trace

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func newTestStore(opts Options) (*Store, *fakeClock) {
	s := NewStore(nil, opts)
	clock := &fakeClock{t: time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)}
	s.now = clock.Now
	return s, clock
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestStoreStartTraceRetrievableByID(t *testing.T) {
	s, clock := newTestStore(Options{Capacity: 100})

	for i := 0; i < 50; i++ {
		s.StartTrace(fmt.Sprintf("evt_%d", i), "click", nil)
		clock.Advance(time.Millisecond)
	}
	if s.Len() != 50 {
		t.Fatalf("expected 50 traces, got %d", s.Len())
	}
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("evt_%d", i)
		got, ok := s.GetTrace(id)
		if !ok {
			t.Fatalf("trace %s not retrievable", id)
		}
		if got.EventID != id || got.EventType != "click" {
			t.Fatalf("unexpected trace %+v", got)
		}
	}
}

func TestStoreEvictsOldestAtCapacity(t *testing.T) {
	s, clock := newTestStore(Options{Capacity: 3})

	s.StartTrace("evt_0", "click", nil)
	clock.Advance(time.Second)
	s.StartTrace("evt_1", "click", nil)
	clock.Advance(time.Second)
	s.StartTrace("evt_2", "click", nil)
	clock.Advance(time.Second)
	s.StartTrace("evt_3", "click", nil)

	if s.Len() != 3 {
		t.Fatalf("expected capacity hold at 3, got %d", s.Len())
	}
	if _, ok := s.GetTrace("evt_0"); ok {
		t.Fatal("expected oldest trace evt_0 to be evicted")
	}
	for _, id := range []string{"evt_1", "evt_2", "evt_3"} {
		if _, ok := s.GetTrace(id); !ok {
			t.Fatalf("expected %s to survive eviction", id)
		}
	}
}

func TestStoreCheckpointAppendsInOrder(t *testing.T) {
	s, clock := newTestStore(Options{Capacity: 10})

	s.StartTrace("evt_1", "click", map[string]string{"origin": "button"})
	for _, name := range []string{"frontend_emit", "tauri_receive", "python_receive"} {
		clock.Advance(3 * time.Millisecond)
		if err := s.Checkpoint("evt_1", name, nil); err != nil {
			t.Fatalf("checkpoint %s: %v", name, err)
		}
	}

	got, ok := s.GetTrace("evt_1")
	if !ok {
		t.Fatal("trace missing")
	}
	if got.Metadata["origin"] != "button" {
		t.Fatalf("expected trace metadata preserved, got %v", got.Metadata)
	}
	if len(got.Checkpoints) != 3 {
		t.Fatalf("expected 3 checkpoints, got %d", len(got.Checkpoints))
	}
	names := []string{"frontend_emit", "tauri_receive", "python_receive"}
	for i, cp := range got.Checkpoints {
		if cp.Name != names[i] {
			t.Fatalf("checkpoint %d out of order: got %s want %s", i, cp.Name, names[i])
		}
		if i > 0 && cp.Timestamp.Before(got.Checkpoints[i-1].Timestamp) {
			t.Fatalf("checkpoint timestamps not monotonic at %d", i)
		}
		if cp.Owner == "" {
			t.Fatalf("checkpoint %d missing owner tag", i)
		}
	}
}

func TestStoreCheckpointAutoCreatesUnknownID(t *testing.T) {
	s, _ := newTestStore(Options{Capacity: 10, AutoCreateOnUnknownCheckpoint: true})

	if err := s.Checkpoint("ghost", "somewhere", nil); err != nil {
		t.Fatalf("expected auto-create, got %v", err)
	}
	got, ok := s.GetTrace("ghost")
	if !ok {
		t.Fatal("expected auto-created trace")
	}
	if got.EventType != UnknownEventType {
		t.Fatalf("expected event type %q, got %q", UnknownEventType, got.EventType)
	}
	if len(got.Checkpoints) != 1 {
		t.Fatalf("expected the checkpoint recorded, got %d", len(got.Checkpoints))
	}
}

func TestStoreCheckpointStrictModeRejectsUnknownID(t *testing.T) {
	s, _ := newTestStore(Options{Capacity: 10, AutoCreateOnUnknownCheckpoint: false})

	err := s.Checkpoint("ghost", "somewhere", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("expected no trace created, got %d", s.Len())
	}
}

func TestStoreCompleteTraceFinalizesLatency(t *testing.T) {
	s, clock := newTestStore(Options{Capacity: 10})

	s.StartTrace("evt_1", "click", nil)
	_ = s.Checkpoint("evt_1", "a", nil)
	clock.Advance(4 * time.Millisecond)
	_ = s.Checkpoint("evt_1", "b", nil)
	clock.Advance(6 * time.Millisecond)
	_ = s.Checkpoint("evt_1", "c", nil)
	clock.Advance(time.Hour) // completion delay must not inflate latency

	got, err := s.CompleteTrace("evt_1")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !got.Completed {
		t.Fatal("expected completed flag set")
	}
	if got.TotalLatency != 10*time.Millisecond {
		t.Fatalf("expected total latency 10ms, got %v", got.TotalLatency)
	}
}

func TestStoreCompleteTraceUnknownID(t *testing.T) {
	s, _ := newTestStore(Options{Capacity: 10})
	if _, err := s.CompleteTrace("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreLatencyZeroUntilTwoCheckpoints(t *testing.T) {
	s, clock := newTestStore(Options{Capacity: 10})

	s.StartTrace("evt_1", "click", nil)
	_ = s.Checkpoint("evt_1", "only", nil)
	clock.Advance(time.Second)

	got, _ := s.GetTrace("evt_1")
	if got.Latency() != 0 {
		t.Fatalf("expected zero latency with one checkpoint, got %v", got.Latency())
	}
}

func TestStoreFindLostEvents(t *testing.T) {
	s, clock := newTestStore(Options{Capacity: 10})

	s.StartTrace("stuck", "click", nil)
	clock.Advance(45 * time.Second)
	s.StartTrace("fresh", "click", nil)
	_ = s.Checkpoint("fresh", "a", nil)
	done := s.StartTrace("done", "click", nil)
	_ = done
	if _, err := s.CompleteTrace("done"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	lost := s.FindLostEvents(30 * time.Second)
	if len(lost) != 1 {
		t.Fatalf("expected 1 lost event, got %d", len(lost))
	}
	if lost[0].EventID != "stuck" {
		t.Fatalf("expected stuck to be lost, got %s", lost[0].EventID)
	}
	// detection must not delete
	if _, ok := s.GetTrace("stuck"); !ok {
		t.Fatal("lost trace must stay in the store")
	}
}

func TestStoreSnapshotIsolatedFromWriters(t *testing.T) {
	s, _ := newTestStore(Options{Capacity: 10})

	s.StartTrace("evt_1", "click", nil)
	_ = s.Checkpoint("evt_1", "a", map[string]string{"k": "v"})
	snap := s.AllTraces()
	if len(snap) != 1 {
		t.Fatalf("expected 1 trace in snapshot, got %d", len(snap))
	}

	// mutating the snapshot must not leak into the store
	snap[0].Checkpoints[0].Name = "tampered"
	snap[0].Checkpoints[0].Metadata["k"] = "tampered"
	snap[0].Checkpoints = append(snap[0].Checkpoints, Checkpoint{Name: "extra"})

	got, _ := s.GetTrace("evt_1")
	if len(got.Checkpoints) != 1 || got.Checkpoints[0].Name != "a" || got.Checkpoints[0].Metadata["k"] != "v" {
		t.Fatalf("store mutated through snapshot: %+v", got.Checkpoints)
	}
}

func TestStoreClear(t *testing.T) {
	s, _ := newTestStore(Options{Capacity: 10})
	s.StartTrace("evt_1", "click", nil)
	s.StartTrace("evt_2", "click", nil)
	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("expected empty store after clear, got %d", s.Len())
	}
}

func TestStoreConcurrentProducers(t *testing.T) {
	s := NewStore(nil, Options{Capacity: 1000, AutoCreateOnUnknownCheckpoint: true})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := fmt.Sprintf("g%d_evt%d", g, i)
				s.StartTrace(id, "load", nil)
				_ = s.Checkpoint(id, "stage_a", nil)
				_ = s.Checkpoint(id, "stage_b", nil)
				if _, err := s.CompleteTrace(id); err != nil {
					t.Errorf("complete %s: %v", id, err)
				}
			}
		}(g)
	}
	// readers race the writers on snapshots
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				for _, tr := range s.AllTraces() {
					_ = tr.Latency()
				}
			}
		}()
	}
	wg.Wait()

	if s.Len() != 400 {
		t.Fatalf("expected 400 traces, got %d", s.Len())
	}
}
