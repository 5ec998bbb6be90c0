package trace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"flowpulse/internal/promx"
)

// ErrNotFound is returned when an operation references an unknown event id.
var ErrNotFound = errors.New("trace not found")

const (
	defaultCapacity = 10000

	// UnknownEventType tags traces created implicitly by Checkpoint.
	UnknownEventType = "unknown"
)

// Options tunes Store behaviour.
type Options struct {
	// Capacity caps the number of live traces. Inserting beyond it evicts
	// the trace with the oldest CreatedAt.
	Capacity int
	// AutoCreateOnUnknownCheckpoint makes Checkpoint register a trace of
	// type "unknown" instead of failing when the event id is not tracked.
	AutoCreateOnUnknownCheckpoint bool
}

// Store owns the live trace map. All methods are safe for concurrent use;
// accessors return copies, never references into the map.
type Store struct {
	mu         sync.Mutex
	traces     map[string]*EventTrace
	capacity   int
	autoCreate bool
	owner      string
	logger     *slog.Logger
	now        func() time.Time

	size      prometheus.Gauge
	evictions prometheus.Counter
}

// NewStore constructs a Store. A nil logger disables logging.
func NewStore(logger *slog.Logger, opts Options) *Store {
	if opts.Capacity <= 0 {
		opts.Capacity = defaultCapacity
	}
	if logger != nil {
		logger = logger.With("component", "trace_store")
	}
	return &Store{
		traces:     make(map[string]*EventTrace),
		capacity:   opts.Capacity,
		autoCreate: opts.AutoCreateOnUnknownCheckpoint,
		owner:      fmt.Sprintf("pid-%d/%s", os.Getpid(), uuid.NewString()[:8]),
		logger:     logger,
		now:        time.Now,
		size: promx.Gauge(prometheus.GaugeOpts{
			Namespace: "flowpulse",
			Subsystem: "trace",
			Name:      "store_size",
			Help:      "Number of live traces in the store",
		}),
		evictions: promx.Counter(prometheus.CounterOpts{
			Namespace: "flowpulse",
			Subsystem: "trace",
			Name:      "store_evictions_total",
			Help:      "Traces evicted to admit new ones at capacity",
		}),
	}
}

// StartTrace registers a new trace and returns a copy of it. When the store
// is full the trace with the oldest CreatedAt is evicted first. Reusing a
// live event id replaces the previous trace.
func (s *Store) StartTrace(eventID, eventType string, metadata map[string]string) EventTrace {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.traces[eventID]; !exists && len(s.traces) >= s.capacity {
		s.evictOldestLocked()
	}
	t := &EventTrace{
		EventID:   eventID,
		EventType: eventType,
		CreatedAt: s.now(),
		Metadata:  copyMetadata(metadata),
	}
	s.traces[eventID] = t
	s.size.Set(float64(len(s.traces)))
	return t.clone()
}

// Checkpoint appends a named checkpoint with the current time. Unknown event
// ids auto-create a trace of type "unknown" when the policy allows it, and
// return ErrNotFound otherwise.
func (s *Store) Checkpoint(eventID, name string, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.traces[eventID]
	if !ok {
		if !s.autoCreate {
			return fmt.Errorf("checkpoint %q: %w", eventID, ErrNotFound)
		}
		if len(s.traces) >= s.capacity {
			s.evictOldestLocked()
		}
		t = &EventTrace{
			EventID:   eventID,
			EventType: UnknownEventType,
			CreatedAt: s.now(),
		}
		s.traces[eventID] = t
		s.size.Set(float64(len(s.traces)))
		if s.logger != nil {
			s.logger.Debug("auto-created trace for unknown checkpoint", "event_id", eventID, "checkpoint", name)
		}
	}
	t.Checkpoints = append(t.Checkpoints, Checkpoint{
		Name:      name,
		Timestamp: s.now(),
		Metadata:  copyMetadata(metadata),
		Owner:     s.owner,
	})
	return nil
}

// CompleteTrace marks a trace completed and finalizes its total latency as
// the span between its first and last checkpoint.
func (s *Store) CompleteTrace(eventID string) (EventTrace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.traces[eventID]
	if !ok {
		return EventTrace{}, fmt.Errorf("complete %q: %w", eventID, ErrNotFound)
	}
	t.Completed = true
	t.TotalLatency = t.span()
	return t.clone(), nil
}

// GetTrace returns a copy of the trace for eventID.
func (s *Store) GetTrace(eventID string) (EventTrace, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.traces[eventID]
	if !ok {
		return EventTrace{}, false
	}
	return t.clone(), true
}

// AllTraces returns a snapshot copy of every live trace, safe to iterate
// while writers keep appending checkpoints.
func (s *Store) AllTraces() []EventTrace {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]EventTrace, 0, len(s.traces))
	for _, t := range s.traces {
		out = append(out, t.clone())
	}
	return out
}

// FindLostEvents returns incomplete traces older than timeout. They stay in
// the store; this is a health signal, not a deletion path.
func (s *Store) FindLostEvents(timeout time.Duration) []EventTrace {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-timeout)
	var lost []EventTrace
	for _, t := range s.traces {
		if !t.Completed && t.CreatedAt.Before(cutoff) {
			lost = append(lost, t.clone())
		}
	}
	return lost
}

// Clear drops all traces.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.traces = make(map[string]*EventTrace)
	s.size.Set(0)
}

// Len reports the number of live traces.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.traces)
}

// evictOldestLocked removes the trace with the oldest CreatedAt. Linear scan;
// capacity is small enough that an index is not worth maintaining.
func (s *Store) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, t := range s.traces {
		if oldestID == "" || t.CreatedAt.Before(oldest) {
			oldestID = id
			oldest = t.CreatedAt
		}
	}
	if oldestID == "" {
		return
	}
	delete(s.traces, oldestID)
	s.evictions.Inc()
	if s.logger != nil {
		s.logger.Debug("evicted oldest trace", "event_id", oldestID, "created_at", oldest)
	}
}

func copyMetadata(metadata map[string]string) map[string]string {
	if len(metadata) == 0 {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
