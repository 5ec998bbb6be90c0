package metrics

import (
	"sync"
	"time"
)

const (
	defaultWindowSize = 1000
	rateWindow        = time.Minute
)

// ActionRecord is one raw sample fed by producer call-sites.
type ActionRecord struct {
	Timestamp time.Time
	Name      string
	Duration  time.Duration
	Success   bool
}

// ActionRecorder keeps a bounded rolling window of action records. It has
// its own mutex so action producers never contend with event producers.
type ActionRecorder struct {
	mu         sync.Mutex
	window     ring[ActionRecord]
	current    *string
	queueDepth int
	now        func() time.Time
}

// NewActionRecorder creates a recorder retaining the most recent windowSize
// records.
func NewActionRecorder(windowSize int) *ActionRecorder {
	if windowSize <= 0 {
		windowSize = defaultWindowSize
	}
	return &ActionRecorder{window: newRing[ActionRecord](windowSize), now: time.Now}
}

// RecordAction appends one sample; the oldest is dropped once the window is
// full.
func (r *ActionRecorder) RecordAction(name string, duration time.Duration, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.window.push(ActionRecord{Timestamp: r.now(), Name: name, Duration: duration, Success: success})
}

// SetCurrentAction names the action in flight; pass "" to clear it.
func (r *ActionRecorder) SetCurrentAction(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name == "" {
		r.current = nil
		return
	}
	r.current = &name
}

// SetQueueDepth reports the producer's pending-action backlog.
func (r *ActionRecorder) SetQueueDepth(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queueDepth = n
}

// metrics derives ActionMetrics at ts. The per-minute rate and success rate
// come from the trailing 60 seconds; counts come from the full window.
func (r *ActionRecorder) metrics(ts time.Time) ActionMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := r.window.items()
	m := ActionMetrics{
		Timestamp:    float64(ts.UnixNano()) / 1e9,
		TotalActions: len(records),
		QueueDepth:   r.queueDepth,
		SuccessRate:  1.0,
	}
	if r.current != nil {
		name := *r.current
		m.CurrentAction = &name
	}

	var durationSum time.Duration
	cutoff := ts.Add(-rateWindow)
	var recent, recentOK int
	for _, rec := range records {
		durationSum += rec.Duration
		if !rec.Success {
			m.ErrorCount++
		}
		if rec.Timestamp.After(cutoff) {
			recent++
			if rec.Success {
				recentOK++
			}
		}
	}
	if len(records) > 0 {
		m.AvgDuration = durationSum.Seconds() / float64(len(records))
	}
	m.ActionsPerMinute = float64(recent)
	if recent > 0 {
		m.SuccessRate = float64(recentOK) / float64(recent)
	}
	return m
}

// EventRecorder tracks processed/failed event counters and a rolling window
// of processing times, independent of the action recorder's lock.
type EventRecorder struct {
	mu         sync.Mutex
	durations  ring[time.Duration]
	processed  int
	failed     int
	queueDepth int
}

// NewEventRecorder creates a recorder retaining the most recent windowSize
// processing times.
func NewEventRecorder(windowSize int) *EventRecorder {
	if windowSize <= 0 {
		windowSize = defaultWindowSize
	}
	return &EventRecorder{durations: newRing[time.Duration](windowSize)}
}

// RecordEvent registers one processed event and its processing time.
func (r *EventRecorder) RecordEvent(processingTime time.Duration, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if success {
		r.processed++
	} else {
		r.failed++
	}
	r.durations.push(processingTime)
}

// SetQueueDepth reports the producer's pending-event backlog.
func (r *EventRecorder) SetQueueDepth(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queueDepth = n
}

func (r *EventRecorder) metrics(ts time.Time) EventMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := EventMetrics{
		Timestamp:       float64(ts.UnixNano()) / 1e9,
		EventsQueued:    r.queueDepth,
		EventsProcessed: r.processed,
		EventsFailed:    r.failed,
		QueueDepth:      r.queueDepth,
	}
	durations := r.durations.items()
	if len(durations) > 0 {
		var sum time.Duration
		for _, d := range durations {
			sum += d
		}
		m.AvgProcessingTime = sum.Seconds() / float64(len(durations))
	}
	return m
}

// ring is a fixed-capacity buffer that overwrites its oldest element when
// full.
type ring[T any] struct {
	buf  []T
	next int
	full bool
}

func newRing[T any](capacity int) ring[T] {
	return ring[T]{buf: make([]T, capacity)}
}

func (r *ring[T]) push(v T) {
	r.buf[r.next] = v
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

// items returns the buffered values oldest-first.
func (r *ring[T]) items() []T {
	if !r.full {
		return append([]T(nil), r.buf[:r.next]...)
	}
	out := make([]T, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	out = append(out, r.buf[:r.next]...)
	return out
}
