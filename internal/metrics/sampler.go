package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"flowpulse/internal/promx"
)

const (
	defaultSampleInterval = time.Second
	defaultQueueCapacity  = 1000
)

// Probe abstracts the system resource sampler so tests can stub it.
type Probe interface {
	Sample() SystemMetrics
}

// SamplerOptions tunes the sampler loop.
type SamplerOptions struct {
	Interval      time.Duration
	QueueCapacity int
}

// Sampler assembles unified metrics snapshots on demand and, once running,
// publishes one per interval into a bounded hand-off queue with drop-oldest
// backpressure. Consumers only ever need the freshest data, so the oldest
// queued snapshot is discarded when the queue is full.
type Sampler struct {
	probe    Probe
	actions  *ActionRecorder
	events   *EventRecorder
	interval time.Duration
	queue    chan Snapshot
	logger   *slog.Logger
	now      func() time.Time
	once     sync.Once

	dropped   prometheus.Counter
	sampleDur prometheus.Histogram
}

// NewSampler wires a sampler over the given probe and recorders. A nil
// logger disables logging.
func NewSampler(probe Probe, actions *ActionRecorder, events *EventRecorder, logger *slog.Logger, opts SamplerOptions) *Sampler {
	if opts.Interval <= 0 {
		opts.Interval = defaultSampleInterval
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = defaultQueueCapacity
	}
	if logger != nil {
		logger = logger.With("component", "metrics_sampler")
	}
	return &Sampler{
		probe:    probe,
		actions:  actions,
		events:   events,
		interval: opts.Interval,
		queue:    make(chan Snapshot, opts.QueueCapacity),
		logger:   logger,
		now:      time.Now,
		dropped: promx.Counter(prometheus.CounterOpts{
			Namespace: "flowpulse",
			Subsystem: "metrics",
			Name:      "snapshots_dropped_total",
			Help:      "Snapshots discarded from the hand-off queue under backpressure",
		}),
		sampleDur: promx.Histogram(prometheus.HistogramOpts{
			Namespace: "flowpulse",
			Subsystem: "metrics",
			Name:      "sample_duration_seconds",
			Help:      "Time spent assembling one metrics snapshot",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
	}
}

// Latest assembles a snapshot synchronously. It is side-effect free for
// callers and safe to invoke concurrently with the running loop.
func (s *Sampler) Latest() Snapshot {
	start := s.now()
	system := s.probe.Sample()
	ts := s.now()
	snap := Snapshot{
		System:  system,
		Actions: s.actions.metrics(ts),
		Events:  s.events.metrics(ts),
	}
	s.sampleDur.Observe(s.now().Sub(start).Seconds())
	return snap
}

// Run executes the sample-publish loop until the context is cancelled. A
// failed sample is logged and skipped; the loop always reaches the next
// interval.
func (s *Sampler) Run(ctx context.Context) {
	s.once.Do(func() {
		if s.logger != nil {
			s.logger.Info("metrics sampler started", "interval", s.interval, "queue_capacity", cap(s.queue))
		}
	})
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.Info("metrics sampler stopped")
			}
			return
		case <-ticker.C:
			s.sampleOnce()
		}
	}
}

func (s *Sampler) sampleOnce() {
	defer func() {
		if r := recover(); r != nil && s.logger != nil {
			s.logger.Warn("metrics sample failed", "panic", r)
		}
	}()
	s.publish(s.Latest())
}

// publish enqueues without blocking: when the queue is full the oldest
// snapshot is evicted to admit the new one.
func (s *Sampler) publish(snap Snapshot) {
	for {
		select {
		case s.queue <- snap:
			return
		default:
		}
		select {
		case <-s.queue:
			s.dropped.Inc()
		default:
		}
	}
}

// Snapshots exposes the receive side of the hand-off queue.
func (s *Sampler) Snapshots() <-chan Snapshot {
	return s.queue
}

// TryLatestQueued drains the queue and returns the freshest queued snapshot,
// if any.
func (s *Sampler) TryLatestQueued() (Snapshot, bool) {
	var latest Snapshot
	var ok bool
	for {
		select {
		case snap := <-s.queue:
			latest = snap
			ok = true
		default:
			return latest, ok
		}
	}
}
