// Package latency provides pure analysis functions over trace snapshots.
// Nothing here holds state; every function consumes a copy obtained from the
// trace store and can run concurrently with live producers.
package latency

import (
	"sort"
	"time"

	"flowpulse/internal/trace"
)

// StageSeparator joins two consecutive checkpoint names into a stage key.
const StageSeparator = " -> "

// NoBottleneck is reported when no stage data exists.
const NoBottleneck = "N/A"

// StageStats aggregates the latency samples of one stage across all traces.
type StageStats struct {
	Mean  time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
	Min   time.Duration
	Max   time.Duration
	Count int
}

// Anomaly flags a trace whose stage latency exceeded the population mean by
// the configured factor. Only the first offending stage per trace is kept.
type Anomaly struct {
	EventID string
	Trace   trace.EventTrace
	Stage   string
}

// StageComparison holds per-stage latencies of two traces side by side.
type StageComparison struct {
	A       time.Duration
	B       time.Duration
	Diff    time.Duration
	DiffPct float64
}

// AnalyzeLatencies computes per-stage statistics across every trace that
// contains a given consecutive checkpoint pair. Percentiles are nearest-rank.
func AnalyzeLatencies(traces []trace.EventTrace) map[string]StageStats {
	samples := collectStageSamples(traces)
	out := make(map[string]StageStats, len(samples))
	for stage, values := range samples {
		sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
		var sum time.Duration
		for _, v := range values {
			sum += v
		}
		out[stage] = StageStats{
			Mean:  sum / time.Duration(len(values)),
			P50:   percentile(values, 0.50),
			P95:   percentile(values, 0.95),
			P99:   percentile(values, 0.99),
			Min:   values[0],
			Max:   values[len(values)-1],
			Count: len(values),
		}
	}
	return out
}

// FindBottleneck names the stage with the highest mean latency, or
// NoBottleneck when no stage data exists.
func FindBottleneck(traces []trace.EventTrace) string {
	stats := AnalyzeLatencies(traces)
	bottleneck := NoBottleneck
	var worst time.Duration
	for stage, s := range stats {
		if bottleneck == NoBottleneck || s.Mean > worst || (s.Mean == worst && stage < bottleneck) {
			bottleneck = stage
			worst = s.Mean
		}
	}
	return bottleneck
}

// DetectAnomalies flags traces with a stage latency above threshold times
// that stage's population mean. A trace is flagged at most once, on its
// first offending stage in checkpoint order.
func DetectAnomalies(traces []trace.EventTrace, threshold float64) []Anomaly {
	if threshold <= 0 {
		threshold = 2.0
	}
	stats := AnalyzeLatencies(traces)
	var anomalies []Anomaly
	for _, t := range traces {
		for i := 0; i+1 < len(t.Checkpoints); i++ {
			stage := t.Checkpoints[i].Name + StageSeparator + t.Checkpoints[i+1].Name
			s, ok := stats[stage]
			if !ok || s.Mean <= 0 {
				continue
			}
			gap := t.Checkpoints[i+1].Timestamp.Sub(t.Checkpoints[i].Timestamp)
			if float64(gap) > threshold*float64(s.Mean) {
				anomalies = append(anomalies, Anomaly{EventID: t.EventID, Trace: t, Stage: stage})
				break
			}
		}
	}
	return anomalies
}

// CalculateThroughput tiles the traces' creation-time range into fixed
// windows and reports events per second for each window start.
func CalculateThroughput(traces []trace.EventTrace, window time.Duration) map[time.Time]float64 {
	out := make(map[time.Time]float64)
	if len(traces) == 0 {
		return out
	}
	if window <= 0 {
		window = time.Second
	}
	first := traces[0].CreatedAt
	for _, t := range traces[1:] {
		if t.CreatedAt.Before(first) {
			first = t.CreatedAt
		}
	}
	for _, t := range traces {
		offset := t.CreatedAt.Sub(first)
		start := first.Add(offset / window * window)
		out[start] += 1 / window.Seconds()
	}
	return out
}

// CompareTraces intersects the stage latencies of two traces.
func CompareTraces(a, b trace.EventTrace) map[string]StageComparison {
	aStages := stageGaps(a)
	bStages := stageGaps(b)
	out := make(map[string]StageComparison)
	for stage, aGap := range aStages {
		bGap, ok := bStages[stage]
		if !ok {
			continue
		}
		cmp := StageComparison{A: aGap, B: bGap, Diff: bGap - aGap}
		if aGap > 0 {
			cmp.DiffPct = float64(cmp.Diff) / float64(aGap) * 100
		}
		out[stage] = cmp
	}
	return out
}

func collectStageSamples(traces []trace.EventTrace) map[string][]time.Duration {
	samples := make(map[string][]time.Duration)
	for _, t := range traces {
		for i := 0; i+1 < len(t.Checkpoints); i++ {
			stage := t.Checkpoints[i].Name + StageSeparator + t.Checkpoints[i+1].Name
			gap := t.Checkpoints[i+1].Timestamp.Sub(t.Checkpoints[i].Timestamp)
			samples[stage] = append(samples[stage], gap)
		}
	}
	return samples
}

// stageGaps keeps the last occurrence when a trace repeats a stage.
func stageGaps(t trace.EventTrace) map[string]time.Duration {
	out := make(map[string]time.Duration)
	for i := 0; i+1 < len(t.Checkpoints); i++ {
		stage := t.Checkpoints[i].Name + StageSeparator + t.Checkpoints[i+1].Name
		out[stage] = t.Checkpoints[i+1].Timestamp.Sub(t.Checkpoints[i].Timestamp)
	}
	return out
}

// percentile is nearest-rank: index floor(n*p) into the sorted values,
// clamped to the valid range.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}
