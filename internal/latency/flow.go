package latency

import (
	"sort"
	"time"

	"flowpulse/internal/trace"
)

// EventFlow is an immutable aggregate over a trace snapshot. It is recomputed
// on every call and never stored.
type EventFlow struct {
	TotalEvents     int
	CompletedEvents int
	LostEvents      int
	AvgLatency      time.Duration
	P95Latency      time.Duration
	P99Latency      time.Duration
	BottleneckStage string
	StageLatencies  map[string]time.Duration
}

// AnalyzeFlow aggregates a trace snapshot into an EventFlow. Latency
// percentiles are taken over the total latencies of completed traces.
func AnalyzeFlow(traces []trace.EventTrace) EventFlow {
	flow := EventFlow{
		TotalEvents:     len(traces),
		BottleneckStage: NoBottleneck,
		StageLatencies:  make(map[string]time.Duration),
	}

	var totals []time.Duration
	for _, t := range traces {
		if t.Completed {
			flow.CompletedEvents++
			totals = append(totals, t.TotalLatency)
		}
	}
	flow.LostEvents = flow.TotalEvents - flow.CompletedEvents

	if len(totals) > 0 {
		sort.Slice(totals, func(i, j int) bool { return totals[i] < totals[j] })
		var sum time.Duration
		for _, v := range totals {
			sum += v
		}
		flow.AvgLatency = sum / time.Duration(len(totals))
		flow.P95Latency = percentile(totals, 0.95)
		flow.P99Latency = percentile(totals, 0.99)
	}

	stats := AnalyzeLatencies(traces)
	var worst time.Duration
	for stage, s := range stats {
		flow.StageLatencies[stage] = s.Mean
		if flow.BottleneckStage == NoBottleneck || s.Mean > worst || (s.Mean == worst && stage < flow.BottleneckStage) {
			flow.BottleneckStage = stage
			worst = s.Mean
		}
	}
	return flow
}
