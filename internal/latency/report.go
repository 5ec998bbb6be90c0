package latency

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"flowpulse/internal/trace"
)

const maxReportedAnomalies = 10

// GenerateLatencyReport renders a human-readable summary of a trace
// snapshot: flow totals, per-stage statistics sorted by descending mean
// latency, the bottleneck, and up to ten anomalies.
func GenerateLatencyReport(traces []trace.EventTrace) string {
	flow := AnalyzeFlow(traces)
	stats := AnalyzeLatencies(traces)

	var b strings.Builder
	b.WriteString("LATENCY REPORT\n")
	b.WriteString("==============\n\n")
	fmt.Fprintf(&b, "Events: %d total, %d completed, %d lost\n", flow.TotalEvents, flow.CompletedEvents, flow.LostEvents)
	fmt.Fprintf(&b, "Latency: avg=%s p95=%s p99=%s\n", fmtDur(flow.AvgLatency), fmtDur(flow.P95Latency), fmtDur(flow.P99Latency))
	fmt.Fprintf(&b, "Bottleneck: %s\n\n", flow.BottleneckStage)

	if len(stats) > 0 {
		b.WriteString("Stages (by mean latency):\n")
		stages := make([]string, 0, len(stats))
		for stage := range stats {
			stages = append(stages, stage)
		}
		sort.Slice(stages, func(i, j int) bool {
			if stats[stages[i]].Mean != stats[stages[j]].Mean {
				return stats[stages[i]].Mean > stats[stages[j]].Mean
			}
			return stages[i] < stages[j]
		})
		for _, stage := range stages {
			s := stats[stage]
			fmt.Fprintf(&b, "  %-40s mean=%-10s p50=%-10s p95=%-10s p99=%-10s min=%-10s max=%-10s n=%d\n",
				stage, fmtDur(s.Mean), fmtDur(s.P50), fmtDur(s.P95), fmtDur(s.P99), fmtDur(s.Min), fmtDur(s.Max), s.Count)
		}
		b.WriteString("\n")
	}

	anomalies := DetectAnomalies(traces, 2.0)
	if len(anomalies) > 0 {
		shown := anomalies
		if len(shown) > maxReportedAnomalies {
			shown = shown[:maxReportedAnomalies]
		}
		fmt.Fprintf(&b, "Anomalies (%d found, showing %d):\n", len(anomalies), len(shown))
		for _, a := range shown {
			fmt.Fprintf(&b, "  %s slow at %s (total %s)\n", a.EventID, a.Stage, fmtDur(a.Trace.Latency()))
		}
	} else {
		b.WriteString("Anomalies: none\n")
	}
	return b.String()
}

func fmtDur(d time.Duration) string {
	return fmt.Sprintf("%.3fms", float64(d)/float64(time.Millisecond))
}
