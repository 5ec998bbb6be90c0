// Package export converts completed trace snapshots into offline artifacts:
// Chrome/Perfetto trace-event JSON and a self-contained HTML timeline. It is
// never on the live path.
package export

import (
	"encoding/json"
	"io"

	"flowpulse/internal/trace"
)

// ChromeEvent is one entry of the Chrome Trace Event format. Timestamps and
// durations are microseconds.
type ChromeEvent struct {
	Name      string         `json:"name"`
	Category  string         `json:"cat"`
	Phase     string         `json:"ph"`
	Timestamp int64          `json:"ts"`
	Duration  int64          `json:"dur"`
	PID       int            `json:"pid"`
	TID       int            `json:"tid"`
	Args      map[string]any `json:"args,omitempty"`
}

// ChromeTraceDocument is the top-level JSON object chrome://tracing accepts.
type ChromeTraceDocument struct {
	TraceEvents []ChromeEvent `json:"traceEvents"`
	DisplayUnit string        `json:"displayTimeUnit"`
}

const (
	phaseComplete = "X"
	phaseInstant  = "i"
)

// BuildChromeTrace turns traces into the event list: per trace one metadata
// instant, and per checkpoint one complete event spanning the gap to the
// next checkpoint (zero-length for the last) plus one instant marker.
func BuildChromeTrace(traces []trace.EventTrace) ChromeTraceDocument {
	doc := ChromeTraceDocument{DisplayUnit: "ms", TraceEvents: []ChromeEvent{}}
	for tid, t := range traces {
		doc.TraceEvents = append(doc.TraceEvents, ChromeEvent{
			Name:      t.EventID,
			Category:  "metadata",
			Phase:     phaseInstant,
			Timestamp: t.CreatedAt.UnixMicro(),
			PID:       1,
			TID:       tid,
			Args: map[string]any{
				"event_type": t.EventType,
				"completed":  t.Completed,
			},
		})
		for i, cp := range t.Checkpoints {
			var dur int64
			if i+1 < len(t.Checkpoints) {
				dur = t.Checkpoints[i+1].Timestamp.UnixMicro() - cp.Timestamp.UnixMicro()
			}
			doc.TraceEvents = append(doc.TraceEvents, ChromeEvent{
				Name:      cp.Name,
				Category:  t.EventType,
				Phase:     phaseComplete,
				Timestamp: cp.Timestamp.UnixMicro(),
				Duration:  dur,
				PID:       1,
				TID:       tid,
			})
			doc.TraceEvents = append(doc.TraceEvents, ChromeEvent{
				Name:      cp.Name,
				Category:  "checkpoint",
				Phase:     phaseInstant,
				Timestamp: cp.Timestamp.UnixMicro(),
				PID:       1,
				TID:       tid,
				Args:      instantArgs(cp),
			})
		}
	}
	return doc
}

// WriteChromeTrace writes the trace-event JSON document to w.
func WriteChromeTrace(w io.Writer, traces []trace.EventTrace) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(BuildChromeTrace(traces))
}

// ReadChromeTrace parses a trace-event JSON document.
func ReadChromeTrace(r io.Reader) (ChromeTraceDocument, error) {
	var doc ChromeTraceDocument
	err := json.NewDecoder(r).Decode(&doc)
	return doc, err
}

func instantArgs(cp trace.Checkpoint) map[string]any {
	if len(cp.Metadata) == 0 && cp.Owner == "" {
		return nil
	}
	args := make(map[string]any, len(cp.Metadata)+1)
	for k, v := range cp.Metadata {
		args[k] = v
	}
	if cp.Owner != "" {
		args["owner"] = cp.Owner
	}
	return args
}
