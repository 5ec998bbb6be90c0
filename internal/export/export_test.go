package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"flowpulse/internal/trace"
)

var exportBase = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func sampleTraces() []trace.EventTrace {
	mk := func(id string, names []string, offsets []time.Duration, completed bool) trace.EventTrace {
		t := trace.EventTrace{
			EventID:   id,
			EventType: "click",
			CreatedAt: exportBase.Add(offsets[0]),
			Completed: completed,
		}
		for i, name := range names {
			t.Checkpoints = append(t.Checkpoints, trace.Checkpoint{
				Name:      name,
				Timestamp: exportBase.Add(offsets[i]),
				Owner:     "worker-1",
			})
		}
		if completed {
			t.TotalLatency = offsets[len(offsets)-1] - offsets[0]
		}
		return t
	}
	return []trace.EventTrace{
		mk("evt_1", []string{"frontend_emit", "tauri_receive", "python_receive"},
			[]time.Duration{0, 3 * time.Millisecond, 10 * time.Millisecond}, true),
		mk("evt_2", []string{"frontend_emit", "tauri_receive"},
			[]time.Duration{5 * time.Millisecond, 9 * time.Millisecond}, false),
	}
}

func TestChromeTraceEventCountRule(t *testing.T) {
	traces := sampleTraces()

	var buf bytes.Buffer
	if err := WriteChromeTrace(&buf, traces); err != nil {
		t.Fatalf("write: %v", err)
	}
	doc, err := ReadChromeTrace(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	totalCheckpoints := 0
	for _, tr := range traces {
		totalCheckpoints += len(tr.Checkpoints)
	}
	want := totalCheckpoints*2 + len(traces)
	if len(doc.TraceEvents) != want {
		t.Fatalf("expected %d events (checkpoints*2 + traces), got %d", want, len(doc.TraceEvents))
	}
}

func TestChromeTraceDurationsAndPhases(t *testing.T) {
	doc := BuildChromeTrace(sampleTraces())

	var metadata, complete, instant int
	for _, ev := range doc.TraceEvents {
		switch {
		case ev.Category == "metadata":
			metadata++
			if ev.Phase != "i" {
				t.Fatalf("metadata event with phase %q", ev.Phase)
			}
		case ev.Phase == "X":
			complete++
		case ev.Phase == "i":
			instant++
		default:
			t.Fatalf("unexpected event %+v", ev)
		}
	}
	if metadata != 2 || complete != 5 || instant != 5 {
		t.Fatalf("unexpected event mix: metadata=%d complete=%d instant=%d", metadata, complete, instant)
	}

	// evt_1's first gap is 3ms
	for _, ev := range doc.TraceEvents {
		if ev.Phase == "X" && ev.Name == "frontend_emit" && ev.TID == 0 {
			if ev.Duration != 3000 {
				t.Fatalf("expected 3000us duration, got %d", ev.Duration)
			}
			return
		}
	}
	t.Fatal("missing complete event for frontend_emit")
}

func TestChromeTraceLastCheckpointZeroDuration(t *testing.T) {
	doc := BuildChromeTrace(sampleTraces())
	for _, ev := range doc.TraceEvents {
		if ev.Phase == "X" && ev.Name == "python_receive" {
			if ev.Duration != 0 {
				t.Fatalf("expected zero duration for last checkpoint, got %d", ev.Duration)
			}
			return
		}
	}
	t.Fatal("missing complete event for python_receive")
}

func TestTraceDumpRoundTrip(t *testing.T) {
	traces := sampleTraces()

	var buf bytes.Buffer
	if err := WriteTraceDump(&buf, traces); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadTraceDump(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != len(traces) {
		t.Fatalf("expected %d traces, got %d", len(traces), len(got))
	}
	if got[0].EventID != "evt_1" || len(got[0].Checkpoints) != 3 {
		t.Fatalf("unexpected round-tripped trace %+v", got[0])
	}
	if got[0].TotalLatency != 10*time.Millisecond {
		t.Fatalf("expected latency preserved, got %v", got[0].TotalLatency)
	}
	if !got[0].Checkpoints[1].Timestamp.Equal(exportBase.Add(3 * time.Millisecond)) {
		t.Fatalf("expected timestamps preserved, got %v", got[0].Checkpoints[1].Timestamp)
	}
}

func TestHTMLTimelineEmbedsTraceData(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHTMLTimeline(&buf, sampleTraces()); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"<!DOCTYPE html>",
		"evt_1",
		"evt_2",
		"frontend_emit",
		"python_receive",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("timeline missing %q", want)
		}
	}
}
