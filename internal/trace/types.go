package trace

import "time"

// Checkpoint captures one named instant in an event's path through the system.
type Checkpoint struct {
	Name      string            `json:"name"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Owner     string            `json:"owner,omitempty"`
}

// EventTrace is the ordered checkpoint sequence for one uniquely-identified event.
type EventTrace struct {
	EventID      string            `json:"event_id"`
	EventType    string            `json:"event_type"`
	CreatedAt    time.Time         `json:"created_at"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Checkpoints  []Checkpoint      `json:"checkpoints"`
	Completed    bool              `json:"completed"`
	TotalLatency time.Duration     `json:"total_latency"`
}

// Latency reports the time between the first and last checkpoint. For
// completed traces this equals TotalLatency; for in-flight traces it is
// derived from the checkpoints recorded so far. Zero until two checkpoints
// exist.
func (t EventTrace) Latency() time.Duration {
	if t.Completed {
		return t.TotalLatency
	}
	return t.span()
}

func (t EventTrace) span() time.Duration {
	if len(t.Checkpoints) < 2 {
		return 0
	}
	first := t.Checkpoints[0].Timestamp
	last := t.Checkpoints[len(t.Checkpoints)-1].Timestamp
	return last.Sub(first)
}

func (t EventTrace) clone() EventTrace {
	out := t
	out.Metadata = copyMetadata(t.Metadata)
	out.Checkpoints = make([]Checkpoint, len(t.Checkpoints))
	for i, cp := range t.Checkpoints {
		copied := cp
		copied.Metadata = copyMetadata(cp.Metadata)
		out.Checkpoints[i] = copied
	}
	return out
}
