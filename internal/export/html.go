package export

import (
	"encoding/json"
	"html/template"
	"io"
	"time"

	"flowpulse/internal/trace"
)

// htmlTrace is the flattened shape embedded in the timeline document.
type htmlTrace struct {
	EventID     string           `json:"event_id"`
	EventType   string           `json:"event_type"`
	StartMS     float64          `json:"start_ms"`
	TotalMS     float64          `json:"total_ms"`
	Completed   bool             `json:"completed"`
	Checkpoints []htmlCheckpoint `json:"checkpoints"`
}

type htmlCheckpoint struct {
	Name     string  `json:"name"`
	OffsetMS float64 `json:"offset_ms"`
}

// WriteHTMLTimeline renders a self-contained interactive timeline document
// for the given traces.
func WriteHTMLTimeline(w io.Writer, traces []trace.EventTrace) error {
	flattened := make([]htmlTrace, 0, len(traces))
	var origin time.Time
	for _, t := range traces {
		if len(t.Checkpoints) == 0 {
			continue
		}
		first := t.Checkpoints[0].Timestamp
		if origin.IsZero() || first.Before(origin) {
			origin = first
		}
	}
	for _, t := range traces {
		if len(t.Checkpoints) == 0 {
			continue
		}
		first := t.Checkpoints[0].Timestamp
		h := htmlTrace{
			EventID:   t.EventID,
			EventType: t.EventType,
			StartMS:   durMS(first.Sub(origin)),
			TotalMS:   durMS(t.Latency()),
			Completed: t.Completed,
		}
		for _, cp := range t.Checkpoints {
			h.Checkpoints = append(h.Checkpoints, htmlCheckpoint{
				Name:     cp.Name,
				OffsetMS: durMS(cp.Timestamp.Sub(first)),
			})
		}
		flattened = append(flattened, h)
	}

	payload, err := json.Marshal(flattened)
	if err != nil {
		return err
	}
	return timelineTemplate.Execute(w, template.JS(payload))
}

func durMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

var timelineTemplate = template.Must(template.New("timeline").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>flowpulse timeline</title>
<style>
  body { font-family: ui-monospace, monospace; background: #101418; color: #d6dde4; margin: 2rem; }
  .trace { margin-bottom: 1.2rem; }
  .label { font-size: 0.8rem; color: #7f93a5; margin-bottom: 0.2rem; }
  .bar { position: relative; height: 22px; background: #1a2128; border: 1px solid #2a333c; border-radius: 4px; }
  .span { position: absolute; top: 0; height: 100%; background: #2f6fed55; border-right: 1px solid #2f6fed; }
  .mark { position: absolute; top: -4px; width: 2px; height: 30px; background: #6fcf97; }
  .mark:hover::after { content: attr(data-name); position: absolute; top: -1.4rem; left: 4px;
    background: #1a2128; padding: 2px 6px; border: 1px solid #2a333c; white-space: nowrap; font-size: 0.7rem; }
  .lost .bar { border-color: #eb5757; }
</style>
</head>
<body>
<h1>flowpulse timeline</h1>
<div id="traces"></div>
<script>
  const traces = {{.}};
  const maxEnd = Math.max(1, ...traces.map(t => t.start_ms + t.total_ms));
  const root = document.getElementById("traces");
  for (const t of traces) {
    const div = document.createElement("div");
    div.className = "trace" + (t.completed ? "" : " lost");
    const label = document.createElement("div");
    label.className = "label";
    label.textContent = t.event_id + " [" + t.event_type + "] " + t.total_ms.toFixed(3) + "ms" +
      (t.completed ? "" : " (incomplete)");
    const bar = document.createElement("div");
    bar.className = "bar";
    const span = document.createElement("div");
    span.className = "span";
    span.style.left = (t.start_ms / maxEnd * 100) + "%";
    span.style.width = Math.max(0.2, t.total_ms / maxEnd * 100) + "%";
    bar.appendChild(span);
    for (const cp of t.checkpoints) {
      const mark = document.createElement("div");
      mark.className = "mark";
      mark.dataset.name = cp.name + " +" + cp.offset_ms.toFixed(3) + "ms";
      mark.style.left = ((t.start_ms + cp.offset_ms) / maxEnd * 100) + "%";
      bar.appendChild(mark);
    }
    div.appendChild(label);
    div.appendChild(bar);
    root.appendChild(div);
  }
</script>
</body>
</html>
`))
