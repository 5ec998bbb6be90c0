package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"flowpulse/internal/latency"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the pipeline with synthetic traffic feeding the dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(true)
	},
}

var demoStages = []string{"frontend_emit", "tauri_receive", "python_receive", "handler_done"}

// generateTraffic drives the producer-facing APIs the way instrumented
// application code would, so the dashboard has live data to show.
func generateTraffic(ctx context.Context, p *pipeline) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(150 * time.Millisecond)
	defer ticker.Stop()

	var inFlight int
	for {
		select {
		case <-ctx.Done():
			fmt.Println(latency.GenerateLatencyReport(p.store.AllTraces()))
			return
		case <-ticker.C:
			eventID := "demo_" + uuid.NewString()[:8]
			p.store.StartTrace(eventID, pickEventType(rng), nil)
			inFlight++
			p.events.SetQueueDepth(inFlight)

			start := time.Now()
			actionName := "handle_" + demoStages[rng.Intn(len(demoStages))]
			p.actions.SetCurrentAction(actionName)

			for _, stage := range demoStages {
				sleepCtx(ctx, time.Duration(1+rng.Intn(8))*time.Millisecond)
				_ = p.store.Checkpoint(eventID, stage, nil)
			}

			success := rng.Float64() > 0.05
			if success {
				if _, err := p.store.CompleteTrace(eventID); err == nil {
					inFlight--
				}
			}
			p.events.SetQueueDepth(inFlight)
			p.events.RecordEvent(time.Since(start), success)
			p.actions.RecordAction(actionName, time.Since(start), success)
			p.actions.SetCurrentAction("")
			p.actions.SetQueueDepth(rng.Intn(5))
		}
	}
}

func pickEventType(rng *rand.Rand) string {
	types := []string{"click", "keypress", "api_call", "file_change"}
	return types[rng.Intn(len(types))]
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
