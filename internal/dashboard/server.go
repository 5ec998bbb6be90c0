package dashboard

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flowpulse/internal/latency"
	"flowpulse/internal/metrics"
	"flowpulse/internal/promx"
	"flowpulse/internal/trace"
)

//go:embed assets/index.html
var assets embed.FS

const defaultBroadcastInterval = time.Second

// Options tunes the dashboard server.
type Options struct {
	Addr              string
	BroadcastInterval time.Duration
	WriteTimeout      time.Duration
}

// Server streams metrics snapshots to any number of websocket viewers. One
// broadcast tick marshals a single sampler read and delivers it to every
// registered client, so no client sees an interleaving of two reads within
// a tick.
type Server struct {
	sampler  *metrics.Sampler
	traces   *trace.Store
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger

	addr              string
	broadcastInterval time.Duration
	writeTimeout      time.Duration

	mu       sync.Mutex
	listener net.Listener
	httpSrv  *http.Server
	cancel   context.CancelFunc
	loops    sync.WaitGroup

	ticks prometheus.Counter
}

// New wires a dashboard server over the sampler and trace store. The trace
// store may be nil; the trace endpoints then report empty data.
func New(sampler *metrics.Sampler, traces *trace.Store, logger *slog.Logger, opts Options) *Server {
	if opts.BroadcastInterval <= 0 {
		opts.BroadcastInterval = defaultBroadcastInterval
	}
	if logger != nil {
		logger = logger.With("component", "dashboard")
	}
	return &Server{
		sampler: sampler,
		traces:  traces,
		hub:     NewHub(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:            logger,
		addr:              opts.Addr,
		broadcastInterval: opts.BroadcastInterval,
		writeTimeout:      opts.WriteTimeout,
		ticks: promx.Counter(prometheus.CounterOpts{
			Namespace: "flowpulse",
			Subsystem: "dashboard",
			Name:      "broadcast_ticks_total",
			Help:      "Broadcast cycles executed",
		}),
	}
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/flow", s.handleFlow)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start launches the sampler loop, the hub loop, the broadcast loop, and the
// listener, in that order. It returns once the listener is accepting.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.loops.Add(3)
	go func() {
		defer s.loops.Done()
		s.sampler.Run(runCtx)
	}()
	go func() {
		defer s.loops.Done()
		s.hub.Run(runCtx)
	}()
	go func() {
		defer s.loops.Done()
		s.broadcastLoop(runCtx)
	}()

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		cancel()
		return err
	}
	s.listener = listener
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if s.logger != nil {
				s.logger.Error("dashboard server error", "error", err)
			}
		}
	}()
	if s.logger != nil {
		s.logger.Info("dashboard server started", "addr", listener.Addr().String(), "broadcast_interval", s.broadcastInterval)
	}
	return nil
}

// Stop cancels the broadcast loop, closes every open client, stops the
// sampler, and releases the socket, in that order.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.loops.Wait()

	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Shutdown(ctx)
		s.httpSrv = nil
		s.listener = nil
	}
	if s.logger != nil {
		s.logger.Info("dashboard server stopped")
	}
	return err
}

// Addr reports the bound listener address, useful with ":0".
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// broadcastLoop marshals one snapshot per tick and fans it out through the
// hub.
func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(s.broadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			payload, err := json.Marshal(s.sampler.Latest())
			if err != nil {
				if s.logger != nil {
					s.logger.Warn("failed to marshal snapshot", "error", err)
				}
				continue
			}
			s.hub.Broadcast(payload)
			s.ticks.Inc()
		}
	}
}

// clientMessage is the inbound wire format. Unknown types are ignored.
type clientMessage struct {
	Type      string   `json:"type"`
	Timestamp *float64 `json:"timestamp,omitempty"`
}

func (s *Server) handleWS(w http.ResponseWriter, req *http.Request) {
	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("websocket upgrade failed", "error", err)
		}
		return
	}
	client := NewClient(conn, s.logger, s.writeTimeout)

	// a new viewer must never wait for the next broadcast tick
	if err := s.pushSnapshot(client); err != nil {
		client.Close()
		return
	}
	s.hub.Register(client)

	defer func() {
		s.hub.Unregister(client)
		client.Close()
	}()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "ping":
			reply := map[string]any{"type": "pong"}
			if msg.Timestamp != nil {
				reply["timestamp"] = *msg.Timestamp
			}
			payload, _ := json.Marshal(reply)
			if err := client.Send(payload); err != nil {
				return
			}
		case "request_metrics":
			if err := s.pushSnapshot(client); err != nil {
				return
			}
		}
	}
}

func (s *Server) pushSnapshot(client *Client) error {
	payload, err := json.Marshal(s.sampler.Latest())
	if err != nil {
		return err
	}
	return client.Send(payload)
}

func (s *Server) handleIndex(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	page, err := assets.ReadFile("assets/index.html")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "dashboard asset missing")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func (s *Server) handleHealthz(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleFlow reports the live trace aggregation for CLI and ad-hoc viewers.
func (s *Server) handleFlow(w http.ResponseWriter, req *http.Request) {
	var traces []trace.EventTrace
	if s.traces != nil {
		traces = s.traces.AllTraces()
	}
	flow := latency.AnalyzeFlow(traces)

	stageMS := make(map[string]float64, len(flow.StageLatencies))
	for stage, mean := range flow.StageLatencies {
		stageMS[stage] = float64(mean) / float64(time.Millisecond)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_events":     flow.TotalEvents,
		"completed_events": flow.CompletedEvents,
		"lost_events":      flow.LostEvents,
		"avg_latency_ms":   float64(flow.AvgLatency) / float64(time.Millisecond),
		"p95_latency_ms":   float64(flow.P95Latency) / float64(time.Millisecond),
		"p99_latency_ms":   float64(flow.P99Latency) / float64(time.Millisecond),
		"bottleneck_stage": flow.BottleneckStage,
		"stage_latencies":  stageMS,
	})
}
