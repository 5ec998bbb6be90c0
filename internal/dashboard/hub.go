package dashboard

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"flowpulse/internal/promx"
)

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub owns the client registry. A single goroutine (Run) performs every
// registry mutation and broadcast, so the set needs no lock and one slow or
// dead client can never stall delivery to the rest: a failed send closes and
// removes only that client.
type Hub struct {
	register  chan Subscriber
	unreg     chan Subscriber
	broadcast chan []byte
	done      chan struct{}

	connected    prometheus.Gauge
	sendFailures prometheus.Counter
}

// NewHub creates an initialized Hub. Call Run to start the registry loop.
func NewHub() *Hub {
	return &Hub{
		register:  make(chan Subscriber),
		unreg:     make(chan Subscriber),
		broadcast: make(chan []byte),
		done:      make(chan struct{}),
		connected: promx.Gauge(prometheus.GaugeOpts{
			Namespace: "flowpulse",
			Subsystem: "dashboard",
			Name:      "clients_connected",
			Help:      "Currently registered dashboard clients",
		}),
		sendFailures: promx.Counter(prometheus.CounterOpts{
			Namespace: "flowpulse",
			Subsystem: "dashboard",
			Name:      "send_failures_total",
			Help:      "Broadcast sends that failed and deregistered a client",
		}),
	}
}

// Run owns the registry until ctx is cancelled, then closes every remaining
// client.
func (h *Hub) Run(ctx context.Context) {
	clients := make(map[Subscriber]struct{})
	defer func() {
		for c := range clients {
			c.Close()
		}
		h.connected.Set(0)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			clients[c] = struct{}{}
			h.connected.Set(float64(len(clients)))
		case c := <-h.unreg:
			if _, ok := clients[c]; ok {
				delete(clients, c)
				h.connected.Set(float64(len(clients)))
			}
		case payload := <-h.broadcast:
			for c := range clients {
				if err := c.Send(payload); err != nil {
					c.Close()
					delete(clients, c)
					h.sendFailures.Inc()
				}
			}
			h.connected.Set(float64(len(clients)))
		}
	}
}

// Register adds a client to the broadcast set. No-op once the hub stopped.
func (h *Hub) Register(c Subscriber) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister removes a client. No-op once the hub stopped.
func (h *Hub) Unregister(c Subscriber) {
	select {
	case h.unreg <- c:
	case <-h.done:
	}
}

// Broadcast sends payload to every registered client. No-op once the hub
// stopped.
func (h *Hub) Broadcast(payload []byte) {
	select {
	case h.broadcast <- payload:
	case <-h.done:
	}
}
