package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type stubSubscriber struct {
	mu       sync.Mutex
	payloads [][]byte
	fail     bool
	closed   bool
}

func (s *stubSubscriber) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("connection reset")
	}
	s.payloads = append(s.payloads, payload)
	return nil
}

func (s *stubSubscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *stubSubscriber) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payloads)
}

func (s *stubSubscriber) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *stubSubscriber) setFail(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = v
}

func TestHubBroadcastIsolatesFailedClient(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	defer cancel()

	c1, c2, c3 := &stubSubscriber{}, &stubSubscriber{}, &stubSubscriber{}
	h.Register(c1)
	h.Register(c2)
	h.Register(c3)

	h.Broadcast([]byte("tick-1"))
	waitFor(t, func() bool { return c1.count() == 1 && c2.count() == 1 && c3.count() == 1 })

	// client 2 dies mid-stream; the next broadcasts must still reach 1 and 3
	c2.setFail(true)
	h.Broadcast([]byte("tick-2"))
	h.Broadcast([]byte("tick-3"))
	waitFor(t, func() bool { return c1.count() == 3 && c3.count() == 3 })

	if !c2.isClosed() {
		t.Fatal("expected failed client closed")
	}
	if c2.count() != 1 {
		t.Fatalf("expected dead client to stop receiving, got %d payloads", c2.count())
	}
}

func TestHubUnregisterStopsDelivery(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	defer cancel()

	c := &stubSubscriber{}
	h.Register(c)
	h.Broadcast([]byte("one"))
	waitFor(t, func() bool { return c.count() == 1 })

	h.Unregister(c)
	h.Broadcast([]byte("two"))
	time.Sleep(50 * time.Millisecond)
	if c.count() != 1 {
		t.Fatalf("expected no delivery after unregister, got %d", c.count())
	}
}

func TestHubStopClosesClients(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	c := &stubSubscriber{}
	h.Register(c)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
	if !c.isClosed() {
		t.Fatal("expected client closed on hub shutdown")
	}

	// post-shutdown calls must not block
	h.Register(&stubSubscriber{})
	h.Broadcast([]byte("late"))
	h.Unregister(c)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
