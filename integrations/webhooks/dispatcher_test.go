package webhooks

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"stakingcore/core/events"
)

func waitFor(cond func() bool, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDispatcherSignsPayload(t *testing.T) {
	secret := []byte("secret")
	var (
		mu       sync.Mutex
		received Payload
		valid    bool
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		mu.Lock()
		defer mu.Unlock()
		valid = Verify(secret, body, r.Header.Get(HeaderSignature)) && r.Header.Get(HeaderEvent) == events.TypeStakeClosed
		_ = json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dispatcher, err := NewDispatcher(server.URL, secret)
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	defer dispatcher.Close()
	dispatcher.Emit(events.StakeClosed{Asset: "native", Amount: 7, Reward: 42})

	waitFor(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return received.Type != ""
	}, time.Second)
	mu.Lock()
	defer mu.Unlock()
	if !valid {
		t.Fatalf("expected valid signature and event header")
	}
	if received.Type != events.TypeStakeClosed || received.Attributes["reward"] != "42" || received.DeliveryID == "" {
		t.Fatalf("unexpected payload %+v", received)
	}
}

func TestDispatcherRetries(t *testing.T) {
	attempts := int32(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	dispatcher, err := NewDispatcher(server.URL, []byte("secret"), WithRetryPolicy(5, 10*time.Millisecond, 20*time.Millisecond))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	defer dispatcher.Close()
	dispatcher.Emit(events.StakeOpened{Asset: "native", Amount: 1})
	waitFor(func() bool { return atomic.LoadInt32(&attempts) >= 3 }, time.Second)
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	if dispatcher.Failed() != 0 {
		t.Fatalf("delivery should have succeeded")
	}
}

func TestDispatcherGivesUp(t *testing.T) {
	attempts := int32(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()
	dispatcher, err := NewDispatcher(server.URL, []byte("secret"), WithRetryPolicy(2, time.Millisecond, 2*time.Millisecond))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	defer dispatcher.Close()
	dispatcher.Emit(events.StakeOpened{Asset: "native", Amount: 1})
	waitFor(func() bool { return dispatcher.Failed() == 1 }, time.Second)
	if dispatcher.Failed() != 1 || atomic.LoadInt32(&attempts) != 2 {
		t.Fatalf("expected abandonment after 2 attempts, got failed=%d attempts=%d", dispatcher.Failed(), atomic.LoadInt32(&attempts))
	}
}

func TestDispatcherFiltersTypes(t *testing.T) {
	hits := int32(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	dispatcher, err := NewDispatcher(server.URL, []byte("secret"), WithEventTypes(events.TypeStakeClosed))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	defer dispatcher.Close()
	dispatcher.Emit(events.StakeOpened{Asset: "native", Amount: 1})
	dispatcher.Emit(events.StakeClosed{Asset: "native", Amount: 1})
	waitFor(func() bool { return atomic.LoadInt32(&hits) >= 1 }, time.Second)
	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected only the closed event delivered, got %d", got)
	}
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(block)
	dispatcher, err := NewDispatcher(server.URL, []byte("secret"), WithQueueSize(1))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	defer dispatcher.Close()
	for i := 0; i < 5; i++ {
		dispatcher.Emit(events.StakeOpened{Asset: "native", Amount: uint64(i + 1)})
	}
	if dispatcher.Dropped() < 3 {
		t.Fatalf("expected at least 3 drops, got %d", dispatcher.Dropped())
	}
}

func TestNewDispatcherValidates(t *testing.T) {
	if _, err := NewDispatcher(" ", []byte("s")); err == nil {
		t.Fatalf("expected endpoint error")
	}
	if _, err := NewDispatcher("http://x", nil); err == nil {
		t.Fatalf("expected secret error")
	}
}
