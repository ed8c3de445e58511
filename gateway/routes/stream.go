package routes

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"stakingcore/core/events"
	"stakingcore/core/types"
)

const (
	wsWriteTimeout     = 10 * time.Second
	subscriberCapacity = 64
)

// Stream fans committed staking events out to websocket subscribers. It
// implements events.Emitter so the node can publish into it directly.
type Stream struct {
	logger *slog.Logger

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*subscriber
}

type subscriber struct {
	filter string
	ch     chan *types.Event
}

var _ events.Emitter = (*Stream)(nil)

func NewStream(logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{logger: logger, subs: make(map[uint64]*subscriber)}
}

// Emit delivers evt to every subscriber whose filter matches. Subscribers
// that cannot keep up are disconnected rather than blocking the publisher.
func (s *Stream) Emit(evt events.Event) {
	if s == nil || evt == nil {
		return
	}
	payload := evt.Event()
	if payload == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sub := range s.subs {
		if sub.filter != "" && !strings.HasPrefix(payload.Type, sub.filter) {
			continue
		}
		select {
		case sub.ch <- payload.Clone():
		default:
			s.logger.Warn("event stream subscriber lagging, dropping", "subscriber", id)
			close(sub.ch)
			delete(s.subs, id)
		}
	}
}

// Subscribe registers a subscriber. The returned cancel func is idempotent.
func (s *Stream) Subscribe(filter string) (<-chan *types.Event, func()) {
	sub := &subscriber{filter: strings.TrimSpace(filter), ch: make(chan *types.Event, subscriberCapacity)}
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[id] = sub
	s.mu.Unlock()
	return sub.ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if current, ok := s.subs[id]; ok && current == sub {
			close(sub.ch)
			delete(s.subs, id)
		}
	}
}

// Subscribers returns the number of live subscribers.
func (s *Stream) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// ServeHTTP upgrades the request and streams events as JSON text frames. The
// optional "type" query parameter filters by event type prefix.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	updates, cancel := s.Subscribe(r.URL.Query().Get("type"))
	defer cancel()

	ctx := conn.CloseRead(r.Context())
	if err := s.pump(ctx, conn, updates); err != nil {
		if status := websocket.CloseStatus(err); status == -1 && ctx.Err() == nil {
			s.logger.Debug("event stream closed", "error", err)
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Stream) pump(ctx context.Context, conn *websocket.Conn, updates <-chan *types.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-updates:
			if !ok {
				return conn.Close(websocket.StatusTryAgainLater, "subscriber lagging")
			}
			data, err := json.Marshal(evt)
			if err != nil {
				return err
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
