package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/cardsort/internal/logging"
	"github.com/aretw0/cardsort/pkg/domain"
)

// event is one server-sent event.
type event struct {
	Name string
	Data []byte
}

// StreamManager fans sorter events out to SSE subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan event]struct{}
	logger      *slog.Logger
}

// NewStreamManager creates an empty StreamManager.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[chan event]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a new listener. The returned func unsubscribes it.
func (sm *StreamManager) Subscribe() (<-chan event, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan event, 16)
	sm.subscribers[ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if _, ok := sm.subscribers[ch]; ok {
			delete(sm.subscribers, ch)
			close(ch)
		}
	}
}

// Subscribers returns the number of listeners.
func (sm *StreamManager) Subscribers() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers)
}

// Broadcast sends v, encoded as JSON, to every listener. Slow listeners miss the event.
func (sm *StreamManager) Broadcast(name string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		sm.logger.Error("StreamManager: failed to encode event", "event", name, "err", err)
		return
	}

	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for ch := range sm.subscribers {
		select {
		case ch <- event{Name: name, Data: data}:
		default:
			sm.logger.Warn("SSE: client buffer full, dropping event", "event", name)
		}
	}
}

// Hooks broadcasts feed phases, cycle events and running changes.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	cycle := func(ctx context.Context, e *domain.CycleEvent) {
		sm.Broadcast(string(e.Type), e)
	}
	return domain.LifecycleHooks{
		OnFeedPhase: func(ctx context.Context, e *domain.PhaseEvent) {
			sm.Broadcast(string(e.Type), e)
		},
		OnCycleStart:      cycle,
		OnCycleEnd:        cycle,
		OnFeedFault:       cycle,
		OnIdentifyFailure: cycle,
		OnRunningChange: func(ctx context.Context, e *domain.RunningEvent) {
			sm.Broadcast(string(e.Type), e)
		},
	}
}

// SubscribeEvents handles GET /events (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.streams.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Data)
			flusher.Flush()
		}
	}
}
