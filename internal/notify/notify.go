// Package notify carries the side-effect intents emitted by lifecycle
// commands. The engine only describes who should hear about what; delivery
// belongs entirely to the consumer (SSE stream, mail, chat hook).
package notify

import (
	"context"
	"sync"
	"time"

	"assetflow.org/internal/rbac"
)

// Intent is one notification the orchestrator wants delivered.
type Intent struct {
	RecipientRole rbac.Role         `json:"recipient_role,omitempty"`
	RecipientID   string            `json:"recipient_id,omitempty"`
	Event         string            `json:"event_type"`
	Payload       map[string]string `json:"payload,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

// Stream fans intents out to all active subscribers (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan Intent
	next int
}

// NewStream initialises an empty stream.
func NewStream() *Stream {
	return &Stream{subs: make(map[int]chan Intent)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// intents. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan Intent {
	ch := make(chan Intent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fans the intent out to all subscribers.
func (s *Stream) Publish(intent Intent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- intent:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// PublishAll publishes every intent in order.
func (s *Stream) PublishAll(intents []Intent) {
	for _, intent := range intents {
		s.Publish(intent)
	}
}
