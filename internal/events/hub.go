// Package events carries typed story and batch notifications from the
// components that produce them to whoever subscribed for a story.
package events

import (
	"log/slog"
	"sync"
	"time"
)

type Type string

const (
	StoryUpdated   Type = "story.updated"
	StoryDeleted   Type = "story.deleted"
	BatchStarted   Type = "batch.started"
	BatchCompleted Type = "batch.completed"
	BatchFailed    Type = "batch.failed"
)

type Event struct {
	Type    Type      `json:"type"`
	StoryID string    `json:"story_id"`
	JobID   string    `json:"job_id,omitempty"`
	Action  string    `json:"action,omitempty"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// Publisher is implemented by Hub. Components depend on it so tests can
// record events.
type Publisher interface {
	Publish(e Event)
}

const subscriberBuffer = 32

// Hub fans events out to per-story subscribers. Publish never blocks: a
// subscriber whose buffer is full misses the event.
type Hub struct {
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{logger: logger, subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe returns a channel receiving the events of storyID, or of every
// story when storyID is empty. The cancel func unsubscribes and closes the
// channel.
func (h *Hub) Subscribe(storyID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.subs[storyID] == nil {
		h.subs[storyID] = make(map[chan Event]struct{})
	}
	h.subs[storyID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[storyID], ch)
			if len(h.subs[storyID]) == 0 {
				delete(h.subs, storyID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (h *Hub) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	h.deliver(h.subs[e.StoryID], e)
	if e.StoryID != "" {
		h.deliver(h.subs[""], e)
	}
}

func (h *Hub) deliver(subs map[chan Event]struct{}, e Event) {
	for ch := range subs {
		select {
		case ch <- e:
		default:
			if h.logger != nil {
				h.logger.Warn("dropping event for slow subscriber", "type", e.Type, "story_id", e.StoryID)
			}
		}
	}
}

// Subscribers returns the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, subs := range h.subs {
		n += len(subs)
	}
	return n
}
