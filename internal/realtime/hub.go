// Package realtime fans task and project events out to live subscribers.
package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"scenecast-backend/internal/models"
)

type EventType string

const (
	EventTaskUpdated    EventType = "task.updated"
	EventProjectUpdated EventType = "project.updated"
)

type Event struct {
	Type      EventType            `json:"type"`
	ProjectID uuid.UUID            `json:"project_id"`
	Task      *models.VideoTask    `json:"task,omitempty"`
	Status    models.ProjectStatus `json:"status,omitempty"`
	At        time.Time            `json:"at"`
}

// Publisher is what the orchestrator needs from the hub.
type Publisher interface {
	Publish(Event)
}

type subscriber struct {
	ch chan Event
}

// Hub keeps per-project subscriber sets. Publish never blocks: a subscriber
// whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[*subscriber]struct{}
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: make(map[uuid.UUID]map[*subscriber]struct{}), buffer: buffer}
}

// Subscribe registers for a project's events. The returned cancel func
// unregisters and closes the channel.
func (h *Hub) Subscribe(projectID uuid.UUID) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, h.buffer)}

	h.mu.Lock()
	set, ok := h.subs[projectID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[projectID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[projectID], sub)
			if len(h.subs[projectID]) == 0 {
				delete(h.subs, projectID)
			}
			h.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[ev.ProjectID] {
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

func (h *Hub) Subscribers(projectID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[projectID])
}
