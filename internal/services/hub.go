package services

import (
	"sync"

	"finboard/backend-go/internal/models"
)

// Hub fans render-state changes out to stream subscribers. Slow subscribers
// lose events rather than blocking the refresher.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan models.RenderState]struct{}
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	return &Hub{subs: make(map[chan models.RenderState]struct{}), buffer: buffer}
}

// Subscribe returns a channel of states and a func that closes it.
func (h *Hub) Subscribe() (<-chan models.RenderState, func()) {
	ch := make(chan models.RenderState, h.buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Publish(st models.RenderState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- st:
		default:
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
