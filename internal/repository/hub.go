package repository

import (
	"context"
	"sync"

	"coins-catcher/internal/model"
)

// subscriberBuffer is how many undelivered events a subscriber may queue.
const subscriberBuffer = 16

// Hub fans account events out to subscribers.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan model.AccountEvent]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan model.AccountEvent]struct{})}
}

// Subscribe registers a subscriber for accountID. The channel is closed
// once ctx is done.
func (h *Hub) Subscribe(ctx context.Context, accountID string) <-chan model.AccountEvent {
	ch := make(chan model.AccountEvent, subscriberBuffer)

	h.mu.Lock()
	set, ok := h.subs[accountID]
	if !ok {
		set = make(map[chan model.AccountEvent]struct{})
		h.subs[accountID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs[accountID], ch)
		if len(h.subs[accountID]) == 0 {
			delete(h.subs, accountID)
		}
		close(ch)
		h.mu.Unlock()
	}()

	return ch
}

// Publish delivers ev to every subscriber of its account without blocking.
func (h *Hub) Publish(ev model.AccountEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[ev.AccountID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
