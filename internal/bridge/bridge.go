// Package bridge fans newly created or finalized entries out to registered
// listeners, per officer, in creation order.
package bridge

import (
	"log"
	"sync"

	"dob-backend/internal/model"
)

// Listener receives entries for one officer. Delivery is fire-and-forget:
// a panicking listener is isolated and does not affect the store or the
// other listeners.
type Listener func(entry model.Entry)

type registration struct {
	id int64
	fn Listener
}

// Bridge is the in-process publish/subscribe hub.
type Bridge struct {
	mu        sync.RWMutex
	nextID    int64
	listeners map[string][]registration
}

// New creates an empty bridge.
func New() *Bridge {
	return &Bridge{listeners: make(map[string][]registration)}
}

// Subscribe registers a listener for the officer's new entries and returns
// an unsubscribe function. After unsubscribing no further deliveries occur.
func (b *Bridge) Subscribe(cpoID string, fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners[cpoID] = append(b.listeners[cpoID], registration{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		regs := b.listeners[cpoID]
		for i, reg := range regs {
			if reg.id == id {
				b.listeners[cpoID] = append(regs[:i:i], regs[i+1:]...)
				break
			}
		}
		if len(b.listeners[cpoID]) == 0 {
			delete(b.listeners, cpoID)
		}
	}
}

// Publish delivers the entry to every listener registered for its officer.
// Delivery is synchronous, so entries published in creation order arrive in
// creation order; the store's per-officer write serialization guarantees
// the publish order itself.
func (b *Bridge) Publish(entry model.Entry) {
	b.mu.RLock()
	regs := make([]registration, len(b.listeners[entry.CPOID]))
	copy(regs, b.listeners[entry.CPOID])
	b.mu.RUnlock()

	for _, reg := range regs {
		deliver(reg.fn, entry)
	}
}

func deliver(fn Listener, entry model.Entry) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("bridge: listener panicked on entry %s: %v", entry.ID, r)
		}
	}()
	fn(entry)
}
