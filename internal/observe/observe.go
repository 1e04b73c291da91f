// SPDX-License-Identifier: MIT

// Package observe fans live-activity snapshots out to registered observers
// (the admin feed). Delivery is best-effort and never blocks the caller.
package observe

import (
	"sync"

	"github.com/tvgate/tvgate/internal/log"
)

// Snapshot is an opaque live-activity payload; the wire format belongs to
// the admin layer, not the core.
type Snapshot any

// Observer receives snapshots. Implementations must not block.
type Observer interface {
	Observe(s Snapshot)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(s Snapshot)

func (f ObserverFunc) Observe(s Snapshot) { f(s) }

// Hub is a best-effort broadcast to registered observers.
type Hub struct {
	mu   sync.RWMutex
	subs []Observer
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{}
}

// Register adds an observer.
func (h *Hub) Register(o Observer) {
	h.mu.Lock()
	h.subs = append(h.subs, o)
	h.mu.Unlock()
}

// Notify delivers s to every observer on a separate goroutine. A panicking
// observer is logged and dropped from that delivery only.
func (h *Hub) Notify(s Snapshot) {
	h.mu.RLock()
	subs := make([]Observer, len(h.subs))
	copy(subs, h.subs)
	h.mu.RUnlock()

	go func() {
		for _, o := range subs {
			func() {
				defer func() {
					if r := recover(); r != nil {
						logger := log.WithComponent("observe")
						logger.Warn().
							Interface("panic", r).
							Msg("observer panicked during notify")
					}
				}()
				o.Observe(s)
			}()
		}
	}()
}
