// Package crosstab propagates "cart changed" wake-ups between browsing
// contexts of one session through a shared key-value channel. Only the change
// of the marker value matters; its content is never interpreted.
package crosstab

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrUnavailable is returned by channels that cannot be used, e.g. storage
// disabled by the host environment.
var ErrUnavailable = errors.New("crosstab: channel unavailable")

// Channel is a shared key-value store with change notifications. Watchers are
// only called for writes made through other handles, never for their own.
type Channel interface {
	Write(ctx context.Context, key, value string) error
	Watch(ctx context.Context, key string, fn func(value string)) (stop func(), err error)
}

// Hub is an in-process channel shared by several browsing contexts. Each
// context obtains its own handle with Open.
type Hub struct {
	mu          sync.Mutex
	values      map[string]string
	watchers    map[string]map[int]hubWatcher
	nextID      int
	unavailable bool
}

type hubWatcher struct {
	origin string
	fn     func(string)
}

func NewHub() *Hub {
	return &Hub{
		values:   make(map[string]string),
		watchers: make(map[string]map[int]hubWatcher),
	}
}

// Open returns a handle representing one browsing context.
func (h *Hub) Open() *HubChannel {
	return &HubChannel{hub: h, origin: uuid.NewString()}
}

// SetUnavailable toggles simulated storage restrictions.
func (h *Hub) SetUnavailable(v bool) {
	h.mu.Lock()
	h.unavailable = v
	h.mu.Unlock()
}

// Value reads the current value of key.
func (h *Hub) Value(key string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.values[key]
	return v, ok
}

// HubChannel is one context's handle on a Hub.
type HubChannel struct {
	hub    *Hub
	origin string
}

// Write stores value and notifies watchers of other handles asynchronously.
// Writing the value already stored is not a change and notifies nobody.
func (c *HubChannel) Write(_ context.Context, key, value string) error {
	h := c.hub
	h.mu.Lock()
	if h.unavailable {
		h.mu.Unlock()
		return ErrUnavailable
	}
	if old, ok := h.values[key]; ok && old == value {
		h.mu.Unlock()
		return nil
	}
	h.values[key] = value
	var targets []func(string)
	for _, w := range h.watchers[key] {
		if w.origin != c.origin {
			targets = append(targets, w.fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range targets {
		go fn(value)
	}
	return nil
}

func (c *HubChannel) Watch(_ context.Context, key string, fn func(string)) (func(), error) {
	h := c.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unavailable {
		return nil, ErrUnavailable
	}
	id := h.nextID
	h.nextID++
	if h.watchers[key] == nil {
		h.watchers[key] = make(map[int]hubWatcher)
	}
	h.watchers[key][id] = hubWatcher{origin: c.origin, fn: fn}

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.watchers[key], id)
			h.mu.Unlock()
		})
	}, nil
}
