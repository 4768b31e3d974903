// Package surface renders the cart for display: a count badge, a flyout and a
// full page. Surfaces only read store state and call store operations.
package surface

import (
	"context"
	"fmt"
	"sync"

	"cartsync/internal/eventbus"
	"cartsync/internal/store"
)

// CartSource is the read side of the cart store.
type CartSource interface {
	State() store.State
	Subscribe(fn func(store.State)) (unsubscribe func())
}

// Badge shows the item count. Bus hints bump it optimistically and pulse
// while they disagree with the store; the next settled store state overrides
// both.
type Badge struct {
	mu      sync.Mutex
	count   int
	settled int
	pulse   bool
	seq     uint64

	stops []func()
}

func NewBadge(src CartSource, bus *eventbus.Bus) *Badge {
	st := src.State()
	b := &Badge{count: st.Cart.ItemCount(), settled: st.Cart.ItemCount(), seq: st.Seq}
	b.stops = append(b.stops, src.Subscribe(b.onState))
	if bus != nil {
		b.stops = append(b.stops,
			bus.Subscribe(eventbus.KindCountHint, b.onHint),
			bus.Subscribe(eventbus.KindClearHint, b.onHint),
		)
	}
	return b
}

func (b *Badge) onState(st store.State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st.Seq != 0 {
		if st.Seq <= b.seq {
			return
		}
		b.seq = st.Seq
	}
	if st.Updating {
		return
	}
	b.settled = st.Cart.ItemCount()
	b.count = b.settled
	b.pulse = false
}

func (b *Badge) onHint(_ context.Context, ev eventbus.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch h := ev.(type) {
	case eventbus.CountHint:
		if h.Count < 0 {
			return
		}
		b.count = h.Count
	case eventbus.ClearHint:
		b.count = 0
	default:
		return
	}
	b.pulse = b.count != b.settled
}

func (b *Badge) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *Badge) Pulsing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pulse
}

func (b *Badge) Render() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pulse {
		return fmt.Sprintf("[cart: %d *]", b.count)
	}
	return fmt.Sprintf("[cart: %d]", b.count)
}

// Close detaches the badge from the store and the bus.
func (b *Badge) Close() {
	for _, stop := range b.stops {
		stop()
	}
	b.stops = nil
}
