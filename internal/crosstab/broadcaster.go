package crosstab

import (
	"context"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// MarkerKey is the well-known channel key for a session's cart marker.
func MarkerKey(sessionID string) string {
	return "cartsync:" + sessionID + ":cart-updated"
}

// Broadcaster writes the cart marker after local mutations and turns marker
// changes made elsewhere into callbacks. A missing or failing channel degrades
// to a no-op.
type Broadcaster struct {
	ch     Channel
	key    string
	logger logrus.FieldLogger
	now    func() time.Time

	mu   sync.Mutex
	last int64
}

func NewBroadcaster(ch Channel, key string, logger logrus.FieldLogger) *Broadcaster {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Broadcaster{
		ch:     ch,
		key:    key,
		logger: logger.WithField("component", "crosstab"),
		now:    time.Now,
	}
}

// Broadcast writes a fresh timestamp. Values are strictly increasing per
// broadcaster so two writes in the same millisecond still count as a change.
func (b *Broadcaster) Broadcast(ctx context.Context) {
	if b == nil || b.ch == nil {
		return
	}
	b.mu.Lock()
	stamp := b.now().UnixMilli()
	if stamp <= b.last {
		stamp = b.last + 1
	}
	b.last = stamp
	b.mu.Unlock()

	if err := b.ch.Write(ctx, b.key, strconv.FormatInt(stamp, 10)); err != nil {
		b.logger.WithError(err).Debug("marker write skipped")
	}
}

// Listen calls fn whenever another context changes the marker. The returned
// stop function is always non-nil.
func (b *Broadcaster) Listen(ctx context.Context, fn func()) func() {
	if b == nil || b.ch == nil {
		return func() {}
	}
	stop, err := b.ch.Watch(ctx, b.key, func(string) { fn() })
	if err != nil {
		b.logger.WithError(err).Warn("cross-tab sync disabled")
		return func() {}
	}
	return stop
}
