// Package eventbus is a fire-and-forget notification bus for components that
// hold no reference to the cart store. One dispatcher goroutine delivers every
// event; no ordering is promised relative to cart mutations.
package eventbus

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const DefaultQueueSize = 64

var ErrQueueFull = errors.New("eventbus: queue full")

type Handler func(ctx context.Context, ev Event)

type Bus struct {
	queue  chan Event
	logger logrus.FieldLogger

	mu       sync.Mutex
	handlers map[Kind]map[int]Handler
	nextID   int
}

func New(size int, logger logrus.FieldLogger) *Bus {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Bus{
		queue:    make(chan Event, size),
		logger:   logger.WithField("component", "eventbus"),
		handlers: make(map[Kind]map[int]Handler),
	}
}

// Publish enqueues ev without blocking. A full queue drops the event.
func (b *Bus) Publish(ev Event) error {
	if ev == nil {
		return errors.New("eventbus: nil event")
	}
	select {
	case b.queue <- ev:
		return nil
	default:
		b.logger.WithField("kind", ev.Kind().String()).Warn("event dropped")
		return errors.Wrapf(ErrQueueFull, "publish %s", ev.Kind())
	}
}

func (b *Bus) Subscribe(kind Kind, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers[kind] == nil {
		b.handlers[kind] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.handlers[kind][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers[kind], id)
			b.mu.Unlock()
		})
	}
}

// Run dispatches queued events until ctx is done.
func (b *Bus) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-b.queue:
			b.dispatch(ctx, ev)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, ev Event) {
	b.mu.Lock()
	hs := make([]Handler, 0, len(b.handlers[ev.Kind()]))
	for _, h := range b.handlers[ev.Kind()] {
		hs = append(hs, h)
	}
	b.mu.Unlock()

	for _, h := range hs {
		b.call(ctx, h, ev)
	}
}

func (b *Bus) call(ctx context.Context, h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithFields(logrus.Fields{"kind": ev.Kind().String(), "panic": r}).Error("handler panicked")
		}
	}()
	h(ctx, ev)
}
