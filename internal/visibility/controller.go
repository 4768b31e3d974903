// Package visibility tracks whether the cart overview is open and keeps the
// page scroll suspended while it is.
package visibility

import (
	"context"
	"io"
	"sync"

	"cartsync/internal/domain"
	"github.com/sirupsen/logrus"
)

// CloseReason says which trigger closed the overview.
type CloseReason int

const (
	CloseExplicit CloseReason = iota
	CloseOutsideClick
	CloseEscape
	CloseNavigation
	CloseTeardown
)

func (r CloseReason) String() string {
	switch r {
	case CloseExplicit:
		return "explicit"
	case CloseOutsideClick:
		return "outside-click"
	case CloseEscape:
		return "escape"
	case CloseNavigation:
		return "navigation"
	case CloseTeardown:
		return "teardown"
	default:
		return "unknown"
	}
}

// Refresher is the part of the cart store the controller needs.
type Refresher interface {
	Refresh(ctx context.Context) (*domain.Cart, error)
}

type Controller struct {
	refresher Refresher
	guard     *ScrollGuard
	logger    logrus.FieldLogger

	mu      sync.Mutex
	open    bool
	release func()
	subs    map[int]func(bool)
	nextSub int
}

// NewController starts closed. guard may be nil when there is no document to
// lock.
func NewController(r Refresher, guard *ScrollGuard, logger logrus.FieldLogger) *Controller {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Controller{
		refresher: r,
		guard:     guard,
		logger:    logger.WithField("component", "visibility"),
		subs:      make(map[int]func(bool)),
	}
}

// Open shows the overview and always refreshes the cart, even when already
// open. A failed refresh leaves the overview open; the store keeps the error
// for display.
func (c *Controller) Open(ctx context.Context) error {
	if c.setOpen() {
		c.notify(true)
	}
	if c.refresher == nil {
		return nil
	}
	_, err := c.refresher.Refresh(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("refresh on open failed")
	}
	return err
}

// Close hides the overview and restores scroll. Closing a closed overview is
// a no-op.
func (c *Controller) Close(reason CloseReason) {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return
	}
	c.open = false
	release := c.release
	c.release = nil
	c.mu.Unlock()

	if release != nil {
		release()
	}
	c.logger.WithField("reason", reason.String()).Debug("overview closed")
	c.notify(false)
}

func (c *Controller) Toggle(ctx context.Context) error {
	if c.IsOpen() {
		c.Close(CloseExplicit)
		return nil
	}
	return c.Open(ctx)
}

func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Subscribe registers fn for open/closed transitions.
func (c *Controller) Subscribe(fn func(open bool)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

func (c *Controller) setOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open {
		return false
	}
	c.open = true
	c.release = c.guard.Acquire()
	return true
}

func (c *Controller) notify(open bool) {
	c.mu.Lock()
	fns := make([]func(bool), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(open)
	}
}
