// Package storefront assembles one browsing context: the cart store, the
// cross-context marker, the event bus, the overview controller and the
// display surfaces.
package storefront

import (
	"context"
	"io"
	"sync"

	"cartsync/internal/crosstab"
	"cartsync/internal/eventbus"
	"cartsync/internal/store"
	"cartsync/internal/surface"
	"cartsync/internal/visibility"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Options struct {
	Gateway store.Gateway
	// Channel is shared with sibling contexts. Nil disables cross-context
	// sync.
	Channel   crosstab.Channel
	MarkerKey string
	// Document is locked while the overview is open. Guard, when set, is
	// shared with other overlays of the same document and wins over Document.
	Document  visibility.Document
	Guard     *visibility.ScrollGuard
	QueueSize int
	OpenOnAdd bool
	Logger    logrus.FieldLogger
}

type Context struct {
	Store       *store.Store
	Broadcaster *crosstab.Broadcaster
	Bus         *eventbus.Bus
	Overview    *visibility.Controller
	Badge       *surface.Badge
	Flyout      *surface.Flyout
	Page        *surface.Page

	logger logrus.FieldLogger

	mu      sync.Mutex
	stops   []func()
	cancel  context.CancelFunc
	busDone chan struct{}
	closed  bool
}

func New(opts Options) (*Context, error) {
	if opts.Gateway == nil {
		return nil, errors.New("storefront: gateway is required")
	}
	logger := opts.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	key := opts.MarkerKey
	if key == "" {
		key = crosstab.MarkerKey("default")
	}

	var broadcaster *crosstab.Broadcaster
	if opts.Channel != nil {
		broadcaster = crosstab.NewBroadcaster(opts.Channel, key, logger)
	}
	st := store.New(opts.Gateway, store.WithLogger(logger), store.WithMarker(broadcaster))

	guard := opts.Guard
	if guard == nil && opts.Document != nil {
		guard = visibility.NewScrollGuard(opts.Document)
	}
	overview := visibility.NewController(st, guard, logger)
	bus := eventbus.New(opts.QueueSize, logger)

	c := &Context{
		Store:       st,
		Broadcaster: broadcaster,
		Bus:         bus,
		Overview:    overview,
		Badge:       surface.NewBadge(st, bus),
		Flyout:      surface.NewFlyout(st, st, overview),
		Page:        surface.NewPage(st, st),
		logger:      logger.WithField("component", "storefront"),
	}

	bridgeOpts := []eventbus.BridgeOption{eventbus.WithBridgeLogger(logger)}
	if opts.OpenOnAdd {
		bridgeOpts = append(bridgeOpts, eventbus.OpenOnAdd(overview))
	}
	c.stops = append(c.stops, eventbus.BridgeStore(bus, st, bridgeOpts...))
	return c, nil
}

// Start runs the bus dispatcher, installs the cross-context listener and
// loads the cart. A failed initial load is returned but the context stays
// usable; the store keeps the error for display.
func (c *Context) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil || c.closed {
		c.mu.Unlock()
		return errors.New("storefront: already started")
	}
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.busDone = make(chan struct{})
	c.mu.Unlock()

	go func() {
		defer close(c.busDone)
		_ = c.Bus.Run(runCtx)
	}()

	if c.Broadcaster != nil {
		stop := c.Broadcaster.Listen(runCtx, func() {
			if _, err := c.Store.Refresh(runCtx); err != nil {
				c.logger.WithError(err).Warn("refresh after sibling change failed")
			}
		})
		c.mu.Lock()
		c.stops = append(c.stops, stop)
		c.mu.Unlock()
	}

	_, err := c.Store.Refresh(ctx)
	return err
}

// Focus is called when the context regains attention; siblings may have
// changed the cart while the listener was not looking.
func (c *Context) Focus(ctx context.Context) error {
	_, err := c.Store.Refresh(ctx)
	return err
}

// Navigate closes the overview the way leaving the page would.
func (c *Context) Navigate() {
	c.Overview.Close(visibility.CloseNavigation)
}

// Close tears the context down. Calls still in flight finish against the
// gateway but their results are dropped.
func (c *Context) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	stops := c.stops
	c.stops = nil
	cancel, done := c.cancel, c.busDone
	c.mu.Unlock()

	c.Overview.Close(visibility.CloseTeardown)
	for _, stop := range stops {
		stop()
	}
	c.Badge.Close()
	c.Store.Close()
	if cancel != nil {
		cancel()
		<-done
	}
}
