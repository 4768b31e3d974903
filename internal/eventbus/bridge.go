package eventbus

import (
	"context"
	"io"

	"cartsync/internal/domain"
	"cartsync/internal/store"
	"github.com/sirupsen/logrus"
)

// Adder is the store operation the bridge forwards to.
type Adder interface {
	AddItem(ctx context.Context, productRef string, opts store.AddOptions) (*domain.Cart, error)
}

// Opener shows the cart overview.
type Opener interface {
	Open(ctx context.Context) error
}

type BridgeOption func(*bridge)

// OpenOnAdd opens the overview after every successful bridged add.
func OpenOnAdd(o Opener) BridgeOption {
	return func(b *bridge) { b.opener = o }
}

func WithBridgeLogger(logger logrus.FieldLogger) BridgeOption {
	return func(b *bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

type bridge struct {
	bus    *Bus
	adder  Adder
	opener Opener
	logger logrus.FieldLogger
}

// BridgeStore turns AddRequested events into store adds. After a successful
// add the authoritative count is published as a CountHint.
func BridgeStore(bus *Bus, adder Adder, opts ...BridgeOption) (unsubscribe func()) {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	b := &bridge{bus: bus, adder: adder, logger: discard}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.WithField("component", "bridge")
	return bus.Subscribe(KindAddRequested, b.handle)
}

func (b *bridge) handle(ctx context.Context, ev Event) {
	req, ok := ev.(AddRequested)
	if !ok {
		return
	}
	opts := store.AddOptions{VariantID: req.VariantID}
	if req.Quantity != nil {
		opts.Quantity = *req.Quantity
	}
	cart, err := b.adder.AddItem(ctx, req.ProductRef, opts)
	if err != nil {
		b.logger.WithError(err).WithField("product_ref", req.ProductRef).Warn("bridged add failed")
		return
	}
	_ = b.bus.Publish(CountHint{Count: cart.ItemCount()})
	if b.opener != nil {
		if err := b.opener.Open(ctx); err != nil {
			b.logger.WithError(err).Debug("open after add failed")
		}
	}
}
