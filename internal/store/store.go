// Package store holds the cart snapshot of one browsing context. It is the
// only caller of the cart gateway; every successful call replaces the snapshot
// wholesale with what the gateway returned.
package store

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"cartsync/internal/domain"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrClosed is returned by operations on a store that was torn down.
var ErrClosed = errors.New("store: closed")

// Gateway is the remote source of truth for the session's cart.
type Gateway interface {
	Get(ctx context.Context) (*domain.Cart, error)
	AddItem(ctx context.Context, draft domain.LineDraft) (*domain.Cart, error)
	UpdateItem(ctx context.Context, lineItemID string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, lineItemID string) (*domain.Cart, error)
	SetItems(ctx context.Context, items []domain.LineDraft) (*domain.Cart, error)
}

// Marker is told about every successful mutation so sibling contexts can
// re-fetch.
type Marker interface {
	Broadcast(ctx context.Context)
}

// AddOptions tunes AddItem. A zero Quantity means one.
type AddOptions struct {
	Quantity  int
	VariantID string
}

// State is what subscribers observe. Notifications from concurrent operations
// may reach a subscriber out of order; Seq increases with every notification,
// so a subscriber that keeps derived state drops anything not newer than what
// it last saw.
type State struct {
	Cart     *domain.Cart
	Updating bool
	Err      error
	Seq      uint64
}

type Option func(*Store)

func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMarker(m Marker) Option {
	return func(s *Store) {
		s.marker = m
	}
}

type Store struct {
	gateway Gateway
	marker  Marker
	logger  logrus.FieldLogger
	tracer  trace.Tracer

	mu       sync.Mutex
	cart     *domain.Cart
	err      error
	inflight int
	issued   uint64
	applied  uint64
	notified uint64
	subs     map[int]func(State)
	nextSub  int
	closed   bool
}

func New(gw Gateway, opts ...Option) *Store {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	s := &Store{
		gateway: gw,
		logger:  discard,
		tracer:  otel.Tracer("cartsync/store"),
		subs:    make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithField("component", "store")
	return s
}

// Refresh pulls the current cart. On failure the previous snapshot is kept and
// the error is recorded for display.
func (s *Store) Refresh(ctx context.Context) (*domain.Cart, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	ctx, span := s.tracer.Start(ctx, "store.Refresh")
	defer span.End()

	seq := s.nextSeq()
	cart, err := s.gateway.Get(ctx)
	if err != nil {
		err = asTransport("get", err)
		s.fail(err)
		endSpan(span, err)
		return nil, err
	}
	s.apply(seq, cart)
	return s.Cart(), nil
}

// AddItem places quantity units of productRef in the cart and then pulls the
// resulting cart.
func (s *Store) AddItem(ctx context.Context, productRef string, opts AddOptions) (*domain.Cart, error) {
	ref := strings.TrimSpace(productRef)
	if ref == "" {
		return nil, domain.NewValidationError("productRef", "required")
	}
	qty := opts.Quantity
	if qty < 0 {
		return nil, domain.NewValidationError("quantity", "must not be negative")
	}
	if qty == 0 {
		qty = 1
	}
	draft := domain.LineDraft{SKU: ref, VariantID: strings.TrimSpace(opts.VariantID), Quantity: qty}

	return s.mutate(ctx, "store.AddItem", func(ctx context.Context) (*domain.Cart, error) {
		added, err := s.gateway.AddItem(ctx, draft)
		if err != nil {
			return nil, err
		}
		pulled, err := s.gateway.Get(ctx)
		if err != nil {
			s.logger.WithError(err).Warn("post-add pull failed, keeping add response")
			return added, nil
		}
		return pulled, nil
	}, attribute.String("product.ref", ref), attribute.Int("quantity", qty))
}

// SetItemQuantity clamps quantity to zero or more. Zero is sent as a removal.
// A line that vanished server-side forces a refresh and yields NotFoundError.
func (s *Store) SetItemQuantity(ctx context.Context, itemID string, quantity int) (*domain.Cart, error) {
	id := strings.TrimSpace(itemID)
	if id == "" {
		return nil, domain.NewValidationError("itemID", "required")
	}
	if quantity < 0 {
		quantity = 0
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, id)
	}

	cart, err := s.mutate(ctx, "store.SetItemQuantity", func(ctx context.Context) (*domain.Cart, error) {
		return s.gateway.UpdateItem(ctx, id, quantity)
	}, attribute.String("line.id", id), attribute.Int("quantity", quantity))
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.WithField("line_id", id).Info("stale line reference, refreshing")
		if _, rerr := s.Refresh(ctx); rerr != nil {
			s.logger.WithError(rerr).Warn("refresh after stale reference failed")
		}
		return nil, &domain.NotFoundError{Resource: "line item", ID: id}
	}
	return cart, err
}

// RemoveItem is idempotent: removing a line the gateway no longer has
// succeeds with the current authoritative cart.
func (s *Store) RemoveItem(ctx context.Context, itemID string) (*domain.Cart, error) {
	id := strings.TrimSpace(itemID)
	if id == "" {
		return nil, domain.NewValidationError("itemID", "required")
	}
	return s.mutate(ctx, "store.RemoveItem", func(ctx context.Context) (*domain.Cart, error) {
		cart, err := s.gateway.RemoveItem(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return s.gateway.Get(ctx)
		}
		return cart, err
	}, attribute.String("line.id", id))
}

// Clear empties the cart with a single bulk call.
func (s *Store) Clear(ctx context.Context) (*domain.Cart, error) {
	return s.mutate(ctx, "store.Clear", func(ctx context.Context) (*domain.Cart, error) {
		return s.gateway.SetItems(ctx, nil)
	})
}

// Cart returns a copy of the snapshot, nil before the first successful load.
func (s *Store) Cart() *domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.ItemCount()
}

// Updating reports whether a mutation is in flight.
func (s *Store) Updating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

// Err is the last recorded transport error, cleared by the next successful
// gateway response.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Subscribe registers fn for state changes. fn runs on the goroutine that
// caused the change and must not block.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Close tears the store down. Responses still in flight are discarded.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.subs = make(map[int]func(State))
	s.mu.Unlock()
}

func (s *Store) mutate(ctx context.Context, name string, call func(context.Context) (*domain.Cart, error), attrs ...attribute.KeyValue) (*domain.Cart, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	ctx, span := s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	defer span.End()

	release := s.begin()
	defer release()

	seq := s.nextSeq()
	cart, err := call(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrValidation) && !errors.Is(err, domain.ErrNotFound) {
			err = asTransport(name, err)
			s.fail(err)
		}
		endSpan(span, err)
		return nil, err
	}
	if s.apply(seq, cart) && s.marker != nil {
		s.marker.Broadcast(ctx)
	}
	return s.Cart(), nil
}

// begin raises the updating flag; the returned release is safe to call more
// than once and must run on every exit path.
func (s *Store) begin() func() {
	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()
	s.notify()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.inflight--
			s.mu.Unlock()
			s.notify()
		})
	}
}

func (s *Store) nextSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// apply installs cart unless it is stale. Responses for the held cart are
// ordered by gateway version; without comparable versions the request
// sequence decides.
func (s *Store) apply(seq uint64, cart *domain.Cart) bool {
	if cart == nil {
		return false
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if stale(s.cart, cart, seq, s.applied) {
		s.mu.Unlock()
		s.logger.WithFields(logrus.Fields{"seq": seq, "version": cart.Version}).Debug("discarding stale cart response")
		return false
	}
	if seq > s.applied {
		s.applied = seq
	}
	s.cart = cart.Clone()
	s.err = nil
	s.mu.Unlock()
	s.notify()
	return true
}

func stale(held, incoming *domain.Cart, seq, applied uint64) bool {
	if held != nil && held.ID == incoming.ID && held.Version > 0 && incoming.Version > 0 {
		return incoming.Version < held.Version
	}
	return seq <= applied
}

func (s *Store) fail(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.err = err
	s.mu.Unlock()
	s.notify()
}

func (s *Store) notify() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.notified++
	if len(s.subs) == 0 {
		s.mu.Unlock()
		return
	}
	state := s.stateLocked()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(State), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

func (s *Store) stateLocked() State {
	return State{Cart: s.cart.Clone(), Updating: s.inflight > 0, Err: s.err, Seq: s.notified}
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// asTransport keeps typed transport errors and wraps anything else so callers
// only ever see the documented taxonomy.
func asTransport(op string, err error) error {
	if errors.Is(err, domain.ErrTransport) {
		return err
	}
	return &domain.TransportError{Op: op, Err: err}
}

func endSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
