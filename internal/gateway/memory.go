package gateway

import (
	"context"
	"strings"
	"sync"
	"time"

	"cartsync/internal/domain"
	"github.com/google/uuid"
)

// MemoryBackend is an in-process stand-in for the hosted cart backend. Every
// session owns at most one cart, created lazily on first read.
type MemoryBackend struct {
	mu       sync.Mutex
	currency string
	products map[string]domain.Product
	carts    map[string]*domain.Cart
	failure  error
	now      func() time.Time
}

// NewMemoryBackend seeds the catalog used to price lines.
func NewMemoryBackend(currency string, products ...domain.Product) *MemoryBackend {
	b := &MemoryBackend{
		currency: currency,
		products: make(map[string]domain.Product, len(products)),
		carts:    make(map[string]*domain.Cart),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, p := range products {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		b.products[p.SKU] = p
	}
	return b
}

// SetFailure makes every subsequent call fail with a transport error until it
// is reset with nil.
func (b *MemoryBackend) SetFailure(err error) {
	b.mu.Lock()
	b.failure = err
	b.mu.Unlock()
}

// Session returns a gateway bound to one shopping session.
func (b *MemoryBackend) Session(sessionID string) *Memory {
	return &Memory{backend: b, sessionID: sessionID}
}

// Memory is the per-session gateway view of a MemoryBackend.
type Memory struct {
	backend   *MemoryBackend
	sessionID string
}

func (m *Memory) Get(ctx context.Context) (*domain.Cart, error) {
	return m.backend.do(ctx, "get", m.sessionID, func(*domain.Cart) error { return nil })
}

func (m *Memory) AddItem(ctx context.Context, draft domain.LineDraft) (*domain.Cart, error) {
	return m.backend.do(ctx, "addLineItem", m.sessionID, func(cart *domain.Cart) error {
		return m.backend.addLine(cart, draft)
	})
}

func (m *Memory) UpdateItem(ctx context.Context, lineItemID string, quantity int) (*domain.Cart, error) {
	return m.backend.do(ctx, "changeLineItemQuantity", m.sessionID, func(cart *domain.Cart) error {
		if quantity <= 0 {
			return domain.NewValidationError("quantity", "must be positive")
		}
		for i := range cart.Lines {
			if cart.Lines[i].ID == lineItemID {
				cart.Lines[i].Quantity = quantity
				cart.Lines[i].TotalCents = cart.Lines[i].UnitPriceCents * int64(quantity)
				return nil
			}
		}
		return &domain.NotFoundError{Resource: "line item", ID: lineItemID}
	})
}

func (m *Memory) RemoveItem(ctx context.Context, lineItemID string) (*domain.Cart, error) {
	return m.backend.do(ctx, "removeLineItem", m.sessionID, func(cart *domain.Cart) error {
		for i := range cart.Lines {
			if cart.Lines[i].ID == lineItemID {
				cart.Lines = append(cart.Lines[:i], cart.Lines[i+1:]...)
				return nil
			}
		}
		return &domain.NotFoundError{Resource: "line item", ID: lineItemID}
	})
}

func (m *Memory) SetItems(ctx context.Context, items []domain.LineDraft) (*domain.Cart, error) {
	return m.backend.do(ctx, "setLineItems", m.sessionID, func(cart *domain.Cart) error {
		cart.Lines = []domain.CartLine{}
		for _, draft := range items {
			if err := m.backend.addLine(cart, draft); err != nil {
				return err
			}
		}
		return nil
	})
}

// do runs a mutation on a working copy and commits it only on success, so a
// rejected action leaves the stored cart untouched.
func (b *MemoryBackend) do(ctx context.Context, op, sessionID string, mutate func(*domain.Cart) error) (*domain.Cart, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.TransportError{Op: op, Err: err}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failure != nil {
		return nil, &domain.TransportError{Op: op, Err: b.failure}
	}

	cart, ok := b.carts[sessionID]
	if !ok {
		now := b.now()
		cart = &domain.Cart{
			ID:             uuid.NewString(),
			SessionID:      sessionID,
			Version:        1,
			Currency:       b.currency,
			State:          "Active",
			CreatedAt:      now,
			LastModifiedAt: now,
			Lines:          []domain.CartLine{},
		}
		b.carts[sessionID] = cart
	}
	if op == "get" {
		return cart.Clone(), nil
	}

	working := cart.Clone()
	if err := mutate(working); err != nil {
		return nil, err
	}
	working.Version++
	working.LastModifiedAt = b.now()
	recomputeTotals(working)
	b.carts[sessionID] = working
	return working.Clone(), nil
}

func (b *MemoryBackend) addLine(cart *domain.Cart, draft domain.LineDraft) error {
	sku := strings.TrimSpace(draft.SKU)
	if sku == "" {
		return domain.NewValidationError("sku", "required")
	}
	if draft.Quantity <= 0 {
		return domain.NewValidationError("quantity", "must be positive")
	}
	product, ok := b.products[sku]
	if !ok {
		return domain.NewValidationError("sku", "unknown product")
	}
	for i := range cart.Lines {
		line := &cart.Lines[i]
		if line.ProductID == product.ID && line.VariantID == draft.VariantID {
			line.Quantity += draft.Quantity
			line.TotalCents = line.UnitPriceCents * int64(line.Quantity)
			return nil
		}
	}
	cart.Lines = append(cart.Lines, domain.CartLine{
		ID:             uuid.NewString(),
		CartID:         cart.ID,
		ProductID:      product.ID,
		VariantID:      draft.VariantID,
		SKU:            product.SKU,
		Name:           product.Name,
		Quantity:       draft.Quantity,
		UnitPriceCents: product.PriceCents,
		TotalCents:     product.PriceCents * int64(draft.Quantity),
		CreatedAt:      b.now(),
	})
	return nil
}

func recomputeTotals(cart *domain.Cart) {
	var sum int64
	for _, l := range cart.Lines {
		sum += l.TotalCents
	}
	cart.SubtotalCents = sum
	cart.TotalCents = sum
}
