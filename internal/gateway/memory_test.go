package gateway

import (
	"context"
	"errors"
	"testing"

	"cartsync/internal/domain"
)

func newBackend() *MemoryBackend {
	return NewMemoryBackend("USD",
		domain.Product{ID: "p1", SKU: "sku-1", Name: "Tee", PriceCents: 1000},
		domain.Product{ID: "p2", SKU: "sku-2", Name: "Mug", PriceCents: 500},
	)
}

func TestMemoryLazyCreateAndAdd(t *testing.T) {
	gw := newBackend().Session("s1")
	ctx := context.Background()

	empty, err := gw.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if empty.ID == "" || empty.ItemCount() != 0 || empty.Lines == nil {
		t.Fatalf("expected empty lazily created cart, got %+v", empty)
	}

	cart, err := gw.AddItem(ctx, domain.LineDraft{SKU: "sku-1", Quantity: 2})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	cart, err = gw.AddItem(ctx, domain.LineDraft{SKU: "sku-1", Quantity: 1})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if len(cart.Lines) != 1 || cart.Lines[0].Quantity != 3 || cart.TotalCents != 3000 {
		t.Fatalf("expected merged line, got %+v", cart)
	}
	if cart.ID != empty.ID || cart.Version <= empty.Version {
		t.Fatalf("expected same cart with bumped version")
	}
}

func TestMemorySessionsAreIsolated(t *testing.T) {
	b := newBackend()
	ctx := context.Background()
	if _, err := b.Session("a").AddItem(ctx, domain.LineDraft{SKU: "sku-2", Quantity: 1}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	other, err := b.Session("b").Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if other.ItemCount() != 0 {
		t.Fatalf("session b should not see session a lines")
	}
	same, _ := b.Session("a").Get(ctx)
	if same.ItemCount() != 1 {
		t.Fatalf("second handle for session a should share the cart")
	}
}

func TestMemoryUpdateRemoveAndSet(t *testing.T) {
	gw := newBackend().Session("s1")
	ctx := context.Background()
	cart, _ := gw.AddItem(ctx, domain.LineDraft{SKU: "sku-1", Quantity: 1})
	id := cart.Lines[0].ID

	if _, err := gw.UpdateItem(ctx, id, 0); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("update to zero must be rejected, got %v", err)
	}
	cart, err := gw.UpdateItem(ctx, id, 4)
	if err != nil || cart.Lines[0].Quantity != 4 {
		t.Fatalf("UpdateItem: %v %+v", err, cart)
	}
	if _, err := gw.UpdateItem(ctx, "missing", 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	cart, err = gw.RemoveItem(ctx, id)
	if err != nil || len(cart.Lines) != 0 {
		t.Fatalf("RemoveItem: %v %+v", err, cart)
	}
	if _, err := gw.RemoveItem(ctx, id); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second remove should report not found, got %v", err)
	}

	_, _ = gw.AddItem(ctx, domain.LineDraft{SKU: "sku-2", Quantity: 2})
	cart, err = gw.SetItems(ctx, nil)
	if err != nil || len(cart.Lines) != 0 || cart.TotalCents != 0 {
		t.Fatalf("SetItems(nil): %v %+v", err, cart)
	}
}

func TestMemoryRejectedMutationLeavesCart(t *testing.T) {
	gw := newBackend().Session("s1")
	ctx := context.Background()
	before, _ := gw.AddItem(ctx, domain.LineDraft{SKU: "sku-1", Quantity: 1})

	if _, err := gw.SetItems(ctx, []domain.LineDraft{{SKU: "sku-2", Quantity: 1}, {SKU: "nope", Quantity: 1}}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	after, _ := gw.Get(ctx)
	if after.Version != before.Version || after.ItemCount() != 1 {
		t.Fatalf("rejected mutation changed cart: %+v", after)
	}
}

func TestMemoryFailureInjection(t *testing.T) {
	b := newBackend()
	b.SetFailure(errors.New("offline"))
	if _, err := b.Session("s").Get(context.Background()); !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	b.SetFailure(nil)
	if _, err := b.Session("s").Get(context.Background()); err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
}
