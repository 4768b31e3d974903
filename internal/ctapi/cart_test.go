package ctapi

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"cartsync/internal/domain"
	"github.com/google/go-cmp/cmp"
)

func TestFromCartToDomainPreservesLines(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	in := domain.Cart{
		ID:             "cart-1",
		Version:        4,
		Currency:       "EUR",
		SubtotalCents:  3500,
		TotalCents:     3500,
		State:          "Active",
		CreatedAt:      created,
		LastModifiedAt: created,
		Lines: []domain.CartLine{
			{ID: "l2", CartID: "cart-1", ProductID: "p2", SKU: "SKU-2", Name: "Mug", Quantity: 1, UnitPriceCents: 1500, TotalCents: 1500, CreatedAt: created},
			{ID: "l1", CartID: "cart-1", ProductID: "p1", VariantID: "v1", SKU: "SKU-1", Name: "Tee", Quantity: 2, UnitPriceCents: 1000, TotalCents: 2000, CreatedAt: created},
		},
	}

	raw, err := json.Marshal(FromCart(in))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"totalLineItemQuantity":3`) {
		t.Fatalf("expected aggregated quantity in %s", raw)
	}

	var decoded Cart
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got := decoded.ToDomain()
	if diff := cmp.Diff(&in, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFromCartDefaultsState(t *testing.T) {
	out := FromCart(domain.Cart{ID: "c", Currency: "USD", State: "active"})
	if out.CartState != "Active" {
		t.Fatalf("expected Active, got %q", out.CartState)
	}
	if out.LineItems == nil {
		t.Fatalf("expected empty, non-nil line items for JSON []")
	}
}
