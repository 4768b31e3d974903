package domain

import "time"

// Cart is the authoritative cart state returned by the gateway. The client never
// computes one locally; it only holds the latest snapshot it received.
type Cart struct {
	ID             string     `json:"id"`
	ProjectID      string     `json:"-"`
	SessionID      string     `json:"-"`
	Version        int        `json:"version"`
	Currency       string     `json:"currency"`
	SubtotalCents  int64      `json:"subtotalCents"`
	TotalCents     int64      `json:"totalCents"`
	State          string     `json:"state"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastModifiedAt time.Time  `json:"lastModifiedAt"`
	Lines          []CartLine `json:"lineItems,omitempty"`
}

type CartLine struct {
	ID             string    `json:"id"`
	CartID         string    `json:"cartId"`
	ProductID      string    `json:"productId"`
	VariantID      string    `json:"variantId,omitempty"`
	SKU            string    `json:"sku"`
	Name           string    `json:"name"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unitPriceCents"`
	TotalCents     int64     `json:"totalCents"`
	CreatedAt      time.Time `json:"createdAt"`
}

// LineDraft describes a line the client asks the gateway to place in the cart.
type LineDraft struct {
	SKU       string `json:"sku"`
	VariantID string `json:"variantId,omitempty"`
	Quantity  int    `json:"quantity"`
}

// ItemCount sums line quantities.
func (c *Cart) ItemCount() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Line returns the line with the given id.
func (c *Cart) Line(id string) (CartLine, bool) {
	if c == nil {
		return CartLine{}, false
	}
	for _, l := range c.Lines {
		if l.ID == id {
			return l, true
		}
	}
	return CartLine{}, false
}

// Clone returns a deep copy so readers cannot alias the held snapshot.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	if c.Lines != nil {
		out.Lines = make([]CartLine, len(c.Lines))
		copy(out.Lines, c.Lines)
	}
	return &out
}
