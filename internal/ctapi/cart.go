// Package ctapi holds the commercetools-shaped JSON documents exchanged between
// the storefront and the cart gateway.
package ctapi

import (
	"strings"
	"time"

	"cartsync/internal/domain"
)

const centPrecision = "centPrecision"

type Cart struct {
	Type                  string     `json:"type"`
	ID                    string     `json:"id"`
	Version               int        `json:"version"`
	CreatedAt             time.Time  `json:"createdAt"`
	LastModifiedAt        time.Time  `json:"lastModifiedAt"`
	CartState             string     `json:"cartState"`
	LineItems             []LineItem `json:"lineItems"`
	SubtotalPrice         PriceValue `json:"subtotalPrice"`
	TotalPrice            PriceValue `json:"totalPrice"`
	TotalLineItemQuantity int        `json:"totalLineItemQuantity"`
	InventoryMode         string     `json:"inventoryMode"`
	TaxMode               string     `json:"taxMode"`
	Origin                string     `json:"origin"`
}

type LineItem struct {
	ID             string            `json:"id"`
	ProductID      string            `json:"productId"`
	ProductKey     string            `json:"productKey,omitempty"`
	Name           map[string]string `json:"name"`
	Variant        Variant           `json:"variant"`
	Price          Price             `json:"price"`
	Quantity       int               `json:"quantity"`
	AddedAt        time.Time         `json:"addedAt"`
	LineItemMode   string            `json:"lineItemMode"`
	PriceMode      string            `json:"priceMode"`
	TotalPrice     PriceValue        `json:"totalPrice"`
	LastModifiedAt time.Time         `json:"lastModifiedAt"`
}

type Variant struct {
	ID  string `json:"id,omitempty"`
	SKU string `json:"sku"`
}

type Price struct {
	ID    string     `json:"id,omitempty"`
	Value PriceValue `json:"value"`
}

type PriceValue struct {
	Type           string `json:"type"`
	CurrencyCode   string `json:"currencyCode"`
	CentAmount     int64  `json:"centAmount"`
	FractionDigits int    `json:"fractionDigits"`
}

func money(currency string, cents int64) PriceValue {
	return PriceValue{
		Type:           centPrecision,
		CurrencyCode:   currency,
		CentAmount:     cents,
		FractionDigits: 2,
	}
}

// FromCart renders a gateway cart into its wire document.
func FromCart(cart domain.Cart) Cart {
	state := strings.TrimSpace(cart.State)
	if state == "" || strings.EqualFold(state, "active") {
		state = "Active"
	}

	lineItems := make([]LineItem, 0, len(cart.Lines))
	totalQty := 0
	for _, line := range cart.Lines {
		name := line.Name
		if name == "" {
			name = line.SKU
		}
		lineItems = append(lineItems, LineItem{
			ID:             line.ID,
			ProductID:      line.ProductID,
			Name:           map[string]string{"en": name},
			Variant:        Variant{ID: line.VariantID, SKU: line.SKU},
			Price:          Price{Value: money(cart.Currency, line.UnitPriceCents)},
			Quantity:       line.Quantity,
			AddedAt:        line.CreatedAt,
			LineItemMode:   "Standard",
			PriceMode:      "Platform",
			TotalPrice:     money(cart.Currency, line.TotalCents),
			LastModifiedAt: cart.LastModifiedAt,
		})
		totalQty += line.Quantity
	}

	return Cart{
		Type:                  "Cart",
		ID:                    cart.ID,
		Version:               cart.Version,
		CreatedAt:             cart.CreatedAt,
		LastModifiedAt:        cart.LastModifiedAt,
		CartState:             state,
		LineItems:             lineItems,
		SubtotalPrice:         money(cart.Currency, cart.SubtotalCents),
		TotalPrice:            money(cart.Currency, cart.TotalCents),
		TotalLineItemQuantity: totalQty,
		InventoryMode:         "None",
		TaxMode:               "Platform",
		Origin:                "Customer",
	}
}

// ToDomain converts a wire document back into the client-side snapshot. Line
// order is preserved as returned.
func (c Cart) ToDomain() *domain.Cart {
	currency := c.TotalPrice.CurrencyCode
	out := &domain.Cart{
		ID:             c.ID,
		Version:        c.Version,
		Currency:       currency,
		SubtotalCents:  c.SubtotalPrice.CentAmount,
		TotalCents:     c.TotalPrice.CentAmount,
		State:          c.CartState,
		CreatedAt:      c.CreatedAt,
		LastModifiedAt: c.LastModifiedAt,
		Lines:          make([]domain.CartLine, 0, len(c.LineItems)),
	}
	for _, li := range c.LineItems {
		out.Lines = append(out.Lines, domain.CartLine{
			ID:             li.ID,
			CartID:         c.ID,
			ProductID:      li.ProductID,
			VariantID:      li.Variant.ID,
			SKU:            li.Variant.SKU,
			Name:           localized(li.Name),
			Quantity:       li.Quantity,
			UnitPriceCents: li.Price.Value.CentAmount,
			TotalCents:     li.TotalPrice.CentAmount,
			CreatedAt:      li.AddedAt,
		})
	}
	return out
}

func localized(m map[string]string) string {
	if v, ok := m["en"]; ok {
		return v
	}
	for _, v := range m {
		return v
	}
	return ""
}
