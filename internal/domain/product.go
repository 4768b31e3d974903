package domain

import "time"

// Product is the gateway-side catalog entry used to price cart lines.
type Product struct {
	ID          string                 `json:"id"`
	ProjectID   string                 `json:"-"`
	Key         string                 `json:"key"`
	SKU         string                 `json:"sku"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	PriceCents  int64                  `json:"priceCents"`
	Currency    string                 `json:"currency"`
	Attributes  map[string]interface{} `json:"attributes,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
}
