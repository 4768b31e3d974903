package ctapi

import "cartsync/internal/domain"

// Update action names accepted by the cart endpoint.
const (
	ActionAddLineItem            = "addLineItem"
	ActionChangeLineItemQuantity = "changeLineItemQuantity"
	ActionRemoveLineItem         = "removeLineItem"
	ActionSetLineItems           = "setLineItems"
)

type UpdateRequest struct {
	Version int            `json:"version"`
	Actions []UpdateAction `json:"actions"`
}

type UpdateAction struct {
	Action     string             `json:"action"`
	SKU        string             `json:"sku,omitempty"`
	VariantID  string             `json:"variantId,omitempty"`
	LineItemID string             `json:"lineItemId,omitempty"`
	Quantity   int                `json:"quantity,omitempty"`
	Items      []domain.LineDraft `json:"items,omitempty"`
}

// Error codes carried in ErrorResponse.Errors.
const (
	CodeResourceNotFound = "ResourceNotFound"
	CodeInvalidInput     = "InvalidInput"
	CodeGeneral          = "General"
)

type ErrorResponse struct {
	StatusCode int           `json:"statusCode"`
	Message    string        `json:"message"`
	Errors     []ErrorObject `json:"errors"`
}

type ErrorObject struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewError builds a single-error response.
func NewError(status int, code, message string) ErrorResponse {
	return ErrorResponse{
		StatusCode: status,
		Message:    message,
		Errors:     []ErrorObject{{Code: code, Message: message}},
	}
}
