package cart

import (
	"context"

	"cartsync/internal/domain"
)

// LineInput is one line to add or place in a bulk replacement.
type LineInput struct {
	Product   domain.Product
	VariantID string
	Quantity  int
	Snapshot  map[string]interface{}
}

// Lines edits the lines of a cart locked by UpdateBySession. Line IDs that
// do not belong to the cart yield domain.ErrNotFound.
type Lines interface {
	Add(ctx context.Context, line LineInput) error
	ChangeQuantity(ctx context.Context, lineItemID string, quantity int) error
	Remove(ctx context.Context, lineItemID string) error
	Replace(ctx context.Context, lines []LineInput) error
}

type Repository interface {
	GetOrCreateBySession(ctx context.Context, projectID, sessionID, currency string) (*domain.Cart, error)
	// UpdateBySession locks the session's cart, creating it when missing, and
	// runs fn in one transaction. An error from fn rolls back every change;
	// otherwise the version is bumped once and the committed cart returned.
	UpdateBySession(ctx context.Context, projectID, sessionID, currency string, fn func(cart *domain.Cart, lines Lines) error) (*domain.Cart, error)
}
