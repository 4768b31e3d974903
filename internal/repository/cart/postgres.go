package cart

import (
	"context"
	"errors"

	"cartsync/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const cartColumns = `id::text, project_id::text, session_id, currency, version, subtotal_cents, total_cents, state, created_at, last_modified_at`

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

// GetOrCreateBySession returns the session's cart, creating an empty one on
// first use.
func (r *postgresRepo) GetOrCreateBySession(ctx context.Context, projectID, sessionID, currency string) (*domain.Cart, error) {
	if err := ensureCart(ctx, r.pool, projectID, sessionID, currency); err != nil {
		return nil, err
	}
	return fetchCart(ctx, r.pool, `SELECT `+cartColumns+`
FROM carts
WHERE project_id = $1 AND session_id = $2
`, projectID, sessionID)
}

func (r *postgresRepo) UpdateBySession(ctx context.Context, projectID, sessionID, currency string, fn func(*domain.Cart, Lines) error) (*domain.Cart, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := ensureCart(ctx, tx, projectID, sessionID, currency); err != nil {
		return nil, err
	}
	cart, err := fetchCart(ctx, tx, `SELECT `+cartColumns+`
FROM carts
WHERE project_id = $1 AND session_id = $2
FOR UPDATE
`, projectID, sessionID)
	if err != nil {
		return nil, err
	}

	lines := &txLines{tx: tx, cartID: cart.ID}
	if err := fn(cart, lines); err != nil {
		return nil, err
	}
	if !lines.changed {
		return cart, tx.Commit(ctx)
	}
	if err := touchCart(ctx, tx, cart.ID); err != nil {
		return nil, err
	}
	updated, err := fetchCart(ctx, tx, `SELECT `+cartColumns+`
FROM carts
WHERE id = $1
`, cart.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

func ensureCart(ctx context.Context, q querier, projectID, sessionID, currency string) error {
	_, err := q.Exec(ctx, `
INSERT INTO carts (project_id, session_id, currency)
VALUES ($1, $2, $3)
ON CONFLICT (project_id, session_id) DO NOTHING
`, projectID, sessionID, currency)
	return err
}

// txLines applies line edits inside the update transaction.
type txLines struct {
	tx      pgx.Tx
	cartID  string
	changed bool
}

func (l *txLines) Add(ctx context.Context, line LineInput) error {
	if err := addLine(ctx, l.tx, l.cartID, line); err != nil {
		return err
	}
	l.changed = true
	return nil
}

func (l *txLines) ChangeQuantity(ctx context.Context, lineItemID string, quantity int) error {
	if quantity <= 0 {
		return l.Remove(ctx, lineItemID)
	}
	cmd, err := l.tx.Exec(ctx, `
UPDATE cart_lines
SET quantity = $1, total_cents = unit_price_cents * $1
WHERE id::text = $2 AND cart_id = $3
`, quantity, lineItemID, l.cartID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	l.changed = true
	return nil
}

func (l *txLines) Remove(ctx context.Context, lineItemID string) error {
	cmd, err := l.tx.Exec(ctx, `
DELETE FROM cart_lines
WHERE id::text = $1 AND cart_id = $2
`, lineItemID, l.cartID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	l.changed = true
	return nil
}

// Replace swaps the whole line list. An empty list clears the cart.
func (l *txLines) Replace(ctx context.Context, lines []LineInput) error {
	if _, err := l.tx.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, l.cartID); err != nil {
		return err
	}
	for _, line := range lines {
		if err := addLine(ctx, l.tx, l.cartID, line); err != nil {
			return err
		}
	}
	l.changed = true
	return nil
}

// addLine merges into an existing line for the same product and variant.
func addLine(ctx context.Context, q querier, cartID string, line LineInput) error {
	const stmt = `
INSERT INTO cart_lines (cart_id, product_id, variant_id, quantity, unit_price_cents, total_cents, snapshot)
VALUES ($1, $2, $3, $4, $5, $5 * $4, $6)
ON CONFLICT (cart_id, product_id, variant_id) DO UPDATE
SET quantity = cart_lines.quantity + EXCLUDED.quantity,
    total_cents = cart_lines.unit_price_cents * (cart_lines.quantity + EXCLUDED.quantity)
`
	snapshot := line.Snapshot
	if snapshot == nil {
		snapshot = map[string]interface{}{}
	}
	_, err := q.Exec(ctx, stmt, cartID, line.Product.ID, line.VariantID, line.Quantity, line.Product.PriceCents, snapshot)
	return err
}

// touchCart recomputes totals and bumps the version after a mutation.
func touchCart(ctx context.Context, q querier, cartID string) error {
	_, err := q.Exec(ctx, `
UPDATE carts
SET subtotal_cents = COALESCE((SELECT SUM(total_cents) FROM cart_lines WHERE cart_id = $1), 0),
    total_cents = COALESCE((SELECT SUM(total_cents) FROM cart_lines WHERE cart_id = $1), 0),
    version = version + 1,
    last_modified_at = now()
WHERE id = $1
`, cartID)
	return err
}

func fetchCart(ctx context.Context, q querier, cartQuery string, args ...any) (*domain.Cart, error) {
	var cart domain.Cart
	err := q.QueryRow(ctx, cartQuery, args...).Scan(
		&cart.ID,
		&cart.ProjectID,
		&cart.SessionID,
		&cart.Currency,
		&cart.Version,
		&cart.SubtotalCents,
		&cart.TotalCents,
		&cart.State,
		&cart.CreatedAt,
		&cart.LastModifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	const linesQuery = `
SELECT l.id::text, l.cart_id::text, l.product_id::text, l.variant_id, p.sku, p.name,
       l.quantity, l.unit_price_cents, l.total_cents, l.created_at
FROM cart_lines l
JOIN products p ON p.id = l.product_id
WHERE l.cart_id = $1
ORDER BY l.created_at ASC, l.id ASC
`
	rows, err := q.Query(ctx, linesQuery, cart.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cart.Lines = []domain.CartLine{}
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(
			&line.ID,
			&line.CartID,
			&line.ProductID,
			&line.VariantID,
			&line.SKU,
			&line.Name,
			&line.Quantity,
			&line.UnitPriceCents,
			&line.TotalCents,
			&line.CreatedAt,
		); err != nil {
			return nil, err
		}
		cart.Lines = append(cart.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &cart, nil
}
