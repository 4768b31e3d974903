package product

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cartsync/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

const selectColumns = `id::text, project_id::text, key, sku, name, COALESCE(description, ''), price_cents, currency, attributes, created_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger logrus.FieldLogger
}

func NewPostgres(pool *pgxpool.Pool, logger logrus.FieldLogger) Repository {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &postgresRepo{pool: pool, logger: logger.WithField("repo", "product")}
}

func (r *postgresRepo) ListByProject(ctx context.Context, projectID string) ([]domain.Product, error) {
	q := `SELECT ` + selectColumns + `
FROM products
WHERE project_id = $1
ORDER BY created_at DESC
`
	rows, err := r.pool.Query(ctx, q, projectID)
	if err != nil {
		r.logger.WithError(err).WithField("project_id", projectID).Error("list products")
		return nil, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.Key, &p.SKU, &p.Name, &p.Description, &p.PriceCents, &p.Currency, &p.Attributes, &p.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		r.logger.WithError(err).WithField("project_id", projectID).Error("list products rows")
		return nil, err
	}
	r.logger.WithFields(logrus.Fields{"project_id": projectID, "count": len(result)}).Debug("listed products")
	return result, nil
}

func (r *postgresRepo) GetBySKU(ctx context.Context, projectID, sku string) (*domain.Product, error) {
	q := `SELECT ` + selectColumns + `
FROM products
WHERE project_id = $1 AND sku = $2
`
	return r.getOne(ctx, q, projectID, sku)
}

func (r *postgresRepo) getOne(ctx context.Context, q, projectID, ref string) (*domain.Product, error) {
	var p domain.Product
	err := r.pool.QueryRow(ctx, q, projectID, ref).Scan(&p.ID, &p.ProjectID, &p.Key, &p.SKU, &p.Name, &p.Description, &p.PriceCents, &p.Currency, &p.Attributes, &p.CreatedAt)
	if err != nil {
		fields := logrus.Fields{"project_id": projectID, "ref": ref}
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WithFields(fields).Debug("product not found")
			return nil, domain.ErrNotFound
		}
		r.logger.WithError(err).WithFields(fields).Error("get product")
		return nil, err
	}
	return &p, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, product domain.Product) (*domain.Product, error) {
	const q = `
INSERT INTO products (id, project_id, key, sku, name, description, price_cents, currency, attributes)
VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, NULLIF($6, ''), $7, $8, COALESCE($9, '{}'::jsonb))
ON CONFLICT (project_id, key) DO UPDATE SET
    sku = EXCLUDED.sku,
    name = EXCLUDED.name,
    description = EXCLUDED.description,
    price_cents = EXCLUDED.price_cents,
    currency = EXCLUDED.currency,
    attributes = EXCLUDED.attributes
RETURNING id::text, created_at
`
	var res domain.Product
	err := r.pool.QueryRow(ctx, q,
		product.ID,
		product.ProjectID,
		product.Key,
		product.SKU,
		product.Name,
		product.Description,
		product.PriceCents,
		product.Currency,
		product.Attributes,
	).Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{"key": product.Key, "project_id": product.ProjectID}).Error("upsert product")
		return nil, err
	}
	if product.ID != "" && res.ID != product.ID {
		return nil, fmt.Errorf("product repo: id mismatch for key=%s project_id=%s existing_id=%s requested_id=%s", product.Key, product.ProjectID, res.ID, product.ID)
	}
	res.ProjectID = product.ProjectID
	res.Key = product.Key
	res.SKU = product.SKU
	res.Name = product.Name
	res.Description = product.Description
	res.PriceCents = product.PriceCents
	res.Currency = product.Currency
	res.Attributes = product.Attributes
	r.logger.WithFields(logrus.Fields{"key": res.Key, "id": res.ID}).Debug("upserted product")
	return &res, nil
}
