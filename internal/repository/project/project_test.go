package project

import (
	"context"
	"errors"
	"os"
	"testing"

	"cartsync/internal/domain"
	"cartsync/internal/migrate"
	"github.com/jackc/pgx/v5/pgxpool"
)

func TestPostgres_CreateAndGetByKey(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE cart_lines, carts, products, projects RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	repo := NewPostgres(pool)
	created, err := repo.Create(ctx, &domain.Project{Key: "shop", Name: "Shop", Currency: "eur"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Currency != "EUR" {
		t.Fatalf("expected normalized currency, got %q", created.Currency)
	}
	if _, err := repo.Create(ctx, &domain.Project{Key: "shop", Name: "Again"}); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}

	got, err := repo.GetByKey(ctx, "shop")
	if err != nil {
		t.Fatalf("GetByKey: %v", err)
	}
	if got.ID != created.ID || got.Currency != "EUR" {
		t.Fatalf("unexpected project %+v", got)
	}
	if _, err := repo.GetByKey(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func testPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	return pool
}
