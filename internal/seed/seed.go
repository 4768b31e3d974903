// Package seed loads a demo project and catalog for manual testing.
package seed

import (
	"context"

	"cartsync/internal/domain"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DemoProjectKey is the project the demo catalog is loaded into.
const DemoProjectKey = "demo"

type projectRepo interface {
	GetByKey(ctx context.Context, key string) (*domain.Project, error)
	Create(ctx context.Context, project *domain.Project) (*domain.Project, error)
}

type productRepo interface {
	ListByProject(ctx context.Context, projectID string) ([]domain.Product, error)
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// Catalog returns the demo products priced in currency.
func Catalog(currency string) []domain.Product {
	return []domain.Product{
		{Key: "demo-shirt", SKU: "SKU-DEMO-TSHIRT", Name: "Demo T-Shirt", Description: "Soft cotton tee for demo purposes", PriceCents: 1999, Currency: currency},
		{Key: "demo-mug", SKU: "SKU-DEMO-MUG", Name: "Demo Mug", Description: "Ceramic mug with demo logo", PriceCents: 1299, Currency: currency},
		{Key: "demo-cap", SKU: "SKU-DEMO-CAP", Name: "Demo Cap", PriceCents: 1500, Currency: currency},
	}
}

// Apply ensures the demo project exists, upserts the catalog and checks that
// every demo SKU can be listed back. It is idempotent.
func Apply(ctx context.Context, projects projectRepo, products productRepo, currency string, logger logrus.FieldLogger) (*domain.Project, error) {
	project, err := ensureProject(ctx, projects, currency)
	if err != nil {
		return nil, errors.Wrap(err, "ensure project")
	}

	for _, p := range Catalog(project.Currency) {
		p.ProjectID = project.ID
		if _, err := products.Upsert(ctx, p); err != nil {
			return nil, errors.Wrapf(err, "upsert product %s", p.Key)
		}
		logger.WithFields(logrus.Fields{"sku": p.SKU, "project": project.Key}).Debug("product seeded")
	}

	listed, err := products.ListByProject(ctx, project.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list catalog")
	}
	present := make(map[string]bool, len(listed))
	for _, p := range listed {
		present[p.SKU] = true
	}
	for _, p := range Catalog(project.Currency) {
		if !present[p.SKU] {
			return nil, errors.Errorf("seeded product %s missing from catalog", p.SKU)
		}
	}
	logger.WithFields(logrus.Fields{"project": project.Key, "products": len(listed)}).Info("catalog ready")
	return project, nil
}

func ensureProject(ctx context.Context, projects projectRepo, currency string) (*domain.Project, error) {
	project, err := projects.GetByKey(ctx, DemoProjectKey)
	if err == nil {
		return project, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	created, err := projects.Create(ctx, &domain.Project{Key: DemoProjectKey, Name: "Demo Project", Currency: currency})
	if errors.Is(err, domain.ErrAlreadyExists) {
		return projects.GetByKey(ctx, DemoProjectKey)
	}
	return created, err
}
