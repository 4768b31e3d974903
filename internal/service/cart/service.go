package cart

import (
	"context"
	"strings"

	"cartsync/internal/ctapi"
	"cartsync/internal/domain"
	cartrepo "cartsync/internal/repository/cart"
	"github.com/pkg/errors"
)

// ErrVersionConflict reports an update sent against an outdated cart version.
var ErrVersionConflict = errors.New("cart version conflict")

type Service struct {
	repo        cartRepo
	productRepo productRepo
}

type cartRepo interface {
	GetOrCreateBySession(ctx context.Context, projectID, sessionID, currency string) (*domain.Cart, error)
	UpdateBySession(ctx context.Context, projectID, sessionID, currency string, fn func(*domain.Cart, cartrepo.Lines) error) (*domain.Cart, error)
}

type productRepo interface {
	GetBySKU(ctx context.Context, projectID, sku string) (*domain.Product, error)
}

func New(repo cartRepo, productRepo productRepo) *Service {
	return &Service{repo: repo, productRepo: productRepo}
}

// GetForSession returns the session's cart, creating it lazily.
func (s *Service) GetForSession(ctx context.Context, project domain.Project, sessionID string) (*domain.Cart, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, domain.NewValidationError("sessionId", "required")
	}
	return s.repo.GetOrCreateBySession(ctx, project.ID, sessionID, projectCurrency(project))
}

// UpdateForSession applies the actions in order and returns the resulting
// cart. The version check and every action run against the locked cart in
// one transaction, so a failing action leaves the cart untouched. A zero
// version skips the optimistic concurrency check.
func (s *Service) UpdateForSession(ctx context.Context, project domain.Project, sessionID string, in ctapi.UpdateRequest) (*domain.Cart, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, domain.NewValidationError("sessionId", "required")
	}
	if len(in.Actions) == 0 {
		return nil, domain.NewValidationError("actions", "required")
	}
	return s.repo.UpdateBySession(ctx, project.ID, sessionID, projectCurrency(project), func(cart *domain.Cart, lines cartrepo.Lines) error {
		if in.Version > 0 && in.Version != cart.Version {
			return errors.Wrapf(ErrVersionConflict, "expected version %d, cart is at %d", in.Version, cart.Version)
		}
		for _, action := range in.Actions {
			if err := s.apply(ctx, project, lines, action); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) apply(ctx context.Context, project domain.Project, lines cartrepo.Lines, action ctapi.UpdateAction) error {
	switch strings.ToLower(strings.TrimSpace(action.Action)) {
	case "addlineitem":
		line, err := s.resolve(ctx, project, domain.LineDraft{SKU: action.SKU, VariantID: action.VariantID, Quantity: action.Quantity})
		if err != nil {
			return err
		}
		return lines.Add(ctx, line)
	case "changelineitemquantity":
		lineID := strings.TrimSpace(action.LineItemID)
		if lineID == "" {
			return domain.NewValidationError("lineItemId", "required")
		}
		if action.Quantity <= 0 {
			return domain.NewValidationError("quantity", "must be positive")
		}
		return s.lineErr(lineID, lines.ChangeQuantity(ctx, lineID, action.Quantity))
	case "removelineitem":
		lineID := strings.TrimSpace(action.LineItemID)
		if lineID == "" {
			return domain.NewValidationError("lineItemId", "required")
		}
		return s.lineErr(lineID, lines.Remove(ctx, lineID))
	case "setlineitems":
		replacement := make([]cartrepo.LineInput, 0, len(action.Items))
		for _, item := range action.Items {
			line, err := s.resolve(ctx, project, item)
			if err != nil {
				return err
			}
			replacement = mergeLine(replacement, line)
		}
		return lines.Replace(ctx, replacement)
	default:
		return domain.NewValidationError("action", "unsupported action "+action.Action)
	}
}

func (s *Service) resolve(ctx context.Context, project domain.Project, draft domain.LineDraft) (cartrepo.LineInput, error) {
	sku := strings.TrimSpace(draft.SKU)
	if sku == "" {
		return cartrepo.LineInput{}, domain.NewValidationError("sku", "required")
	}
	if draft.Quantity <= 0 {
		return cartrepo.LineInput{}, domain.NewValidationError("quantity", "must be positive")
	}
	if s.productRepo == nil {
		return cartrepo.LineInput{}, errors.New("product repository unavailable")
	}
	product, err := s.productRepo.GetBySKU(ctx, project.ID, sku)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return cartrepo.LineInput{}, domain.NewValidationError("sku", "unknown product "+sku)
		}
		return cartrepo.LineInput{}, err
	}
	return cartrepo.LineInput{
		Product:   *product,
		VariantID: strings.TrimSpace(draft.VariantID),
		Quantity:  draft.Quantity,
		Snapshot:  snapshotFromProduct(*product),
	}, nil
}

func (s *Service) lineErr(lineID string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.NotFoundError{Resource: "line item", ID: lineID}
	}
	return err
}

func mergeLine(lines []cartrepo.LineInput, line cartrepo.LineInput) []cartrepo.LineInput {
	for i := range lines {
		if lines[i].Product.ID == line.Product.ID && lines[i].VariantID == line.VariantID {
			lines[i].Quantity += line.Quantity
			return lines
		}
	}
	return append(lines, line)
}

func projectCurrency(p domain.Project) string {
	if c := strings.TrimSpace(p.Currency); c != "" {
		return strings.ToUpper(c)
	}
	return "USD"
}

func snapshotFromProduct(p domain.Product) map[string]interface{} {
	slug := strings.TrimSpace(p.Key)
	if slug == "" {
		slug = strings.ReplaceAll(strings.ToLower(p.Name), " ", "-")
	}
	return map[string]interface{}{
		"productKey":  p.Key,
		"productName": p.Name,
		"sku":         p.SKU,
		"productSlug": slug,
		"priceCents":  p.PriceCents,
		"currency":    p.Currency,
	}
}
