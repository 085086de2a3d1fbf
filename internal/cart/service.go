package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/kedaiku/kedaiku/internal/catalog"
	"github.com/kedaiku/kedaiku/internal/shared"
)

// CatalogPort exposes the product lookups the cart needs.
type CatalogPort interface {
	GetProduct(ctx context.Context, id int64) (catalog.Product, error)
	GetVariant(ctx context.Context, id int64) (catalog.ProductVariant, error)
}

// ErrProductUnavailable indicates the product exists but is not orderable.
var ErrProductUnavailable = errors.New("cart: product unavailable")

// Service owns the per-user cart: upserts, quantity bounds, snapshots and
// the stock validation shared with checkout.
type Service struct {
	repo     Repository
	products CatalogPort
	validate *validator.Validate
}

// NewService builds the cart service.
func NewService(repo Repository, products CatalogPort) *Service {
	return &Service{repo: repo, products: products, validate: validator.New()}
}

// Add inserts a cart row, or increments quantity when the
// (user, product, variant) combination is already present.
func (s *Service) Add(ctx context.Context, userID int64, req AddItemRequest) (CartItem, error) {
	if err := s.validate.Struct(req); err != nil {
		return CartItem{}, err
	}

	product, err := s.products.GetProduct(ctx, req.ProductID)
	if err != nil {
		return CartItem{}, fmt.Errorf("verify product: %w", err)
	}
	if !product.IsAvailable {
		return CartItem{}, ErrProductUnavailable
	}
	if req.VariantID != nil {
		variant, err := s.products.GetVariant(ctx, *req.VariantID)
		if err != nil {
			return CartItem{}, fmt.Errorf("verify variant: %w", err)
		}
		if variant.ProductID != product.ID {
			return CartItem{}, fmt.Errorf("%w: variant does not belong to product", shared.ErrValidation)
		}
	}

	existing, err := s.repo.FindItem(ctx, userID, req.ProductID, req.VariantID)
	switch {
	case err == nil:
		newQty := existing.Quantity + req.Quantity
		if newQty > MaxQuantity {
			return CartItem{}, fmt.Errorf("%w: quantity exceeds %d", shared.ErrValidation, MaxQuantity)
		}
		if err := s.repo.UpdateQuantity(ctx, existing.ID, newQty); err != nil {
			return CartItem{}, err
		}
		existing.Quantity = newQty
		return existing, nil
	case errors.Is(err, shared.ErrNotFound):
		return s.repo.Insert(ctx, CartItem{
			UserID:    userID,
			ProductID: req.ProductID,
			VariantID: req.VariantID,
			Quantity:  req.Quantity,
		})
	default:
		return CartItem{}, err
	}
}

// UpdateQuantity sets an item's quantity. Removal goes through Remove;
// a non-positive quantity is a validation error.
func (s *Service) UpdateQuantity(ctx context.Context, userID, itemID int64, req UpdateQuantityRequest) error {
	if req.Quantity <= 0 || req.Quantity > MaxQuantity {
		return fmt.Errorf("%w: quantity must be between 1 and %d", shared.ErrValidation, MaxQuantity)
	}
	if err := s.validate.Struct(req); err != nil {
		return err
	}
	if _, err := s.ownedItem(ctx, userID, itemID); err != nil {
		return err
	}
	return s.repo.UpdateQuantity(ctx, itemID, req.Quantity)
}

// Remove deletes a single cart item.
func (s *Service) Remove(ctx context.Context, userID, itemID int64) error {
	if _, err := s.ownedItem(ctx, userID, itemID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, itemID)
}

// Clear removes every cart row for the user.
func (s *Service) Clear(ctx context.Context, userID int64) error {
	return s.repo.Clear(ctx, userID)
}

// Snapshot returns the authoritative checkout input: committed cart rows
// joined with product and variant, most recent first.
func (s *Service) Snapshot(ctx context.Context, userID int64) ([]Line, error) {
	return s.repo.Snapshot(ctx, userID)
}

// Total sums the snapshot with decimal arithmetic.
func (s *Service) Total(ctx context.Context, userID int64) (decimal.Decimal, error) {
	lines, err := s.repo.Snapshot(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return Total(lines), nil
}

// ValidateStock reports every product whose requested quantity exceeds the
// current stock. Advisory at cart-view time; the checkout transaction reruns
// the same check against locked rows.
func (s *Service) ValidateStock(ctx context.Context, userID int64) ([]StockShortfall, error) {
	lines, err := s.repo.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, nil
	}
	stock, err := s.repo.StockFor(ctx, productIDs(lines))
	if err != nil {
		return nil, err
	}
	return ShortfallsFor(lines, stock), nil
}

func (s *Service) ownedItem(ctx context.Context, userID, itemID int64) (CartItem, error) {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return CartItem{}, err
	}
	if item.UserID != userID {
		return CartItem{}, shared.ErrNotFound
	}
	return item, nil
}

func productIDs(lines []Line) []int64 {
	seen := make(map[int64]bool, len(lines))
	var ids []int64
	for _, l := range lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}
	return ids
}
