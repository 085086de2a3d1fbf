package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Service coordinates catalog CRUD and the invariants around pricing,
// stock and slugs.
type Service struct {
	repo     Repository
	validate *validator.Validate
}

// NewService builds the catalog service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) GetCategory(ctx context.Context, id int64) (Category, error) {
	return s.repo.GetCategory(ctx, id)
}

func (s *Service) CreateCategory(ctx context.Context, req CategoryRequest) (Category, error) {
	if err := s.validate.Struct(req); err != nil {
		return Category{}, err
	}
	return s.repo.CreateCategory(ctx, Category{Name: req.Name, Description: req.Description})
}

func (s *Service) UpdateCategory(ctx context.Context, id int64, req CategoryRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return err
	}
	return s.repo.UpdateCategory(ctx, id, Category{Name: req.Name, Description: req.Description})
}

// DeleteCategory is restricted while products reference the category.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	return s.repo.DeleteCategory(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	return s.repo.ListProducts(ctx, filters)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	return s.repo.GetProductBySlug(ctx, slug)
}

func (s *Service) CreateProduct(ctx context.Context, req ProductRequest) (Product, error) {
	if err := s.validateProduct(req); err != nil {
		return Product{}, err
	}
	if _, err := s.repo.GetCategory(ctx, req.CategoryID); err != nil {
		return Product{}, fmt.Errorf("verify category: %w", err)
	}
	slug, err := s.uniqueSlug(ctx, req.Name)
	if err != nil {
		return Product{}, err
	}
	return s.repo.CreateProduct(ctx, Product{
		CategoryID:    req.CategoryID,
		Name:          req.Name,
		Slug:          slug,
		Description:   req.Description,
		CostPrice:     req.CostPrice,
		SellingPrice:  req.SellingPrice,
		StockQuantity: req.StockQuantity,
		IsAvailable:   req.IsAvailable,
	})
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, req ProductRequest) (Product, error) {
	if err := s.validateProduct(req); err != nil {
		return Product{}, err
	}
	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}

	slug := existing.Slug
	if req.Name != existing.Name {
		if slug, err = s.uniqueSlug(ctx, req.Name); err != nil {
			return Product{}, err
		}
	}

	updated := Product{
		CategoryID:    req.CategoryID,
		Name:          req.Name,
		Slug:          slug,
		Description:   req.Description,
		CostPrice:     req.CostPrice,
		SellingPrice:  req.SellingPrice,
		StockQuantity: req.StockQuantity,
		IsAvailable:   req.IsAvailable,
	}
	if err := s.repo.UpdateProduct(ctx, id, updated); err != nil {
		return Product{}, err
	}
	return s.repo.GetProduct(ctx, id)
}

// DeleteProduct is restricted while order items reference the product.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	return s.repo.DeleteProduct(ctx, id)
}

func (s *Service) GetVariant(ctx context.Context, id int64) (ProductVariant, error) {
	return s.repo.GetVariant(ctx, id)
}

func (s *Service) CreateVariant(ctx context.Context, productID int64, req VariantRequest) (ProductVariant, error) {
	if err := s.validate.Struct(req); err != nil {
		return ProductVariant{}, err
	}
	if req.PriceAdjustment.IsNegative() {
		return ProductVariant{}, ErrNegativeAdjustment
	}
	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return ProductVariant{}, fmt.Errorf("verify product: %w", err)
	}
	return s.repo.CreateVariant(ctx, ProductVariant{
		ProductID:       productID,
		Name:            req.Name,
		Value:           req.Value,
		PriceAdjustment: req.PriceAdjustment,
	})
}

func (s *Service) UpdateVariant(ctx context.Context, id int64, req VariantRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return err
	}
	if req.PriceAdjustment.IsNegative() {
		return ErrNegativeAdjustment
	}
	return s.repo.UpdateVariant(ctx, id, ProductVariant{
		Name:            req.Name,
		Value:           req.Value,
		PriceAdjustment: req.PriceAdjustment,
	})
}

func (s *Service) DeleteVariant(ctx context.Context, id int64) error {
	return s.repo.DeleteVariant(ctx, id)
}

func (s *Service) AddIngredient(ctx context.Context, productID int64, req IngredientRequest) (ProductIngredient, error) {
	if err := s.validate.Struct(req); err != nil {
		return ProductIngredient{}, err
	}
	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return ProductIngredient{}, fmt.Errorf("verify product: %w", err)
	}
	return s.repo.AddIngredient(ctx, ProductIngredient{ProductID: productID, Name: req.Name})
}

func (s *Service) DeleteIngredient(ctx context.Context, id int64) error {
	return s.repo.DeleteIngredient(ctx, id)
}

func (s *Service) validateProduct(req ProductRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return err
	}
	if req.CostPrice.IsNegative() || req.SellingPrice.IsNegative() {
		return ErrPriceBelowCost
	}
	if req.SellingPrice.LessThan(req.CostPrice) {
		return ErrPriceBelowCost
	}
	if req.StockQuantity < 0 {
		return ErrNegativeStock
	}
	return nil
}

// uniqueSlug derives a slug from the name and suffixes it until it is free.
func (s *Service) uniqueSlug(ctx context.Context, name string) (string, error) {
	base := Slugify(name)
	if base == "" {
		return "", errors.New("catalog: product name yields empty slug")
	}
	slug := base
	for i := 2; ; i++ {
		exists, err := s.repo.SlugExists(ctx, slug)
		if err != nil {
			return "", err
		}
		if !exists {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}
