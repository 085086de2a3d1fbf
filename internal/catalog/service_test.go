package catalog

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kedaiku/kedaiku/internal/shared"
)

type mockRepository struct {
	categories  map[int64]Category
	products    map[int64]Product
	variants    map[int64]ProductVariant
	ingredients map[int64]ProductIngredient
	nextID      int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		categories:  map[int64]Category{1: {ID: 1, Name: "Makanan"}},
		products:    make(map[int64]Product),
		variants:    make(map[int64]ProductVariant),
		ingredients: make(map[int64]ProductIngredient),
		nextID:      1,
	}
}

func (m *mockRepository) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *mockRepository) ListCategories(ctx context.Context) ([]Category, error) {
	var out []Category
	for _, c := range m.categories {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockRepository) GetCategory(ctx context.Context, id int64) (Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return Category{}, shared.ErrNotFound
	}
	return c, nil
}

func (m *mockRepository) CreateCategory(ctx context.Context, c Category) (Category, error) {
	c.ID = m.id()
	m.categories[c.ID] = c
	return c, nil
}

func (m *mockRepository) UpdateCategory(ctx context.Context, id int64, c Category) error {
	if _, ok := m.categories[id]; !ok {
		return shared.ErrNotFound
	}
	c.ID = id
	m.categories[id] = c
	return nil
}

func (m *mockRepository) DeleteCategory(ctx context.Context, id int64) error {
	delete(m.categories, id)
	return nil
}

func (m *mockRepository) ListProducts(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	var out []Product
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *mockRepository) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, ok := m.products[id]
	if !ok {
		return Product{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *mockRepository) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	for _, p := range m.products {
		if p.Slug == slug {
			return p, nil
		}
	}
	return Product{}, shared.ErrNotFound
}

func (m *mockRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	for _, p := range m.products {
		if p.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepository) CreateProduct(ctx context.Context, p Product) (Product, error) {
	p.ID = m.id()
	m.products[p.ID] = p
	return p, nil
}

func (m *mockRepository) UpdateProduct(ctx context.Context, id int64, p Product) error {
	if _, ok := m.products[id]; !ok {
		return shared.ErrNotFound
	}
	p.ID = id
	m.products[id] = p
	return nil
}

func (m *mockRepository) DeleteProduct(ctx context.Context, id int64) error {
	delete(m.products, id)
	return nil
}

func (m *mockRepository) GetVariant(ctx context.Context, id int64) (ProductVariant, error) {
	v, ok := m.variants[id]
	if !ok {
		return ProductVariant{}, shared.ErrNotFound
	}
	return v, nil
}

func (m *mockRepository) CreateVariant(ctx context.Context, v ProductVariant) (ProductVariant, error) {
	v.ID = m.id()
	m.variants[v.ID] = v
	return v, nil
}

func (m *mockRepository) UpdateVariant(ctx context.Context, id int64, v ProductVariant) error {
	if _, ok := m.variants[id]; !ok {
		return shared.ErrNotFound
	}
	v.ID = id
	m.variants[id] = v
	return nil
}

func (m *mockRepository) DeleteVariant(ctx context.Context, id int64) error {
	delete(m.variants, id)
	return nil
}

func (m *mockRepository) AddIngredient(ctx context.Context, ing ProductIngredient) (ProductIngredient, error) {
	ing.ID = m.id()
	m.ingredients[ing.ID] = ing
	return ing, nil
}

func (m *mockRepository) DeleteIngredient(ctx context.Context, id int64) error {
	delete(m.ingredients, id)
	return nil
}

func validProductRequest() ProductRequest {
	return ProductRequest{
		CategoryID:    1,
		Name:          "Nasi Goreng",
		CostPrice:     decimal.RequireFromString("10000"),
		SellingPrice:  decimal.RequireFromString("25000"),
		StockQuantity: 10,
		IsAvailable:   true,
	}
}

func TestCreateProductDerivesSlug(t *testing.T) {
	svc := NewService(newMockRepository())

	product, err := svc.CreateProduct(context.Background(), validProductRequest())
	require.NoError(t, err)
	assert.Equal(t, "nasi-goreng", product.Slug)
}

func TestCreateProductSlugCollisionGetsSuffix(t *testing.T) {
	svc := NewService(newMockRepository())
	ctx := context.Background()

	first, err := svc.CreateProduct(ctx, validProductRequest())
	require.NoError(t, err)
	second, err := svc.CreateProduct(ctx, validProductRequest())
	require.NoError(t, err)

	assert.Equal(t, "nasi-goreng", first.Slug)
	assert.Equal(t, "nasi-goreng-2", second.Slug)
}

func TestCreateProductPriceBelowCost(t *testing.T) {
	svc := NewService(newMockRepository())

	req := validProductRequest()
	req.SellingPrice = decimal.RequireFromString("9999.99")
	_, err := svc.CreateProduct(context.Background(), req)
	require.ErrorIs(t, err, ErrPriceBelowCost)
}

func TestCreateProductNegativeStock(t *testing.T) {
	svc := NewService(newMockRepository())

	req := validProductRequest()
	req.StockQuantity = -1
	_, err := svc.CreateProduct(context.Background(), req)
	require.Error(t, err)
}

func TestCreateProductUnknownCategory(t *testing.T) {
	svc := NewService(newMockRepository())

	req := validProductRequest()
	req.CategoryID = 99
	_, err := svc.CreateProduct(context.Background(), req)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateProductKeepsSlugWhenNameUnchanged(t *testing.T) {
	svc := NewService(newMockRepository())
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, validProductRequest())
	require.NoError(t, err)

	req := validProductRequest()
	req.SellingPrice = decimal.RequireFromString("30000")
	updated, err := svc.UpdateProduct(ctx, product.ID, req)
	require.NoError(t, err)
	assert.Equal(t, product.Slug, updated.Slug)
	assert.True(t, decimal.RequireFromString("30000").Equal(updated.SellingPrice))
}

func TestUpdateProductRenameRegeneratesSlug(t *testing.T) {
	svc := NewService(newMockRepository())
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, validProductRequest())
	require.NoError(t, err)

	req := validProductRequest()
	req.Name = "Nasi Goreng Spesial"
	updated, err := svc.UpdateProduct(ctx, product.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "nasi-goreng-spesial", updated.Slug)
}

func TestCreateVariantNegativeAdjustment(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, validProductRequest())
	require.NoError(t, err)

	_, err = svc.CreateVariant(ctx, product.ID, VariantRequest{
		Name:            "Size",
		Value:           "Small",
		PriceAdjustment: decimal.RequireFromString("-1000"),
	})
	require.ErrorIs(t, err, ErrNegativeAdjustment)
}

func TestCreateVariantRequiresProduct(t *testing.T) {
	svc := NewService(newMockRepository())

	_, err := svc.CreateVariant(context.Background(), 99, VariantRequest{
		Name:            "Size",
		Value:           "Large",
		PriceAdjustment: decimal.RequireFromString("2000"),
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}
