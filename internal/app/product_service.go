package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mfgrecords/internal/cache"
	"mfgrecords/internal/domain"
)

const productionCostTTL = 10 * time.Minute

// ProductService manages products, materials and bills of materials.
type ProductService struct {
	products  domain.ProductRepository
	materials domain.MaterialRepository
	cache     domain.CacheStore
	now       func() time.Time
}

// NewProductService creates a new product service.
func NewProductService(products domain.ProductRepository, materials domain.MaterialRepository, store domain.CacheStore) *ProductService {
	if store == nil {
		store = cache.Nop{}
	}
	return &ProductService{
		products:  products,
		materials: materials,
		cache:     store,
		now:       time.Now,
	}
}

// List returns all products.
func (s *ProductService) List(ctx context.Context) ([]domain.Product, error) {
	return s.products.List(ctx)
}

// Get returns one product.
func (s *ProductService) Get(ctx context.Context, id int64) (*domain.Product, error) {
	return s.products.Get(ctx, id)
}

// Create validates and stores a new product.
func (s *ProductService) Create(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if err := validateProduct(&p); err != nil {
		return nil, err
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	id, err := s.products.Create(ctx, &p)
	if err != nil {
		return nil, err
	}
	p.ID = id
	return &p, nil
}

// Update replaces the editable fields of an existing product.
func (s *ProductService) Update(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if err := validateProduct(&p); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now()
	ok, err := s.products.Update(ctx, &p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	s.invalidateCost(ctx, p.ID)
	return s.products.Get(ctx, p.ID)
}

// Delete removes a product and its bill of materials.
func (s *ProductService) Delete(ctx context.Context, id int64) error {
	ok, err := s.products.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	s.invalidateCost(ctx, id)
	return nil
}

// BillOfMaterials lists the materials consumed by one unit of the product.
func (s *ProductService) BillOfMaterials(ctx context.Context, id int64) ([]domain.BOMLine, error) {
	if _, err := s.products.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.products.BillOfMaterials(ctx, id)
}

// SetBillOfMaterials replaces the product's bill of materials atomically.
func (s *ProductService) SetBillOfMaterials(ctx context.Context, id int64, lines []domain.BOMLine) error {
	seen := make(map[int64]bool, len(lines))
	for _, l := range lines {
		if l.MaterialID <= 0 || l.Quantity <= 0 {
			return fmt.Errorf("%w: material id and positive quantity required", ErrValidation)
		}
		if seen[l.MaterialID] {
			return fmt.Errorf("%w: material %d listed twice", ErrValidation, l.MaterialID)
		}
		seen[l.MaterialID] = true
	}
	if _, err := s.products.Get(ctx, id); err != nil {
		return err
	}
	if err := s.products.ReplaceBillOfMaterials(ctx, id, lines); err != nil {
		return err
	}
	s.invalidateCost(ctx, id)
	return nil
}

// ProductionCost is the material cost of one unit of the product, memoized
// for ten minutes.
func (s *ProductService) ProductionCost(ctx context.Context, id int64) (float64, error) {
	return cache.Remember(ctx, s.cache, productionCostKey(id), productionCostTTL, func(ctx context.Context) (float64, error) {
		lines, err := s.BillOfMaterials(ctx, id)
		if err != nil {
			return 0, err
		}
		var total float64
		for _, l := range lines {
			total += l.Quantity * l.UnitCost
		}
		return total, nil
	})
}

// Materials lists all materials.
func (s *ProductService) Materials(ctx context.Context) ([]domain.Material, error) {
	return s.materials.List(ctx)
}

// CreateMaterial validates and stores a material.
func (s *ProductService) CreateMaterial(ctx context.Context, m domain.Material) (*domain.Material, error) {
	m.Name = strings.TrimSpace(m.Name)
	m.Unit = strings.TrimSpace(m.Unit)
	if m.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if m.UnitCost < 0 {
		return nil, fmt.Errorf("%w: unit cost must not be negative", ErrValidation)
	}
	if m.Unit == "" {
		m.Unit = "pcs"
	}
	id, err := s.materials.Create(ctx, &m)
	if err != nil {
		return nil, err
	}
	m.ID = id
	return &m, nil
}

func (s *ProductService) invalidateCost(ctx context.Context, id int64) {
	_ = s.cache.Delete(ctx, productionCostKey(id))
}

func productionCostKey(id int64) string {
	return fmt.Sprintf("production_cost_%d", id)
}

func validateProduct(p *domain.Product) error {
	p.SKU = strings.TrimSpace(p.SKU)
	p.Name = strings.TrimSpace(p.Name)
	switch {
	case p.SKU == "":
		return fmt.Errorf("%w: sku is required", ErrValidation)
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrValidation)
	case p.UnitPrice < 0:
		return fmt.Errorf("%w: unit price must not be negative", ErrValidation)
	}
	return nil
}
