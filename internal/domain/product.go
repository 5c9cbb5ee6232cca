package domain

import (
	"context"
	"time"
)

// Product is a manufactured item identified by its SKU.
type Product struct {
	ID          int64     `json:"id"`
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	UnitPrice   float64   `json:"unit_price"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Material is a raw input consumed by production.
type Material struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Unit     string  `json:"unit"`
	UnitCost float64 `json:"unit_cost"`
}

// BOMLine is one bill-of-materials entry: how much of a material one unit
// of a product consumes.
type BOMLine struct {
	MaterialID int64   `json:"material_id"`
	Material   string  `json:"material,omitempty"`
	Quantity   float64 `json:"quantity"`
	UnitCost   float64 `json:"unit_cost,omitempty"`
}

// ProductRepository defines the port for product and bill-of-materials persistence.
type ProductRepository interface {
	List(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id int64) (*Product, error)
	Create(ctx context.Context, p *Product) (int64, error)
	Update(ctx context.Context, p *Product) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	BillOfMaterials(ctx context.Context, productID int64) ([]BOMLine, error)
	ReplaceBillOfMaterials(ctx context.Context, productID int64, lines []BOMLine) error
}

// MaterialRepository defines the port for material persistence.
type MaterialRepository interface {
	List(ctx context.Context) ([]Material, error)
	Create(ctx context.Context, m *Material) (int64, error)
}
