package sqlstore

import (
	"context"

	"mfgrecords/internal/db"
	"mfgrecords/internal/domain"
)

// ProductRepo implements product and bill-of-materials persistence.
type ProductRepo struct {
	db *DB
}

var _ domain.ProductRepository = (*ProductRepo)(nil)

// NewProductRepo wraps a DB as a ProductRepository.
func NewProductRepo(d *DB) *ProductRepo {
	return &ProductRepo{db: d}
}

const productColumns = "product_id, sku, name, description, unit_price, created_at, updated_at"

// List returns all products ordered by id.
func (r *ProductRepo) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.exec.GetAll(ctx, "SELECT "+productColumns+" FROM products ORDER BY product_id")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, productFromRow(row))
	}
	return out, nil
}

// Get returns one product.
func (r *ProductRepo) Get(ctx context.Context, id int64) (*domain.Product, error) {
	row, err := r.db.exec.GetOne(ctx, "SELECT "+productColumns+" FROM products WHERE product_id = ?", id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, domain.ErrNotFound
	}
	p := productFromRow(row)
	return &p, nil
}

// Create inserts a product and returns its id.
func (r *ProductRepo) Create(ctx context.Context, p *domain.Product) (int64, error) {
	id, err := r.db.exec.Insert(ctx, "products", db.Columns{
		"sku":         p.SKU,
		"name":        p.Name,
		"description": p.Description,
		"unit_price":  p.UnitPrice,
		"created_at":  p.CreatedAt.UTC(),
		"updated_at":  p.UpdatedAt.UTC(),
	})
	return id, translate(err)
}

// Update rewrites the editable columns. It reports false when no product matched.
func (r *ProductRepo) Update(ctx context.Context, p *domain.Product) (bool, error) {
	where := db.Eq("product_id", p.ID)
	n, err := r.db.exec.Update(ctx, "products", db.Columns{
		"sku":         p.SKU,
		"name":        p.Name,
		"description": p.Description,
		"unit_price":  p.UnitPrice,
		"updated_at":  p.UpdatedAt.UTC(),
	}, where.SQL, where.Args...)
	if err != nil {
		return false, translate(err)
	}
	return n > 0, nil
}

// Delete removes a product; its bill of materials cascades.
func (r *ProductRepo) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := r.db.exec.Delete(ctx, "products", "product_id = ?", id)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// BillOfMaterials lists the product's materials with their current unit cost.
func (r *ProductRepo) BillOfMaterials(ctx context.Context, productID int64) ([]domain.BOMLine, error) {
	rows, err := r.db.exec.GetAll(ctx,
		`SELECT pm.material_id, m.name, pm.quantity, m.unit_cost
		FROM product_materials pm
		JOIN materials m ON m.material_id = pm.material_id
		WHERE pm.product_id = ?
		ORDER BY m.name`, productID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.BOMLine, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.BOMLine{
			MaterialID: row.Int64("material_id"),
			Material:   row.String("name"),
			Quantity:   row.Float64("quantity"),
			UnitCost:   row.Float64("unit_cost"),
		})
	}
	return out, nil
}

// ReplaceBillOfMaterials swaps the whole bill of materials in one transaction.
func (r *ProductRepo) ReplaceBillOfMaterials(ctx context.Context, productID int64, lines []domain.BOMLine) error {
	return r.db.exec.WithTx(ctx, func(ctx context.Context, tx *db.Tx) error {
		if _, err := tx.Delete(ctx, "product_materials", "product_id = ?", productID); err != nil {
			return err
		}
		for _, l := range lines {
			if _, err := tx.Exec(ctx,
				"INSERT INTO product_materials (product_id, material_id, quantity) VALUES (?, ?, ?)",
				productID, l.MaterialID, l.Quantity,
			); err != nil {
				return translate(err)
			}
		}
		return nil
	})
}

func productFromRow(r db.Row) domain.Product {
	return domain.Product{
		ID:          r.Int64("product_id"),
		SKU:         r.String("sku"),
		Name:        r.String("name"),
		Description: r.String("description"),
		UnitPrice:   r.Float64("unit_price"),
		CreatedAt:   r.Time("created_at"),
		UpdatedAt:   r.Time("updated_at"),
	}
}

// MaterialRepo implements material persistence.
type MaterialRepo struct {
	db *DB
}

var _ domain.MaterialRepository = (*MaterialRepo)(nil)

// NewMaterialRepo wraps a DB as a MaterialRepository.
func NewMaterialRepo(d *DB) *MaterialRepo {
	return &MaterialRepo{db: d}
}

// List returns all materials ordered by name.
func (r *MaterialRepo) List(ctx context.Context) ([]domain.Material, error) {
	rows, err := r.db.exec.GetAll(ctx, "SELECT material_id, name, unit, unit_cost FROM materials ORDER BY name")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Material, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Material{
			ID:       row.Int64("material_id"),
			Name:     row.String("name"),
			Unit:     row.String("unit"),
			UnitCost: row.Float64("unit_cost"),
		})
	}
	return out, nil
}

// Create inserts a material and returns its id.
func (r *MaterialRepo) Create(ctx context.Context, m *domain.Material) (int64, error) {
	id, err := r.db.exec.Insert(ctx, "materials", db.Columns{
		"name":      m.Name,
		"unit":      m.Unit,
		"unit_cost": m.UnitCost,
	})
	return id, translate(err)
}
