// Package memory implements in-memory repositories for development and testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"mfgrecords/internal/domain"
)

// DB implements an in-memory database storage.
type DB struct {
	mu        sync.Mutex
	users     []*domain.User
	sessions  map[string]domain.Session
	activity  []domain.ActivityRecord
	products  map[int64]domain.Product
	materials map[int64]domain.Material
	bom       map[int64][]domain.BOMLine

	userIDCounter     int64
	activityIDCounter int64
	productIDCounter  int64
	materialIDCounter int64
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		sessions:  make(map[string]domain.Session),
		products:  make(map[int64]domain.Product),
		materials: make(map[int64]domain.Material),
		bom:       make(map[int64][]domain.BOMLine),
	}
}

// Ensure interfaces are met.
var _ domain.UserRepository = (*DB)(nil)
var _ domain.SessionStore = (*SessionStore)(nil)
var _ domain.ActivityRepository = (*ActivityRepo)(nil)
var _ domain.ProductRepository = (*ProductRepo)(nil)
var _ domain.MaterialRepository = (*MaterialRepo)(nil)

// --- UserRepository ---

// GetByUsername retrieves a user by username.
func (db *DB) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Username == username {
			c := *u
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

// GetByID retrieves a user by ID.
func (db *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Create creates a new user.
func (db *DB) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.users {
		if existing.Username == u.Username {
			return nil, domain.ErrDuplicate
		}
	}

	db.userIDCounter++
	c := *u
	c.ID = db.userIDCounter
	if c.Role == "" {
		c.Role = domain.RoleOperator
	}
	c.CreatedAt = c.CreatedAt.UTC()
	db.users = append(db.users, &c)

	out := c
	return &out, nil
}

// Count returns the total number of users.
func (db *DB) Count(ctx context.Context) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.users), nil
}

// --- SessionStore ---

// SessionStore keeps sessions by value, so callers never share state with the store.
type SessionStore struct {
	db *DB
}

// NewSessionStore wraps a DB as a SessionStore.
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

// Get returns a copy of the session, or nil.
func (r *SessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	s, ok := r.db.sessions[id]
	if !ok {
		return nil, nil
	}
	if s.Flash != nil {
		f := *s.Flash
		s.Flash = &f
	}
	return &s, nil
}

// Save stores a copy of the session.
func (r *SessionStore) Save(ctx context.Context, s *domain.Session) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	c := *s
	if s.Flash != nil {
		f := *s.Flash
		c.Flash = &f
	}
	r.db.sessions[s.ID] = c
	return nil
}

// Delete removes a session.
func (r *SessionStore) Delete(ctx context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.sessions, id)
	return nil
}

// DeleteIdle removes sessions last active before the cutoff.
func (r *SessionStore) DeleteIdle(ctx context.Context, before time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var n int64
	for id, s := range r.db.sessions {
		if s.LastActivity.Before(before) {
			delete(r.db.sessions, id)
			n++
		}
	}
	return n, nil
}

// --- ActivityRepository ---

// ActivityRepo is the append-only activity log.
type ActivityRepo struct {
	db *DB
}

// NewActivityRepo wraps a DB as an ActivityRepository.
func NewActivityRepo(db *DB) *ActivityRepo {
	return &ActivityRepo{db: db}
}

// Append adds a record. Unknown users are rejected like a foreign key would.
func (r *ActivityRepo) Append(ctx context.Context, rec domain.ActivityRecord) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	known := false
	for _, u := range r.db.users {
		if u.ID == rec.UserID {
			known = true
			break
		}
	}
	if !known {
		return 0, domain.ErrNotFound
	}

	r.db.activityIDCounter++
	rec.ID = r.db.activityIDCounter
	rec.OccurredAt = rec.OccurredAt.UTC()
	r.db.activity = append(r.db.activity, rec)
	return rec.ID, nil
}

// ListRecent returns up to limit records, newest first.
func (r *ActivityRepo) ListRecent(ctx context.Context, limit int) ([]domain.ActivityRecord, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := make([]domain.ActivityRecord, len(r.db.activity))
	copy(out, r.db.activity)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- ProductRepository ---

// ProductRepo stores products and bills of materials.
type ProductRepo struct {
	db *DB
}

// NewProductRepo wraps a DB as a ProductRepository.
func NewProductRepo(db *DB) *ProductRepo {
	return &ProductRepo{db: db}
}

// List returns all products ordered by id.
func (r *ProductRepo) List(ctx context.Context) ([]domain.Product, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := make([]domain.Product, 0, len(r.db.products))
	for _, p := range r.db.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Get returns one product.
func (r *ProductRepo) Get(ctx context.Context, id int64) (*domain.Product, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	p, ok := r.db.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

// Create adds a product. SKUs are unique.
func (r *ProductRepo) Create(ctx context.Context, p *domain.Product) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if r.skuTaken(p.SKU, 0) {
		return 0, domain.ErrDuplicate
	}
	r.db.productIDCounter++
	c := *p
	c.ID = r.db.productIDCounter
	r.db.products[c.ID] = c
	return c.ID, nil
}

// Update replaces the editable fields. It reports false when no product matched.
func (r *ProductRepo) Update(ctx context.Context, p *domain.Product) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	existing, ok := r.db.products[p.ID]
	if !ok {
		return false, nil
	}
	if r.skuTaken(p.SKU, p.ID) {
		return false, domain.ErrDuplicate
	}
	existing.SKU = p.SKU
	existing.Name = p.Name
	existing.Description = p.Description
	existing.UnitPrice = p.UnitPrice
	existing.UpdatedAt = p.UpdatedAt
	r.db.products[p.ID] = existing
	return true, nil
}

// Delete removes a product and its bill of materials.
func (r *ProductRepo) Delete(ctx context.Context, id int64) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.products[id]; !ok {
		return false, nil
	}
	delete(r.db.products, id)
	delete(r.db.bom, id)
	return true, nil
}

// BillOfMaterials lists the product's materials with their current unit cost.
func (r *ProductRepo) BillOfMaterials(ctx context.Context, productID int64) ([]domain.BOMLine, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	lines := r.db.bom[productID]
	out := make([]domain.BOMLine, 0, len(lines))
	for _, l := range lines {
		m := r.db.materials[l.MaterialID]
		l.Material = m.Name
		l.UnitCost = m.UnitCost
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Material < out[j].Material })
	return out, nil
}

// ReplaceBillOfMaterials swaps the bill of materials. Nothing changes if any
// line references an unknown material.
func (r *ProductRepo) ReplaceBillOfMaterials(ctx context.Context, productID int64, lines []domain.BOMLine) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, l := range lines {
		if _, ok := r.db.materials[l.MaterialID]; !ok {
			return domain.ErrNotFound
		}
	}
	stored := make([]domain.BOMLine, len(lines))
	for i, l := range lines {
		stored[i] = domain.BOMLine{MaterialID: l.MaterialID, Quantity: l.Quantity}
	}
	r.db.bom[productID] = stored
	return nil
}

func (r *ProductRepo) skuTaken(sku string, except int64) bool {
	for id, p := range r.db.products {
		if id != except && p.SKU == sku {
			return true
		}
	}
	return false
}

// --- MaterialRepository ---

// MaterialRepo stores materials.
type MaterialRepo struct {
	db *DB
}

// NewMaterialRepo wraps a DB as a MaterialRepository.
func NewMaterialRepo(db *DB) *MaterialRepo {
	return &MaterialRepo{db: db}
}

// List returns all materials ordered by name.
func (r *MaterialRepo) List(ctx context.Context) ([]domain.Material, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := make([]domain.Material, 0, len(r.db.materials))
	for _, m := range r.db.materials {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Create adds a material. Names are unique.
func (r *MaterialRepo) Create(ctx context.Context, m *domain.Material) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, existing := range r.db.materials {
		if existing.Name == m.Name {
			return 0, domain.ErrDuplicate
		}
	}
	r.db.materialIDCounter++
	c := *m
	c.ID = r.db.materialIDCounter
	r.db.materials[c.ID] = c
	return c.ID, nil
}
