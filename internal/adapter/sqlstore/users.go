package sqlstore

import (
	"context"

	"mfgrecords/internal/db"
	"mfgrecords/internal/domain"
)

var _ domain.UserRepository = (*DB)(nil)

const userColumns = "id, username, password_hash, full_name, email, role, active, created_at"

// GetByUsername retrieves a user by username.
func (d *DB) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row, err := d.exec.GetOne(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?", username)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, domain.ErrNotFound
	}
	return userFromRow(row), nil
}

// GetByID retrieves a user by ID.
func (d *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row, err := d.exec.GetOne(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, domain.ErrNotFound
	}
	return userFromRow(row), nil
}

// Create creates a new user.
func (d *DB) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	role := u.Role
	if role == "" {
		role = domain.RoleOperator
	}
	id, err := d.exec.Insert(ctx, "users", db.Columns{
		"username":      u.Username,
		"password_hash": u.PasswordHash,
		"full_name":     u.FullName,
		"email":         u.Email,
		"role":          string(role),
		"active":        u.Active,
		"created_at":    u.CreatedAt.UTC(),
	})
	if err != nil {
		return nil, translate(err)
	}
	created := *u
	created.ID = id
	created.Role = role
	return &created, nil
}

// Count returns the total number of users.
func (d *DB) Count(ctx context.Context) (int, error) {
	row, err := d.exec.GetOne(ctx, "SELECT COUNT(*) AS n FROM users")
	if err != nil {
		return 0, err
	}
	return int(row.Int64("n")), nil
}

func userFromRow(r db.Row) *domain.User {
	return &domain.User{
		ID:           r.Int64("id"),
		Username:     r.String("username"),
		PasswordHash: r.String("password_hash"),
		FullName:     r.String("full_name"),
		Email:        r.String("email"),
		Role:         domain.Role(r.String("role")),
		Active:       r.Bool("active"),
		CreatedAt:    r.Time("created_at"),
	}
}
