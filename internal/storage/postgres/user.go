package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/solemart/marketplace-api/internal/domain/user"
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository.
type UserRepository struct {
	store *Store
}

// NewUserRepository returns a UserRepository using the given store.
func NewUserRepository(store *Store) *UserRepository {
	return &UserRepository{store: store}
}

// GetByID returns one user, or user.ErrNotFound.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	var (
		u    user.User
		role string
	)
	err := r.store.q(ctx).QueryRow(ctx,
		`SELECT id, name, email, role, created_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Email, &role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user %q: %w", id, err)
	}
	u.Role = user.Role(role)
	return &u, nil
}

const upsertUserSQL = `INSERT INTO users (id, name, email, role)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email, role = EXCLUDED.role`

// Upsert inserts or refreshes a user row. Used by the seed tool.
func (r *UserRepository) Upsert(ctx context.Context, u *user.User) error {
	if _, err := r.store.q(ctx).Exec(ctx, upsertUserSQL, u.ID, u.Name, u.Email, string(u.Role)); err != nil {
		return fmt.Errorf("upserting user %q: %w", u.ID, err)
	}
	return nil
}
