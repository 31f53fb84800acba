package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/solemart/marketplace-api/internal/domain/cart"
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository. A cart is one row per user with
// the items as a JSONB document; an absent row reads as an empty cart.
type CartRepository struct {
	store *Store
}

// NewCartRepository returns a CartRepository using the given store.
func NewCartRepository(store *Store) *CartRepository {
	return &CartRepository{store: store}
}

// Get returns the user's cart, empty when none exists yet.
func (r *CartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	var (
		items     []byte
		updatedAt time.Time
	)
	err := r.store.q(ctx).QueryRow(ctx, `SELECT items, updated_at FROM carts WHERE user_id = $1`, userID).
		Scan(&items, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &cart.Cart{UserID: userID}, nil
		}
		return nil, fmt.Errorf("getting cart of user %q: %w", userID, err)
	}

	c := &cart.Cart{UserID: userID, UpdatedAt: updatedAt}
	if err := json.Unmarshal(items, &c.Items); err != nil {
		return nil, fmt.Errorf("unmarshaling cart items: %w", err)
	}
	return c, nil
}

const saveCartSQL = `INSERT INTO carts (user_id, items, updated_at)
	VALUES ($1, $2, now())
	ON CONFLICT (user_id) DO UPDATE SET items = EXCLUDED.items, updated_at = now()`

// Save upserts the user's cart row.
func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	items, err := json.Marshal(c.Items)
	if err != nil {
		return fmt.Errorf("marshaling cart items: %w", err)
	}
	if _, err := r.store.q(ctx).Exec(ctx, saveCartSQL, c.UserID, items); err != nil {
		return fmt.Errorf("saving cart of user %q: %w", c.UserID, err)
	}
	return nil
}

// Clear empties the user's cart. Clearing a cart that never existed is a
// no-op, not an error.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	_, err := r.store.q(ctx).Exec(ctx,
		`UPDATE carts SET items = '[]', updated_at = now() WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("clearing cart of user %q: %w", userID, err)
	}
	return nil
}
