package user

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested user does not exist.
var ErrNotFound = errors.New("user not found")

// Role determines what a user may see and do.
type Role string

const (
	// RoleClient is a storefront customer.
	RoleClient Role = "client"
	// RolePartner is a seller with their own catalog and order lines.
	RolePartner Role = "partner"
	// RoleAdmin has full access.
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RolePartner, RoleAdmin:
		return true
	}
	return false
}

// User is a marketplace account: customer, seller, or administrator.
type User struct {
	ID        string
	Name      string
	Email     string
	Role      Role
	CreatedAt time.Time
}

// Repository defines persistence operations for user accounts.
type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	Upsert(ctx context.Context, u *User) error
}
