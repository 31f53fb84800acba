package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/solemart/marketplace-api/internal/domain/product"
)

// Sentinel errors for cart operations.
var (
	ErrItemNotFound    = errors.New("cart item not found")
	ErrVariantUnknown  = errors.New("product variant not found")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// Item is a live reference to a variant in a user's cart. Prices are
// resolved at checkout time, never cached here.
type Item struct {
	ProductID string `json:"productId"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
}

// Cart holds a user's pending items. Each user has at most one cart.
type Cart struct {
	UserID    string
	Items     []Item
	UpdatedAt time.Time
}

// find returns the index of the item with the given product and SKU, or -1.
func (c *Cart) find(productID, sku string) int {
	for i, it := range c.Items {
		if it.ProductID == productID && it.SKU == sku {
			return i
		}
	}
	return -1
}

// Repository defines persistence operations for carts. Get returns an empty
// cart when the user has none; an absent cart and an empty cart are the same
// thing.
type Repository interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Clear(ctx context.Context, userID string) error
}

// Service validates cart mutations against the catalog before persisting.
type Service struct {
	carts    Repository
	products product.Repository
}

// NewService creates a cart Service.
func NewService(carts Repository, products product.Repository) *Service {
	return &Service{carts: carts, products: products}
}

// Get returns the user's cart.
func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	return s.carts.Get(ctx, userID)
}

// AddItem adds a quantity of a variant to the cart, merging with an existing
// line for the same variant. The variant must exist; stock is not reserved
// here, only at checkout.
func (s *Service) AddItem(ctx context.Context, userID string, item Item) (*Cart, error) {
	if item.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if err := s.variantExists(ctx, item.ProductID, item.SKU); err != nil {
		return nil, err
	}

	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if i := c.find(item.ProductID, item.SKU); i >= 0 {
		c.Items[i].Quantity += item.Quantity
	} else {
		c.Items = append(c.Items, item)
	}
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return c, nil
}

// UpdateItem replaces the quantity of an existing cart line.
func (s *Service) UpdateItem(ctx context.Context, userID string, item Item) (*Cart, error) {
	if item.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	i := c.find(item.ProductID, item.SKU)
	if i < 0 {
		return nil, ErrItemNotFound
	}
	c.Items[i].Quantity = item.Quantity
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return c, nil
}

// RemoveItem deletes one line from the cart.
func (s *Service) RemoveItem(ctx context.Context, userID, productID, sku string) (*Cart, error) {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	i := c.find(productID, sku)
	if i < 0 {
		return nil, ErrItemNotFound
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return c, nil
}

func (s *Service) variantExists(ctx context.Context, productID, sku string) error {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	if !p.Active {
		return product.ErrNotFound
	}
	if p.Variant(sku) == nil {
		return ErrVariantUnknown
	}
	return nil
}
