package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// ErrStockExhausted is returned by AdjustVariantStock when the requested
// decrement would drive the variant's stock below zero. Callers translate it
// into an insufficient-stock error for the client.
var ErrStockExhausted = errors.New("variant stock exhausted")

// Spec holds the physical attributes of a shoe variant.
type Spec struct {
	Size     string `json:"size"`
	Color    string `json:"color"`
	Material string `json:"material"`
	Gender   string `json:"gender"`
}

// Variant is a purchasable SKU-level configuration of a product with its own
// price and stock count.
type Variant struct {
	SKU           string
	Name          string
	Price         decimal.Decimal
	OriginalPrice decimal.Decimal
	Stock         int
	Sold          int
	Available     bool
	Spec          Spec
}

// Orderable reports whether the variant can be placed on an order. A variant
// with zero stock is never orderable, regardless of the stored availability
// flag.
func (v *Variant) Orderable() bool {
	return v.Available && v.Stock > 0
}

// Product represents a catalog item owned by a seller, carrying a list of
// purchasable variants.
type Product struct {
	ID        string
	SellerID  string
	Name      string
	Brand     string
	Category  string
	BasePrice decimal.Decimal
	Active    bool
	Variants  []Variant
}

// Variant returns the variant with the given SKU, or nil when the product
// does not carry it.
func (p *Product) Variant(sku string) *Variant {
	for i := range p.Variants {
		if p.Variants[i].SKU == sku {
			return &p.Variants[i]
		}
	}
	return nil
}

// Filter narrows catalog listings.
type Filter struct {
	SellerID        string
	Brand           string
	Category        string
	IncludeInactive bool
}

// Repository defines persistence operations for the product catalog.
//
// AdjustVariantStock applies a relative stock and sold-count change to a
// single variant. The stock change is guarded: when stock+stockDelta would be
// negative the update is refused with ErrStockExhausted and nothing changes.
// The sold count is floored at zero rather than refused. Implementations must
// honour a transaction carried in ctx so that a batch of adjustments is
// all-or-nothing.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	AdjustVariantStock(ctx context.Context, productID, sku string, stockDelta, soldDelta int) error
}
