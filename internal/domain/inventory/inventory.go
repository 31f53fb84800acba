// Package inventory implements stock reservation and restoration for order
// placement and cancellation. Reserve and Release mutate variant stock through
// the product repository; all-or-nothing semantics across a batch come from
// the transaction carried in the context, not from this package.
package inventory

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/solemart/marketplace-api/internal/domain/product"
)

// ProductNotFoundError indicates a requested product does not exist or is no
// longer sold.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// VariantNotFoundError indicates the product exists but carries no variant
// with the requested SKU.
type VariantNotFoundError struct {
	ProductID string
	SKU       string
}

func (e *VariantNotFoundError) Error() string {
	return fmt.Sprintf("variant %s of product %s not found", e.SKU, e.ProductID)
}

// VariantUnavailableError indicates the variant exists but cannot be ordered,
// either because it is flagged unavailable or because its stock is zero.
type VariantUnavailableError struct {
	ProductID string
	SKU       string
}

func (e *VariantUnavailableError) Error() string {
	return fmt.Sprintf("variant %s of product %s is unavailable", e.SKU, e.ProductID)
}

// InsufficientStockError indicates the variant's stock cannot cover the
// requested quantity.
type InsufficientStockError struct {
	ProductID string
	SKU       string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for variant %s of product %s: requested %d, available %d",
		e.SKU, e.ProductID, e.Requested, e.Available)
}

// Request asks for a quantity of one variant to be reserved.
type Request struct {
	ProductID string
	SKU       string
	Quantity  int
}

// Reservation is the point-in-time snapshot of a successfully reserved
// variant. The order embeds these values so later product edits never alter
// historical orders.
type Reservation struct {
	ProductID     string
	SellerID      string
	SKU           string
	Name          string
	Brand         string
	UnitPrice     decimal.Decimal
	OriginalPrice decimal.Decimal
	Quantity      int
	Spec          product.Spec
}

// Restock asks for a previously reserved quantity to be returned to stock.
type Restock struct {
	ProductID string
	SKU       string
	Quantity  int
}

// Adjuster validates and applies stock changes against the product catalog.
type Adjuster struct {
	products product.Repository
}

// NewAdjuster creates an Adjuster backed by the given catalog repository.
func NewAdjuster(products product.Repository) *Adjuster {
	return &Adjuster{products: products}
}

// Reserve validates every requested item and, on success, decrements variant
// stock and increments the product's sold count, returning the line-item
// snapshots to embed in the order. Items are processed in request order; a
// failure on any item returns immediately and relies on the enclosing
// transaction to discard the adjustments already applied.
func (a *Adjuster) Reserve(ctx context.Context, reqs []Request) ([]Reservation, error) {
	reservations := make([]Reservation, 0, len(reqs))
	for _, req := range reqs {
		p, err := a.products.GetByID(ctx, req.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				return nil, &ProductNotFoundError{ProductID: req.ProductID}
			}
			return nil, errors.Wrapf(err, "get product %s", req.ProductID)
		}
		if !p.Active {
			// Soft-disabled products are hidden from ordering entirely.
			return nil, &ProductNotFoundError{ProductID: req.ProductID}
		}

		v := p.Variant(req.SKU)
		if v == nil {
			return nil, &VariantNotFoundError{ProductID: req.ProductID, SKU: req.SKU}
		}
		if !v.Orderable() {
			return nil, &VariantUnavailableError{ProductID: req.ProductID, SKU: req.SKU}
		}
		if v.Stock < req.Quantity {
			return nil, &InsufficientStockError{
				ProductID: req.ProductID,
				SKU:       req.SKU,
				Requested: req.Quantity,
				Available: v.Stock,
			}
		}

		err = a.products.AdjustVariantStock(ctx, req.ProductID, req.SKU, -req.Quantity, req.Quantity)
		if err != nil {
			if errors.Is(err, product.ErrStockExhausted) {
				// A concurrent order won the race between our read and the
				// guarded update.
				return nil, &InsufficientStockError{
					ProductID: req.ProductID,
					SKU:       req.SKU,
					Requested: req.Quantity,
					Available: v.Stock,
				}
			}
			return nil, errors.Wrapf(err, "reserve variant %s of product %s", req.SKU, req.ProductID)
		}

		reservations = append(reservations, Reservation{
			ProductID:     p.ID,
			SellerID:      p.SellerID,
			SKU:           v.SKU,
			Name:          v.Name,
			Brand:         p.Brand,
			UnitPrice:     v.Price,
			OriginalPrice: v.OriginalPrice,
			Quantity:      req.Quantity,
			Spec:          v.Spec,
		})
	}
	return reservations, nil
}

// Release returns previously reserved quantities to stock and deducts them
// from the sold count (floored at zero by the repository). A variant or
// product that has since been removed is skipped silently: restoring stock
// for a line that no longer exists is a no-op, not a failure. Release is
// invoked at most once per order, guarded by the order status precondition.
func (a *Adjuster) Release(ctx context.Context, restocks []Restock) error {
	for _, r := range restocks {
		err := a.products.AdjustVariantStock(ctx, r.ProductID, r.SKU, r.Quantity, -r.Quantity)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				continue
			}
			return errors.Wrapf(err, "release variant %s of product %s", r.SKU, r.ProductID)
		}
	}
	return nil
}
