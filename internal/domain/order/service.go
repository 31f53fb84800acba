package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solemart/marketplace-api/internal/domain/inventory"
	"github.com/solemart/marketplace-api/internal/domain/user"
)

// Sentinel errors for order operations.
var (
	ErrEmptyItems           = errors.New("items required")
	ErrAccessDenied         = errors.New("access denied")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrUnknownStatus        = errors.New("unknown order status")
	// ErrCancelViaStatus rejects status updates to cancelled: cancellation
	// has its own operation because it must restore stock.
	ErrCancelViaStatus = errors.New("use the cancel operation to cancel an order")
)

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
	SKU       string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for variant %s of product %s", e.SKU, e.ProductID)
}

// Inventory reserves and restores variant stock. Both methods must run
// inside the transaction carried in ctx.
type Inventory interface {
	Reserve(ctx context.Context, reqs []inventory.Request) ([]inventory.Reservation, error)
	Release(ctx context.Context, restocks []inventory.Restock) error
}

// Carts clears a user's cart as a side effect of successful placement.
type Carts interface {
	Clear(ctx context.Context, userID string) error
}

// TxRunner executes fn inside a single database transaction. Every
// repository call made with the context passed to fn joins that transaction;
// fn returning an error aborts the whole unit.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Pricing holds the fixed charges applied at checkout.
type Pricing struct {
	ShippingFee decimal.Decimal
	TaxRate     decimal.Decimal
}

// Actor identifies who is performing an order operation.
type Actor struct {
	UserID string
	Role   user.Role
}

// ItemRequest is one client-submitted line of a new order.
type ItemRequest struct {
	ProductID string
	SKU       string
	Quantity  int
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	Items           []ItemRequest
	ShippingAddress Address
	PaymentMethod   PaymentMethod
	Notes           string
}

// Service coordinates order placement, cancellation, and status advancement.
type Service struct {
	inv     Inventory
	orders  Repository
	carts   Carts
	tx      TxRunner
	pricing Pricing
	now     func() time.Time
}

// NewService creates an order Service with the required dependencies.
func NewService(inv Inventory, orders Repository, carts Carts, tx TxRunner, pricing Pricing) *Service {
	return &Service{
		inv:     inv,
		orders:  orders,
		carts:   carts,
		tx:      tx,
		pricing: pricing,
		now:     time.Now,
	}
}

// PlaceOrder validates the request, then — inside one transaction — reserves
// stock for every line, persists the order with derived totals, and clears
// the user's cart. Any failure aborts the whole unit: no partial order, no
// partial stock decrement, cart untouched.
//
// New orders enter directly at confirmed: reservation is immediate and
// binding, with no payment-authorization hold.
func (s *Service) PlaceOrder(ctx context.Context, userID string, req PlaceOrderRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	reqs := make([]inventory.Request, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID, SKU: item.SKU}
		}
		reqs[i] = inventory.Request{
			ProductID: item.ProductID,
			SKU:       item.SKU,
			Quantity:  item.Quantity,
		}
	}

	// Address and payment method are validated before touching inventory.
	if err := req.ShippingAddress.Validate(); err != nil {
		return nil, err
	}
	method := req.PaymentMethod
	if method == "" {
		method = PaymentCOD
	}
	if !method.Valid() {
		return nil, ErrInvalidPaymentMethod
	}

	var placed *Order
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		reservations, err := s.inv.Reserve(ctx, reqs)
		if err != nil {
			return err
		}

		now := s.now()
		lines := make([]Line, len(reservations))
		subtotal := decimal.Zero
		for i, r := range reservations {
			lines[i] = Line{
				ProductID:     r.ProductID,
				SellerID:      r.SellerID,
				SKU:           r.SKU,
				Name:          r.Name,
				Brand:         r.Brand,
				UnitPrice:     r.UnitPrice,
				OriginalPrice: r.OriginalPrice,
				Quantity:      r.Quantity,
				Spec:          r.Spec,
				Status:        StatusConfirmed,
			}
			subtotal = subtotal.Add(lines[i].Subtotal())
		}
		subtotal = subtotal.Round(2)

		tax := subtotal.Mul(s.pricing.TaxRate).Round(2)
		discount := decimal.Zero
		total := subtotal.Add(s.pricing.ShippingFee).Add(tax).Sub(discount)

		o := &Order{
			ID:              uuid.New().String(),
			UserID:          userID,
			OrderedAt:       now,
			Lines:           lines,
			Subtotal:        subtotal,
			ShippingFee:     s.pricing.ShippingFee,
			Tax:             tax,
			Discount:        discount,
			Total:           total,
			ShippingAddress: req.ShippingAddress,
			PaymentMethod:   method,
			PaymentStatus:   PaymentStatusPending,
			Status:          StatusConfirmed,
			History: []HistoryEntry{{
				Status: StatusConfirmed,
				Note:   "order placed",
				Actor:  userID,
				At:     now,
			}},
			Notes: req.Notes,
		}
		if err := o.CheckTotal(); err != nil {
			return err
		}
		if err := s.orders.Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}
		if err := s.carts.Clear(ctx, userID); err != nil {
			return errors.Wrap(err, "clear cart")
		}

		placed = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// Cancel moves an order to cancelled and restores its reserved stock, all in
// one transaction. Only the order's owner or an admin may cancel, and only
// from pending or confirmed. The compensating release is invoked exactly
// once: the same transaction that releases stock also flips the status, so a
// second cancel fails the transition check before touching inventory.
func (s *Service) Cancel(ctx context.Context, orderID string, actor Actor, reason string) (*Order, error) {
	if reason == "" {
		reason = "cancelled by customer"
	}

	var cancelled *Order
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if actor.Role != user.RoleAdmin && o.UserID != actor.UserID {
			return ErrAccessDenied
		}
		if err := o.ApplyStatus(StatusCancelled, reason, actor.UserID, s.now()); err != nil {
			return err
		}
		o.CancelReason = reason

		restocks := make([]inventory.Restock, len(o.Lines))
		for i, l := range o.Lines {
			restocks[i] = inventory.Restock{
				ProductID: l.ProductID,
				SKU:       l.SKU,
				Quantity:  l.Quantity,
			}
		}
		if err := s.inv.Release(ctx, restocks); err != nil {
			return err
		}

		if err := s.orders.Update(ctx, o); err != nil {
			return errors.Wrap(err, "update order")
		}
		cancelled = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// UpdateStatus advances an order along
// confirmed -> processing -> shipped -> delivered. Admins may advance any
// order; partners only orders containing at least one of their lines.
// Cancellation is rejected here because it must run the stock-restoring
// cancel path instead.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, actor Actor, next Status, note string) (*Order, error) {
	if !next.Valid() {
		return nil, ErrUnknownStatus
	}
	if next == StatusCancelled {
		return nil, ErrCancelViaStatus
	}

	var updated *Order
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		switch actor.Role {
		case user.RoleAdmin:
		case user.RolePartner:
			if !o.ContainsSeller(actor.UserID) {
				return ErrAccessDenied
			}
		default:
			return ErrAccessDenied
		}

		if err := o.ApplyStatus(next, note, actor.UserID, s.now()); err != nil {
			return err
		}
		// Delivered cash-on-delivery orders are paid on handover.
		if next == StatusDelivered && o.PaymentMethod == PaymentCOD {
			o.PaymentStatus = PaymentStatusPaid
		}

		if err := s.orders.Update(ctx, o); err != nil {
			return errors.Wrap(err, "update order")
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Get returns a single order, enforcing the read access rule: owners, admins,
// and sellers with a line on the order.
func (s *Service) Get(ctx context.Context, orderID string, actor Actor) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch {
	case actor.Role == user.RoleAdmin:
	case o.UserID == actor.UserID:
	case actor.Role == user.RolePartner && o.ContainsSeller(actor.UserID):
	default:
		return nil, ErrAccessDenied
	}
	return o, nil
}

// List returns orders scoped by role: clients see their own orders, partners
// see orders containing their lines, admins see everything.
func (s *Service) List(ctx context.Context, actor Actor) ([]Order, error) {
	switch actor.Role {
	case user.RoleAdmin:
		return s.orders.List(ctx)
	case user.RolePartner:
		return s.orders.ListBySeller(ctx, actor.UserID)
	default:
		return s.orders.ListByUser(ctx, actor.UserID)
	}
}
