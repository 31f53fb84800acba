package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/solemart/marketplace-api/internal/domain/product"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// transitions is the order state machine. Cancellation is reachable only
// from pending and confirmed; delivered and cancelled are terminal.
var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// CanTransitionTo reports whether the state machine permits moving from s to
// next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// InvalidTransitionError indicates a status change the state machine forbids.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

// PaymentMethod is how the customer pays for an order.
type PaymentMethod string

const (
	PaymentCOD          PaymentMethod = "cod"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentCard         PaymentMethod = "card"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCOD, PaymentBankTransfer, PaymentCard:
		return true
	}
	return false
}

// PaymentStatus tracks whether an order has been paid.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// IncompleteAddressError indicates a required shipping address field is
// missing.
type IncompleteAddressError struct {
	Field string
}

func (e *IncompleteAddressError) Error() string {
	return fmt.Sprintf("shipping address is missing %s", e.Field)
}

// Address is the shipping destination snapshot stored on an order.
type Address struct {
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
	Street   string `json:"street"`
	District string `json:"district"`
	City     string `json:"city"`
}

// Validate checks that every required field is present.
func (a Address) Validate() error {
	for _, f := range []struct {
		name  string
		value string
	}{
		{"fullName", a.FullName},
		{"phone", a.Phone},
		{"street", a.Street},
		{"district", a.District},
		{"city", a.City},
	} {
		if f.value == "" {
			return &IncompleteAddressError{Field: f.name}
		}
	}
	return nil
}

// Line is an immutable snapshot of one reserved variant at the moment the
// order was placed. Later edits to the product never alter it.
type Line struct {
	ProductID     string          `json:"productId"`
	SellerID      string          `json:"sellerId"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Brand         string          `json:"brand"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	OriginalPrice decimal.Decimal `json:"originalPrice"`
	Quantity      int             `json:"quantity"`
	Spec          product.Spec    `json:"spec"`
	Status        Status          `json:"status"`
}

// Subtotal returns unit price times quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// HistoryEntry records one status transition in the order's append-only
// audit log.
type HistoryEntry struct {
	Status Status    `json:"status"`
	Note   string    `json:"note"`
	Actor  string    `json:"actor"`
	At     time.Time `json:"at"`
}

// Order is the persisted aggregate of line-item snapshots, derived totals,
// shipping address, payment state, and the status history.
type Order struct {
	ID              string
	UserID          string
	OrderedAt       time.Time
	Lines           []Line
	Subtotal        decimal.Decimal
	ShippingFee     decimal.Decimal
	Tax             decimal.Decimal
	Discount        decimal.Decimal
	Total           decimal.Decimal
	ShippingAddress Address
	PaymentMethod   PaymentMethod
	PaymentStatus   PaymentStatus
	Status          Status
	History         []HistoryEntry
	CancelReason    string
	DeliveredAt     *time.Time
	Notes           string
}

// ApplyStatus performs a validated status transition: it updates the order
// status, mirrors the new status onto every line, appends a history entry,
// and stamps the delivery timestamp on reaching delivered. The history stays
// append-only and its last entry always equals the current status.
func (o *Order) ApplyStatus(next Status, note, actor string, now time.Time) error {
	if !o.Status.CanTransitionTo(next) {
		return &InvalidTransitionError{From: o.Status, To: next}
	}

	o.Status = next
	for i := range o.Lines {
		o.Lines[i].Status = next
	}
	if next == StatusDelivered {
		at := now
		o.DeliveredAt = &at
	}
	o.History = append(o.History, HistoryEntry{
		Status: next,
		Note:   note,
		Actor:  actor,
		At:     now,
	})
	return nil
}

// ContainsSeller reports whether at least one line belongs to the given
// seller.
func (o *Order) ContainsSeller(sellerID string) bool {
	for _, l := range o.Lines {
		if l.SellerID == sellerID {
			return true
		}
	}
	return false
}

// CheckTotal verifies the derived-total invariant:
// total = subtotal + shipping + tax - discount.
func (o *Order) CheckTotal() error {
	want := o.Subtotal.Add(o.ShippingFee).Add(o.Tax).Sub(o.Discount)
	if !o.Total.Equal(want) {
		return errors.Errorf("order %s total %s does not match derived %s", o.ID, o.Total, want)
	}
	return nil
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, o *Order) error
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	ListBySeller(ctx context.Context, sellerID string) ([]Order, error)
	List(ctx context.Context) ([]Order, error)
}
