package order

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solemart/marketplace-api/internal/domain/inventory"
	"github.com/solemart/marketplace-api/internal/domain/product"
	"github.com/solemart/marketplace-api/internal/domain/user"
)

// --- Mock implementations ---

// mockInventory hands out fixed reservations and records reserve/release
// calls.
type mockInventory struct {
	reservations map[string]inventory.Reservation // key: productID|sku
	reserveErr   error

	reserved []inventory.Request
	released []inventory.Restock
}

func (m *mockInventory) Reserve(_ context.Context, reqs []inventory.Request) ([]inventory.Reservation, error) {
	if m.reserveErr != nil {
		return nil, m.reserveErr
	}
	out := make([]inventory.Reservation, 0, len(reqs))
	for _, req := range reqs {
		r, ok := m.reservations[req.ProductID+"|"+req.SKU]
		if !ok {
			return nil, &inventory.ProductNotFoundError{ProductID: req.ProductID}
		}
		r.Quantity = req.Quantity
		out = append(out, r)
		m.reserved = append(m.reserved, req)
	}
	return out, nil
}

func (m *mockInventory) Release(_ context.Context, restocks []inventory.Restock) error {
	m.released = append(m.released, restocks...)
	return nil
}

type mockOrderRepo struct {
	byID      map[string]*Order
	createErr error
}

func newMockOrderRepo(orders ...*Order) *mockOrderRepo {
	byID := make(map[string]*Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}
	return &mockOrderRepo{byID: byID}
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.byID[o.ID] = o
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	// Copy so service mutations only land via Update.
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) Update(_ context.Context, o *Order) error {
	if _, ok := m.byID[o.ID]; !ok {
		return ErrNotFound
	}
	m.byID[o.ID] = o
	return nil
}

func (m *mockOrderRepo) ListByUser(_ context.Context, userID string) ([]Order, error) {
	var out []Order
	for _, o := range m.byID {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) ListBySeller(_ context.Context, sellerID string) ([]Order, error) {
	var out []Order
	for _, o := range m.byID {
		if o.ContainsSeller(sellerID) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) List(_ context.Context) ([]Order, error) {
	out := make([]Order, 0, len(m.byID))
	for _, o := range m.byID {
		out = append(out, *o)
	}
	return out, nil
}

type mockCarts struct {
	cleared []string
}

func (m *mockCarts) Clear(_ context.Context, userID string) error {
	m.cleared = append(m.cleared, userID)
	return nil
}

// passthroughTx runs the callback directly; transactional semantics are
// covered by the integration tests.
type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// --- Helpers ---

func testPricing() Pricing {
	return Pricing{
		ShippingFee: decimal.RequireFromString("5.00"),
		TaxRate:     decimal.RequireFromString("0.10"),
	}
}

func testInventory() *mockInventory {
	return &mockInventory{
		reservations: map[string]inventory.Reservation{
			"p1|S40": {
				ProductID: "p1", SellerID: "seller-1", SKU: "S40",
				Name: "Urban Runner 40", Brand: "Stride",
				UnitPrice:     decimal.RequireFromString("89.90"),
				OriginalPrice: decimal.RequireFromString("109.90"),
				Spec:          product.Spec{Size: "40", Color: "black"},
			},
			"p2|T41": {
				ProductID: "p2", SellerID: "seller-2", SKU: "T41",
				Name: "Trail Blazer 41", Brand: "Ridgeline",
				UnitPrice:     decimal.RequireFromString("129.00"),
				OriginalPrice: decimal.RequireFromString("129.00"),
				Spec:          product.Spec{Size: "41", Color: "green"},
			},
		},
	}
}

func validAddress() Address {
	return Address{
		FullName: "Linh Tran",
		Phone:    "0123456789",
		Street:   "12 Nguyen Hue",
		District: "District 1",
		City:     "Ho Chi Minh City",
	}
}

func newTestService(inv *mockInventory, orders *mockOrderRepo, carts *mockCarts) *Service {
	svc := NewService(inv, orders, carts, passthroughTx{}, testPricing())
	svc.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }
	return svc
}

// --- Tests ---

func TestPlaceOrder(t *testing.T) {
	inv := testInventory()
	orders := newMockOrderRepo()
	carts := &mockCarts{}
	svc := newTestService(inv, orders, carts)

	o, err := svc.PlaceOrder(context.Background(), "user-1", PlaceOrderRequest{
		Items: []ItemRequest{
			{ProductID: "p1", SKU: "S40", Quantity: 2},
			{ProductID: "p2", SKU: "T41", Quantity: 1},
		},
		ShippingAddress: validAddress(),
		PaymentMethod:   PaymentCOD,
	})
	require.NoError(t, err)

	// Totals: 2*89.90 + 129.00 = 308.80; tax 30.88; shipping 5.00.
	assert.True(t, o.Subtotal.Equal(decimal.RequireFromString("308.80")), "subtotal %s", o.Subtotal)
	assert.True(t, o.Tax.Equal(decimal.RequireFromString("30.88")), "tax %s", o.Tax)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("344.68")), "total %s", o.Total)
	require.NoError(t, o.CheckTotal())

	assert.Equal(t, StatusConfirmed, o.Status)
	assert.Equal(t, PaymentStatusPending, o.PaymentStatus)
	require.Len(t, o.History, 1)
	assert.Equal(t, StatusConfirmed, o.History[0].Status)

	// Line snapshots carry the reservation data.
	require.Len(t, o.Lines, 2)
	assert.Equal(t, "seller-1", o.Lines[0].SellerID)
	assert.Equal(t, "Urban Runner 40", o.Lines[0].Name)
	assert.Equal(t, 2, o.Lines[0].Quantity)
	assert.Equal(t, StatusConfirmed, o.Lines[0].Status)

	// Stock reserved, order persisted, cart cleared.
	assert.Len(t, inv.reserved, 2)
	assert.Contains(t, orders.byID, o.ID)
	assert.Equal(t, []string{"user-1"}, carts.cleared)
}

func TestPlaceOrder_EmptyItems(t *testing.T) {
	svc := newTestService(testInventory(), newMockOrderRepo(), &mockCarts{})

	_, err := svc.PlaceOrder(context.Background(), "user-1", PlaceOrderRequest{})
	require.ErrorIs(t, err, ErrEmptyItems)
}

func TestPlaceOrder_InvalidQuantity(t *testing.T) {
	inv := testInventory()
	svc := newTestService(inv, newMockOrderRepo(), &mockCarts{})

	_, err := svc.PlaceOrder(context.Background(), "user-1", PlaceOrderRequest{
		Items:           []ItemRequest{{ProductID: "p1", SKU: "S40", Quantity: 0}},
		ShippingAddress: validAddress(),
	})

	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, "p1", iqErr.ProductID)
	assert.Empty(t, inv.reserved)
}

func TestPlaceOrder_IncompleteAddress(t *testing.T) {
	inv := testInventory()
	svc := newTestService(inv, newMockOrderRepo(), &mockCarts{})

	addr := validAddress()
	addr.City = ""
	_, err := svc.PlaceOrder(context.Background(), "user-1", PlaceOrderRequest{
		Items:           []ItemRequest{{ProductID: "p1", SKU: "S40", Quantity: 1}},
		ShippingAddress: addr,
	})

	var iaErr *IncompleteAddressError
	require.ErrorAs(t, err, &iaErr)
	assert.Equal(t, "city", iaErr.Field)
	assert.Empty(t, inv.reserved)
}

func TestPlaceOrder_DefaultsToCOD(t *testing.T) {
	svc := newTestService(testInventory(), newMockOrderRepo(), &mockCarts{})

	o, err := svc.PlaceOrder(context.Background(), "user-1", PlaceOrderRequest{
		Items:           []ItemRequest{{ProductID: "p1", SKU: "S40", Quantity: 1}},
		ShippingAddress: validAddress(),
	})
	require.NoError(t, err)
	assert.Equal(t, PaymentCOD, o.PaymentMethod)
}

func TestPlaceOrder_InvalidPaymentMethod(t *testing.T) {
	svc := newTestService(testInventory(), newMockOrderRepo(), &mockCarts{})

	_, err := svc.PlaceOrder(context.Background(), "user-1", PlaceOrderRequest{
		Items:           []ItemRequest{{ProductID: "p1", SKU: "S40", Quantity: 1}},
		ShippingAddress: validAddress(),
		PaymentMethod:   "crypto",
	})
	require.ErrorIs(t, err, ErrInvalidPaymentMethod)
}

func TestPlaceOrder_ReserveFailureCreatesNoOrder(t *testing.T) {
	inv := testInventory()
	inv.reserveErr = &inventory.InsufficientStockError{ProductID: "p1", SKU: "S40", Requested: 5, Available: 2}
	orders := newMockOrderRepo()
	carts := &mockCarts{}
	svc := newTestService(inv, orders, carts)

	_, err := svc.PlaceOrder(context.Background(), "user-1", PlaceOrderRequest{
		Items:           []ItemRequest{{ProductID: "p1", SKU: "S40", Quantity: 5}},
		ShippingAddress: validAddress(),
	})

	var isErr *inventory.InsufficientStockError
	require.ErrorAs(t, err, &isErr)
	assert.Empty(t, orders.byID)
	assert.Empty(t, carts.cleared)
}

func confirmedOrder(id, userID string) *Order {
	return &Order{
		ID:     id,
		UserID: userID,
		Status: StatusConfirmed,
		Lines: []Line{
			{ProductID: "p1", SellerID: "seller-1", SKU: "S40", Quantity: 2, Status: StatusConfirmed,
				UnitPrice: decimal.RequireFromString("89.90")},
		},
		History: []HistoryEntry{{Status: StatusConfirmed}},
	}
}

func TestCancel(t *testing.T) {
	inv := testInventory()
	orders := newMockOrderRepo(confirmedOrder("o1", "user-1"))
	svc := newTestService(inv, orders, &mockCarts{})

	o, err := svc.Cancel(context.Background(), "o1", Actor{UserID: "user-1", Role: user.RoleClient}, "changed my mind")
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, "changed my mind", o.CancelReason)
	require.Len(t, o.History, 2)
	assert.Equal(t, StatusCancelled, o.History[1].Status)

	// Reserved stock returned.
	require.Len(t, inv.released, 1)
	assert.Equal(t, inventory.Restock{ProductID: "p1", SKU: "S40", Quantity: 2}, inv.released[0])

	// Persisted.
	assert.Equal(t, StatusCancelled, orders.byID["o1"].Status)
}

func TestCancel_DefaultReason(t *testing.T) {
	orders := newMockOrderRepo(confirmedOrder("o1", "user-1"))
	svc := newTestService(testInventory(), orders, &mockCarts{})

	o, err := svc.Cancel(context.Background(), "o1", Actor{UserID: "user-1", Role: user.RoleClient}, "")
	require.NoError(t, err)
	assert.Equal(t, "cancelled by customer", o.CancelReason)
}

func TestCancel_TwiceReleasesOnce(t *testing.T) {
	inv := testInventory()
	orders := newMockOrderRepo(confirmedOrder("o1", "user-1"))
	svc := newTestService(inv, orders, &mockCarts{})

	_, err := svc.Cancel(context.Background(), "o1", Actor{UserID: "user-1", Role: user.RoleClient}, "")
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), "o1", Actor{UserID: "user-1", Role: user.RoleClient}, "")
	var itErr *InvalidTransitionError
	require.ErrorAs(t, err, &itErr)

	// Second attempt fails the transition before touching inventory.
	assert.Len(t, inv.released, 1)
}

func TestCancel_DeliveredRejected(t *testing.T) {
	o := confirmedOrder("o1", "user-1")
	o.Status = StatusDelivered
	inv := testInventory()
	svc := newTestService(inv, newMockOrderRepo(o), &mockCarts{})

	_, err := svc.Cancel(context.Background(), "o1", Actor{UserID: "user-1", Role: user.RoleClient}, "")

	var itErr *InvalidTransitionError
	require.ErrorAs(t, err, &itErr)
	assert.Empty(t, inv.released)
}

func TestCancel_AccessDenied(t *testing.T) {
	svc := newTestService(testInventory(), newMockOrderRepo(confirmedOrder("o1", "user-1")), &mockCarts{})

	_, err := svc.Cancel(context.Background(), "o1", Actor{UserID: "user-2", Role: user.RoleClient}, "")
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestCancel_AdminMayCancelAnyOrder(t *testing.T) {
	svc := newTestService(testInventory(), newMockOrderRepo(confirmedOrder("o1", "user-1")), &mockCarts{})

	o, err := svc.Cancel(context.Background(), "o1", Actor{UserID: "admin-1", Role: user.RoleAdmin}, "fraud review")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
}

func TestUpdateStatus(t *testing.T) {
	orders := newMockOrderRepo(confirmedOrder("o1", "user-1"))
	svc := newTestService(testInventory(), orders, &mockCarts{})

	o, err := svc.UpdateStatus(context.Background(), "o1",
		Actor{UserID: "seller-1", Role: user.RolePartner}, StatusProcessing, "packing")
	require.NoError(t, err)

	assert.Equal(t, StatusProcessing, o.Status)
	assert.Equal(t, StatusProcessing, o.Lines[0].Status)
	assert.Equal(t, StatusProcessing, orders.byID["o1"].Status)
}

func TestUpdateStatus_CancelRejected(t *testing.T) {
	svc := newTestService(testInventory(), newMockOrderRepo(confirmedOrder("o1", "user-1")), &mockCarts{})

	_, err := svc.UpdateStatus(context.Background(), "o1",
		Actor{UserID: "admin-1", Role: user.RoleAdmin}, StatusCancelled, "")
	require.ErrorIs(t, err, ErrCancelViaStatus)
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	svc := newTestService(testInventory(), newMockOrderRepo(confirmedOrder("o1", "user-1")), &mockCarts{})

	_, err := svc.UpdateStatus(context.Background(), "o1",
		Actor{UserID: "admin-1", Role: user.RoleAdmin}, Status("returned"), "")
	require.ErrorIs(t, err, ErrUnknownStatus)
}

func TestUpdateStatus_ForeignPartnerDenied(t *testing.T) {
	svc := newTestService(testInventory(), newMockOrderRepo(confirmedOrder("o1", "user-1")), &mockCarts{})

	_, err := svc.UpdateStatus(context.Background(), "o1",
		Actor{UserID: "seller-2", Role: user.RolePartner}, StatusProcessing, "")
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestUpdateStatus_ClientDenied(t *testing.T) {
	svc := newTestService(testInventory(), newMockOrderRepo(confirmedOrder("o1", "user-1")), &mockCarts{})

	_, err := svc.UpdateStatus(context.Background(), "o1",
		Actor{UserID: "user-1", Role: user.RoleClient}, StatusProcessing, "")
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestUpdateStatus_DeliveredMarksCODPaid(t *testing.T) {
	o := confirmedOrder("o1", "user-1")
	o.Status = StatusShipped
	o.PaymentMethod = PaymentCOD
	o.PaymentStatus = PaymentStatusPending
	orders := newMockOrderRepo(o)
	svc := newTestService(testInventory(), orders, &mockCarts{})

	updated, err := svc.UpdateStatus(context.Background(), "o1",
		Actor{UserID: "seller-1", Role: user.RolePartner}, StatusDelivered, "")
	require.NoError(t, err)

	assert.Equal(t, PaymentStatusPaid, updated.PaymentStatus)
	require.NotNil(t, updated.DeliveredAt)
}

func TestGet_AccessRules(t *testing.T) {
	svc := newTestService(testInventory(), newMockOrderRepo(confirmedOrder("o1", "user-1")), &mockCarts{})

	_, err := svc.Get(context.Background(), "o1", Actor{UserID: "user-1", Role: user.RoleClient})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "o1", Actor{UserID: "admin-1", Role: user.RoleAdmin})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "o1", Actor{UserID: "seller-1", Role: user.RolePartner})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "o1", Actor{UserID: "seller-2", Role: user.RolePartner})
	require.ErrorIs(t, err, ErrAccessDenied)

	_, err = svc.Get(context.Background(), "o1", Actor{UserID: "user-2", Role: user.RoleClient})
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestList_ScopedByRole(t *testing.T) {
	o1 := confirmedOrder("o1", "user-1")
	o2 := confirmedOrder("o2", "user-2")
	o2.Lines[0].SellerID = "seller-2"
	svc := newTestService(testInventory(), newMockOrderRepo(o1, o2), &mockCarts{})

	own, err := svc.List(context.Background(), Actor{UserID: "user-1", Role: user.RoleClient})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "o1", own[0].ID)

	sold, err := svc.List(context.Background(), Actor{UserID: "seller-2", Role: user.RolePartner})
	require.NoError(t, err)
	require.Len(t, sold, 1)
	assert.Equal(t, "o2", sold[0].ID)

	all, err := svc.List(context.Background(), Actor{UserID: "admin-1", Role: user.RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
