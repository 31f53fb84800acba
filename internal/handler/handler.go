// Package handler exposes the marketplace over HTTP with gin.
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/solemart/marketplace-api/internal/domain/cart"
	"github.com/solemart/marketplace-api/internal/domain/inventory"
	"github.com/solemart/marketplace-api/internal/domain/order"
	"github.com/solemart/marketplace-api/internal/domain/product"
	"github.com/solemart/marketplace-api/internal/domain/user"
)

// OrderService is the slice of order operations the handlers need.
type OrderService interface {
	PlaceOrder(ctx context.Context, userID string, req order.PlaceOrderRequest) (*order.Order, error)
	Cancel(ctx context.Context, orderID string, actor order.Actor, reason string) (*order.Order, error)
	UpdateStatus(ctx context.Context, orderID string, actor order.Actor, next order.Status, note string) (*order.Order, error)
	Get(ctx context.Context, orderID string, actor order.Actor) (*order.Order, error)
	List(ctx context.Context, actor order.Actor) ([]order.Order, error)
}

// CartService is the slice of cart operations the handlers need.
type CartService interface {
	Get(ctx context.Context, userID string) (*cart.Cart, error)
	AddItem(ctx context.Context, userID string, item cart.Item) (*cart.Cart, error)
	UpdateItem(ctx context.Context, userID string, item cart.Item) (*cart.Cart, error)
	RemoveItem(ctx context.Context, userID, productID, sku string) (*cart.Cart, error)
}

// Handler wires the domain services to HTTP routes.
type Handler struct {
	orders   OrderService
	products product.Repository
	carts    CartService
	auth     *Authenticator
}

// New creates a Handler.
func New(orders OrderService, products product.Repository, carts CartService, auth *Authenticator) *Handler {
	return &Handler{
		orders:   orders,
		products: products,
		carts:    carts,
		auth:     auth,
	}
}

// Routes registers all API routes on the engine.
func (h *Handler) Routes(e *gin.Engine) {
	api := e.Group("/api")
	api.Use(Metrics())

	products := api.Group("/products")
	products.GET("", h.listProducts)
	products.GET("/:id", h.getProduct)
	products.POST("", h.auth.Require(), h.auth.RequireRole(user.RolePartner, user.RoleAdmin), h.createProduct)
	products.PATCH("/:id", h.auth.Require(), h.auth.RequireRole(user.RolePartner, user.RoleAdmin), h.updateProduct)

	carts := api.Group("/cart", h.auth.Require())
	carts.GET("", h.getCart)
	carts.POST("/items", h.addCartItem)
	carts.PATCH("/items", h.updateCartItem)
	carts.DELETE("/items/:productId/:sku", h.removeCartItem)

	orders := api.Group("/orders", h.auth.Require())
	orders.POST("", h.placeOrder)
	orders.GET("", h.listOrders)
	orders.GET("/:id", h.getOrder)
	orders.PATCH("/:id/status", h.updateOrderStatus)
	orders.POST("/:id/cancel", h.cancelOrder)
}

type errorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Stable machine-readable codes carried alongside the error message.
const (
	codeNotFound     = "not_found"
	codeAccessDenied = "access_denied"
	codeBadRequest   = "bad_request"
	codeInternal     = "internal"
	codeUnauthorized = "unauthorized"
)

// respondError maps domain errors to HTTP statuses: not-found errors to 404,
// authorization failures to 403, validation and business-rule rejections to
// 400, everything else to 500 with the detail kept out of the response body.
func respondError(c *gin.Context, err error) {
	var (
		productNotFound *inventory.ProductNotFoundError
		variantNotFound *inventory.VariantNotFoundError
		unavailable     *inventory.VariantUnavailableError
		insufficient    *inventory.InsufficientStockError
		invalidQty      *order.InvalidQuantityError
		badAddress      *order.IncompleteAddressError
		badTransition   *order.InvalidTransitionError
	)
	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, user.ErrNotFound),
		errors.As(err, &productNotFound),
		errors.As(err, &variantNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Message: err.Error(), Code: codeNotFound})
	case errors.Is(err, order.ErrAccessDenied):
		c.JSON(http.StatusForbidden, errorResponse{Message: err.Error(), Code: codeAccessDenied})
	case errors.As(err, &unavailable),
		errors.As(err, &insufficient),
		errors.As(err, &invalidQty),
		errors.As(err, &badAddress),
		errors.As(err, &badTransition),
		errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrInvalidPaymentMethod),
		errors.Is(err, order.ErrUnknownStatus),
		errors.Is(err, order.ErrCancelViaStatus),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, cart.ErrVariantUnknown),
		errors.Is(err, cart.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, errorResponse{Message: err.Error(), Code: codeBadRequest})
	default:
		zctx.From(c.Request.Context()).Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Message: "internal error", Code: codeInternal})
	}
}
