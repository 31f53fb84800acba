package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/solemart/marketplace-api/internal/domain/order"
)

type orderItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	SKU       string `json:"sku" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

type placeOrderRequest struct {
	Items           []orderItemRequest `json:"items"`
	ShippingAddress order.Address      `json:"shippingAddress"`
	PaymentMethod   string             `json:"paymentMethod"`
	Notes           string             `json:"notes"`
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

// placeOrderResponse is the creation envelope: the order plus a confirmation
// message.
type placeOrderResponse struct {
	Message string        `json:"message"`
	Order   orderResponse `json:"order"`
}

type orderResponse struct {
	ID              string               `json:"id"`
	UserID          string               `json:"userId"`
	OrderedAt       time.Time            `json:"orderedAt"`
	Lines           []order.Line         `json:"lines"`
	Subtotal        decimal.Decimal      `json:"subtotal"`
	ShippingFee     decimal.Decimal      `json:"shippingFee"`
	Tax             decimal.Decimal      `json:"tax"`
	Discount        decimal.Decimal      `json:"discount"`
	Total           decimal.Decimal      `json:"total"`
	ShippingAddress order.Address        `json:"shippingAddress"`
	PaymentMethod   string               `json:"paymentMethod"`
	PaymentStatus   string               `json:"paymentStatus"`
	Status          string               `json:"status"`
	History         []order.HistoryEntry `json:"history"`
	CancelReason    string               `json:"cancelReason,omitempty"`
	DeliveredAt     *time.Time           `json:"deliveredAt,omitempty"`
	Notes           string               `json:"notes,omitempty"`
}

func toOrderResponse(o *order.Order) orderResponse {
	return orderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		OrderedAt:       o.OrderedAt,
		Lines:           o.Lines,
		Subtotal:        o.Subtotal,
		ShippingFee:     o.ShippingFee,
		Tax:             o.Tax,
		Discount:        o.Discount,
		Total:           o.Total,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   string(o.PaymentMethod),
		PaymentStatus:   string(o.PaymentStatus),
		Status:          string(o.Status),
		History:         o.History,
		CancelReason:    o.CancelReason,
		DeliveredAt:     o.DeliveredAt,
		Notes:           o.Notes,
	}
}

func (h *Handler) placeOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Message: err.Error(), Code: codeBadRequest})
		return
	}

	items := make([]order.ItemRequest, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.ItemRequest{ProductID: it.ProductID, SKU: it.SKU, Quantity: it.Quantity}
	}

	id := IdentityFrom(c)
	o, err := h.orders.PlaceOrder(c.Request.Context(), id.UserID, order.PlaceOrderRequest{
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   order.PaymentMethod(req.PaymentMethod),
		Notes:           req.Notes,
	})
	recordOrderOperation("place", err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, placeOrderResponse{
		Message: "order placed",
		Order:   toOrderResponse(o),
	})
}

func (h *Handler) listOrders(c *gin.Context) {
	id := IdentityFrom(c)
	orders, err := h.orders.List(c.Request.Context(), id.Actor())
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = toOrderResponse(&orders[i])
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) getOrder(c *gin.Context) {
	id := IdentityFrom(c)
	o, err := h.orders.Get(c.Request.Context(), c.Param("id"), id.Actor())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(o))
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Message: err.Error(), Code: codeBadRequest})
		return
	}

	id := IdentityFrom(c)
	o, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"), id.Actor(), order.Status(req.Status), req.Note)
	recordOrderOperation("update_status", err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(o))
}

func (h *Handler) cancelOrder(c *gin.Context) {
	var req cancelOrderRequest
	// Body is optional: cancelling without a reason gets the default one.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Message: err.Error(), Code: codeBadRequest})
			return
		}
	}

	id := IdentityFrom(c)
	o, err := h.orders.Cancel(c.Request.Context(), c.Param("id"), id.Actor(), req.Reason)
	recordOrderOperation("cancel", err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(o))
}
