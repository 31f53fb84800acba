package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/solemart/marketplace-api/internal/domain/cart"
)

type cartItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	SKU       string `json:"sku" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

type cartResponse struct {
	UserID    string      `json:"userId"`
	Items     []cart.Item `json:"items"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

func toCartResponse(c *cart.Cart) cartResponse {
	items := c.Items
	if items == nil {
		items = []cart.Item{}
	}
	return cartResponse{UserID: c.UserID, Items: items, UpdatedAt: c.UpdatedAt}
}

func (h *Handler) getCart(c *gin.Context) {
	id := IdentityFrom(c)
	crt, err := h.carts.Get(c.Request.Context(), id.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(crt))
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Message: err.Error(), Code: codeBadRequest})
		return
	}

	id := IdentityFrom(c)
	crt, err := h.carts.AddItem(c.Request.Context(), id.UserID, cart.Item{
		ProductID: req.ProductID,
		SKU:       req.SKU,
		Quantity:  req.Quantity,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(crt))
}

func (h *Handler) updateCartItem(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Message: err.Error(), Code: codeBadRequest})
		return
	}

	id := IdentityFrom(c)
	crt, err := h.carts.UpdateItem(c.Request.Context(), id.UserID, cart.Item{
		ProductID: req.ProductID,
		SKU:       req.SKU,
		Quantity:  req.Quantity,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(crt))
}

func (h *Handler) removeCartItem(c *gin.Context) {
	id := IdentityFrom(c)
	crt, err := h.carts.RemoveItem(c.Request.Context(), id.UserID, c.Param("productId"), c.Param("sku"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(crt))
}
