package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solemart/marketplace-api/internal/domain/order"
	"github.com/solemart/marketplace-api/internal/domain/product"
	"github.com/solemart/marketplace-api/internal/domain/user"
)

type variantPayload struct {
	SKU           string          `json:"sku" binding:"required"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	OriginalPrice decimal.Decimal `json:"originalPrice"`
	Stock         int             `json:"stock"`
	Sold          int             `json:"sold"`
	Available     bool            `json:"available"`
	Spec          product.Spec    `json:"spec"`
}

type productPayload struct {
	ID        string           `json:"id"`
	SellerID  string           `json:"sellerId"`
	Name      string           `json:"name" binding:"required"`
	Brand     string           `json:"brand"`
	Category  string           `json:"category"`
	BasePrice decimal.Decimal  `json:"basePrice"`
	Active    bool             `json:"active"`
	Variants  []variantPayload `json:"variants"`
}

func toProductPayload(p *product.Product) productPayload {
	out := productPayload{
		ID:        p.ID,
		SellerID:  p.SellerID,
		Name:      p.Name,
		Brand:     p.Brand,
		Category:  p.Category,
		BasePrice: p.BasePrice,
		Active:    p.Active,
		Variants:  make([]variantPayload, len(p.Variants)),
	}
	for i, v := range p.Variants {
		out.Variants[i] = variantPayload{
			SKU:           v.SKU,
			Name:          v.Name,
			Price:         v.Price,
			OriginalPrice: v.OriginalPrice,
			Stock:         v.Stock,
			Sold:          v.Sold,
			Available:     v.Available,
			Spec:          v.Spec,
		}
	}
	return out
}

func (p productPayload) toDomain() *product.Product {
	out := &product.Product{
		ID:        p.ID,
		SellerID:  p.SellerID,
		Name:      p.Name,
		Brand:     p.Brand,
		Category:  p.Category,
		BasePrice: p.BasePrice,
		Active:    p.Active,
		Variants:  make([]product.Variant, len(p.Variants)),
	}
	for i, v := range p.Variants {
		out.Variants[i] = product.Variant{
			SKU:           v.SKU,
			Name:          v.Name,
			Price:         v.Price,
			OriginalPrice: v.OriginalPrice,
			Stock:         v.Stock,
			Sold:          v.Sold,
			Available:     v.Available,
			Spec:          v.Spec,
		}
	}
	return out
}

func (h *Handler) listProducts(c *gin.Context) {
	f := product.Filter{
		SellerID: c.Query("sellerId"),
		Brand:    c.Query("brand"),
		Category: c.Query("category"),
	}
	// Only admins see inactive listings.
	if IdentityFrom(c).Role == user.RoleAdmin {
		f.IncludeInactive = c.Query("includeInactive") == "true"
	}

	products, err := h.products.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]productPayload, len(products))
	for i := range products {
		out[i] = toProductPayload(&products[i])
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) getProduct(c *gin.Context) {
	p, err := h.products.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductPayload(p))
}

func (h *Handler) createProduct(c *gin.Context) {
	var req productPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Message: err.Error(), Code: codeBadRequest})
		return
	}

	p := req.toDomain()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	// Partners always list under their own account; only admins may set an
	// arbitrary seller.
	id := IdentityFrom(c)
	if id.Role != user.RoleAdmin || p.SellerID == "" {
		p.SellerID = id.UserID
	}

	if err := h.products.Create(c.Request.Context(), p); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toProductPayload(p))
}

func (h *Handler) updateProduct(c *gin.Context) {
	var req productPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Message: err.Error(), Code: codeBadRequest})
		return
	}

	current, err := h.products.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	id := IdentityFrom(c)
	if id.Role != user.RoleAdmin && current.SellerID != id.UserID {
		respondError(c, order.ErrAccessDenied)
		return
	}

	p := req.toDomain()
	p.ID = current.ID
	p.SellerID = current.SellerID
	if err := h.products.Update(c.Request.Context(), p); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductPayload(p))
}
