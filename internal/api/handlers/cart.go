package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitrineshop/marketapi/internal/api/middleware"
	"github.com/vitrineshop/marketapi/internal/domain"
	"github.com/vitrineshop/marketapi/internal/repository"
	"github.com/vitrineshop/marketapi/pkg/errors"
)

type cartLineResponse struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	StoreID   string `json:"store_id"`
	StoreName string `json:"store_name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
	Available bool   `json:"available"`
	Stock     int    `json:"stock"`
}

func toCartLineResponse(line *domain.CartLine) cartLineResponse {
	return cartLineResponse{
		ID:        line.ID.String(),
		ProductID: line.ProductID.String(),
		StoreID:   line.StoreID.String(),
		StoreName: line.StoreName,
		UnitPrice: line.UnitPrice,
		Quantity:  line.Quantity,
		Subtotal:  line.Subtotal(),
		Available: line.Available,
		Stock:     line.Stock,
	}
}

// HandleGetCart handles GET /v1/cart. Lines already consumed by a purchase
// never appear here.
func HandleGetCart(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.GetUserFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		lines, err := repos.Cart.ListActiveByBuyer(c.Request.Context(), user.ID)
		if err != nil {
			logger.Error("Failed to list cart", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		items := make([]cartLineResponse, 0, len(lines))
		var total int64
		for _, line := range lines {
			items = append(items, toCartLineResponse(line))
			total += line.Subtotal()
		}

		c.JSON(http.StatusOK, gin.H{"items": items, "product_total": total})
	}
}

type addCartLineRequest struct {
	ProductID string `json:"product_id" binding:"required,uuid"`
	StoreID   string `json:"store_id" binding:"required,uuid"`
	StoreName string `json:"store_name" binding:"required"`
	UnitPrice int64  `json:"unit_price" binding:"required,min=1"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
	Stock     int    `json:"stock" binding:"min=0"`
}

// HandleAddCartLine handles POST /v1/cart/items
func HandleAddCartLine(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.GetUserFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req addCartLineRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "details": err.Error()})
			return
		}

		line := &domain.CartLine{
			BuyerID:   user.ID,
			ProductID: uuid.MustParse(req.ProductID),
			StoreID:   uuid.MustParse(req.StoreID),
			StoreName: req.StoreName,
			UnitPrice: req.UnitPrice,
			Quantity:  req.Quantity,
			Available: true,
			Stock:     req.Stock,
		}
		if err := repos.Cart.AddLine(c.Request.Context(), line); err != nil {
			logger.Error("Failed to add cart line", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusCreated, toCartLineResponse(line))
	}
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

// HandleUpdateCartLine handles PATCH /v1/cart/items/:id
func HandleUpdateCartLine(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.GetUserFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		lineID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cart line id"})
			return
		}

		var req updateQuantityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "details": err.Error()})
			return
		}

		if err := repos.Cart.UpdateQuantity(c.Request.Context(), user.ID, lineID, req.Quantity); err != nil {
			if _, ok := err.(*errors.ErrNotFound); ok {
				c.JSON(http.StatusNotFound, gin.H{"error": "cart line not found"})
				return
			}
			logger.Error("Failed to update cart line", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
