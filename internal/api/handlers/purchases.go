package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitrineshop/marketapi/internal/api/middleware"
	"github.com/vitrineshop/marketapi/internal/domain"
	"github.com/vitrineshop/marketapi/internal/repository"
	"github.com/vitrineshop/marketapi/pkg/errors"
)

type storeSaleResponse struct {
	ID        string `json:"id"`
	StoreID   string `json:"store_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

func toStoreSaleResponse(sale *domain.StoreSale) storeSaleResponse {
	return storeSaleResponse{
		ID:        sale.ID.String(),
		StoreID:   sale.StoreID.String(),
		ProductID: sale.ProductID.String(),
		Quantity:  sale.Quantity,
		Amount:    sale.Amount,
		Status:    string(sale.Status),
	}
}

// HandleGetPurchase handles GET /v1/purchases/:id
func HandleGetPurchase(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.GetUserFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		purchaseID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid purchase id"})
			return
		}

		purchase, err := repos.Purchase.GetByID(c.Request.Context(), purchaseID)
		if err != nil {
			if _, ok := err.(*errors.ErrNotFound); ok {
				c.JSON(http.StatusNotFound, gin.H{"error": "purchase not found"})
				return
			}
			logger.Error("Failed to get purchase", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if purchase.BuyerID != user.ID {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}

		sales, err := repos.StoreSale.GetByPurchaseID(c.Request.Context(), purchaseID)
		if err != nil {
			logger.Error("Failed to get store sales", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		saleResponses := make([]storeSaleResponse, 0, len(sales))
		for _, sale := range sales {
			saleResponses = append(saleResponses, toStoreSaleResponse(sale))
		}

		c.JSON(http.StatusOK, gin.H{
			"purchase": toPurchaseResponse(purchase),
			"sales":    saleResponses,
		})
	}
}

// HandleListPurchases handles GET /v1/purchases
func HandleListPurchases(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.GetUserFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		purchases, err := repos.Purchase.ListByBuyerID(c.Request.Context(), user.ID, limit, offset)
		if err != nil {
			logger.Error("Failed to list purchases", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		resp := make([]purchaseResponse, 0, len(purchases))
		for _, purchase := range purchases {
			resp = append(resp, toPurchaseResponse(purchase))
		}

		c.JSON(http.StatusOK, gin.H{"purchases": resp, "limit": limit, "offset": offset})
	}
}
