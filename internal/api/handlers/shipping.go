package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitrineshop/marketapi/internal/api/middleware"
	"github.com/vitrineshop/marketapi/internal/config"
	"github.com/vitrineshop/marketapi/internal/repository"
	"github.com/vitrineshop/marketapi/internal/service"
	"github.com/vitrineshop/marketapi/internal/shipping"
	"github.com/vitrineshop/marketapi/pkg/errors"
)

type shippingQuoteRequest struct {
	AddressID string `json:"address_id" binding:"required,uuid"`
}

type storeGroupResponse struct {
	StoreID      string             `json:"store_id"`
	StoreName    string             `json:"store_name"`
	Items        []cartLineResponse `json:"items"`
	Options      []optionResponse   `json:"options"`
	HasError     bool               `json:"has_error"`
	ErrorMessage string             `json:"error_message,omitempty"`
}

type optionResponse struct {
	ID          string `json:"id"`
	Carrier     string `json:"carrier"`
	Service     string `json:"service"`
	Price       int64  `json:"price"`
	DeliveryMin int    `json:"delivery_min_days"`
	DeliveryMax int    `json:"delivery_max_days"`
}

// HandleShippingQuote handles POST /v1/shipping/quote. Returns one group
// per store in the cart, each with its own options or its own error; a
// failed store never hides another store's options.
func HandleShippingQuote(cfg *config.Config, repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	calculator := shipping.NewClient(cfg.Shipping.BaseURL, cfg.Shipping.Token, logger)
	quoteSvc := service.NewShippingService(calculator, cfg.Shipping.OriginPostal, logger)

	return func(c *gin.Context) {
		user, ok := middleware.GetUserFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req shippingQuoteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "details": err.Error()})
			return
		}

		address, err := repos.Address.GetByID(c.Request.Context(), uuid.MustParse(req.AddressID))
		if err != nil {
			if _, ok := err.(*errors.ErrNotFound); ok {
				c.JSON(http.StatusNotFound, gin.H{"error": "address not found"})
				return
			}
			logger.Error("Failed to get address", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if address.UserID != user.ID {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}

		lines, err := repos.Cart.ListActiveByBuyer(c.Request.Context(), user.ID)
		if err != nil {
			logger.Error("Failed to list cart for quote", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if len(lines) == 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "cart is empty"})
			return
		}

		groups := quoteSvc.QuoteByStore(c.Request.Context(), address, lines)

		resp := make([]storeGroupResponse, 0, len(groups))
		for _, group := range groups {
			gr := storeGroupResponse{
				StoreID:      group.StoreID.String(),
				StoreName:    group.StoreName,
				HasError:     group.HasError,
				ErrorMessage: group.ErrorMessage,
				Items:        make([]cartLineResponse, 0, len(group.Lines)),
				Options:      make([]optionResponse, 0, len(group.Options)),
			}
			for _, line := range group.Lines {
				gr.Items = append(gr.Items, toCartLineResponse(line))
			}
			for _, option := range group.Options {
				gr.Options = append(gr.Options, optionResponse{
					ID:          option.ID,
					Carrier:     option.Carrier,
					Service:     option.Service,
					Price:       option.Price,
					DeliveryMin: option.DeliveryMin,
					DeliveryMax: option.DeliveryMax,
				})
			}
			resp = append(resp, gr)
		}

		c.JSON(http.StatusOK, gin.H{"groups": resp})
	}
}
