package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vitrineshop/marketapi/internal/api/middleware"
	"github.com/vitrineshop/marketapi/internal/domain"
	"github.com/vitrineshop/marketapi/internal/repository"
)

type createAddressRequest struct {
	Street       string  `json:"street" binding:"required"`
	Number       string  `json:"number" binding:"required"`
	Neighborhood string  `json:"neighborhood" binding:"required"`
	City         string  `json:"city" binding:"required"`
	State        string  `json:"state" binding:"required,len=2"`
	PostalCode   string  `json:"postal_code" binding:"required"`
	Complement   *string `json:"complement"`
}

type addressResponse struct {
	ID           string  `json:"id"`
	Street       string  `json:"street"`
	Number       string  `json:"number"`
	Neighborhood string  `json:"neighborhood"`
	City         string  `json:"city"`
	State        string  `json:"state"`
	PostalCode   string  `json:"postal_code"`
	Complement   *string `json:"complement,omitempty"`
}

func toAddressResponse(address *domain.Address) addressResponse {
	return addressResponse{
		ID:           address.ID.String(),
		Street:       address.Street,
		Number:       address.Number,
		Neighborhood: address.Neighborhood,
		City:         address.City,
		State:        address.State,
		PostalCode:   address.PostalCode,
		Complement:   address.Complement,
	}
}

// HandleCreateAddress handles POST /v1/addresses
func HandleCreateAddress(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.GetUserFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req createAddressRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "details": err.Error()})
			return
		}

		address := &domain.Address{
			UserID:       user.ID,
			Street:       req.Street,
			Number:       req.Number,
			Neighborhood: req.Neighborhood,
			City:         req.City,
			State:        req.State,
			PostalCode:   req.PostalCode,
			Complement:   req.Complement,
		}
		if err := repos.Address.Create(c.Request.Context(), address); err != nil {
			logger.Error("Failed to create address", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusCreated, toAddressResponse(address))
	}
}

// HandleListAddresses handles GET /v1/addresses
func HandleListAddresses(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.GetUserFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		addresses, err := repos.Address.ListByUserID(c.Request.Context(), user.ID)
		if err != nil {
			logger.Error("Failed to list addresses", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		resp := make([]addressResponse, 0, len(addresses))
		for _, address := range addresses {
			resp = append(resp, toAddressResponse(address))
		}

		c.JSON(http.StatusOK, gin.H{"addresses": resp})
	}
}
