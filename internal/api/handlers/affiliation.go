package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vitrineshop/marketapi/internal/api/middleware"
	"github.com/vitrineshop/marketapi/internal/config"
	"github.com/vitrineshop/marketapi/internal/payment"
	"github.com/vitrineshop/marketapi/internal/repository"
	"github.com/vitrineshop/marketapi/internal/service"
	"github.com/vitrineshop/marketapi/pkg/errors"
)

type registerSellerRequest struct {
	DocumentType   string `json:"document_type" binding:"required,oneof=cpf cnpj"`
	DocumentNumber string `json:"document_number" binding:"required"`
	BankCode       string `json:"bank_code" binding:"required"`
	BankAgency     string `json:"bank_agency" binding:"required"`
	BankAccount    string `json:"bank_account" binding:"required"`
}

// HandleRegisterSeller handles POST /v1/affiliation/register. Submits the
// seller's registration data to the processor and stores the recipient
// reference as a pending affiliation account.
func HandleRegisterSeller(cfg *config.Config, repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	gateway := payment.NewClient(cfg.Payment.BaseURL, cfg.Payment.APIKey, logger)
	affiliationSvc := service.NewAffiliationService(repos, gateway, logger)

	return func(c *gin.Context) {
		user, ok := middleware.GetUserFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req registerSellerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "details": err.Error()})
			return
		}

		account, err := affiliationSvc.RegisterSeller(c.Request.Context(), user, service.RegistrationRequest{
			DocumentType:   req.DocumentType,
			DocumentNumber: req.DocumentNumber,
			BankCode:       req.BankCode,
			BankAgency:     req.BankAgency,
			BankAccount:    req.BankAccount,
		})
		if err != nil {
			switch typed := err.(type) {
			case *errors.ErrValidation:
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": typed.Error(), "fields": typed.Fields})
			case *errors.ErrUpstream:
				c.JSON(http.StatusBadGateway, gin.H{"error": "payment processor unavailable, try again"})
			default:
				logger.Error("Seller registration failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"external_id":     account.ExternalID,
			"status":          string(account.Status),
			"affiliation_url": account.AffiliationURL,
		})
	}
}

// HandleAffiliationStatus handles GET /v1/affiliation/status, the
// read-only gate consulted before listing or selling.
func HandleAffiliationStatus(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	affiliationSvc := service.NewAffiliationService(repos, nil, logger)

	return func(c *gin.Context) {
		user, ok := middleware.GetUserFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		gate, err := affiliationSvc.CanSell(c.Request.Context(), user.ID)
		if err != nil {
			logger.Error("Failed to read affiliation gate", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, gate)
	}
}
