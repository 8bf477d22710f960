package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitrineshop/marketapi/internal/api/middleware"
	"github.com/vitrineshop/marketapi/internal/config"
	"github.com/vitrineshop/marketapi/internal/domain"
	"github.com/vitrineshop/marketapi/internal/payment"
	"github.com/vitrineshop/marketapi/internal/repository"
	"github.com/vitrineshop/marketapi/internal/service"
	"github.com/vitrineshop/marketapi/pkg/errors"
)

type shippingSelection struct {
	StoreID string        `json:"store_id" binding:"required,uuid"`
	Option  optionRequest `json:"option" binding:"required"`
}

type optionRequest struct {
	ID          string `json:"id" binding:"required"`
	Carrier     string `json:"carrier" binding:"required"`
	Service     string `json:"service"`
	Price       int64  `json:"price" binding:"min=0"`
	DeliveryMin int    `json:"delivery_min_days"`
	DeliveryMax int    `json:"delivery_max_days"`
}

type checkoutRequest struct {
	AddressID          string              `json:"address_id" binding:"required,uuid"`
	PaymentMethod      string              `json:"payment_method" binding:"required"`
	Installments       int                 `json:"installments"`
	ShippingSelections []shippingSelection `json:"shipping_selections" binding:"required,min=1,dive"`
}

type purchaseResponse struct {
	ID              string  `json:"id"`
	ProductAmount   int64   `json:"product_amount"`
	ShippingFee     int64   `json:"shipping_fee"`
	TotalAmount     int64   `json:"total_amount"`
	PaymentMethod   string  `json:"payment_method"`
	Installments    int     `json:"installments,omitempty"`
	AddressID       string  `json:"address_id"`
	Status          string  `json:"status"`
	ExternalOrderID *string `json:"external_order_id,omitempty"`
	PixQRCode       *string `json:"pix_qr_code,omitempty"`
	PixExpiresAt    *string `json:"pix_expires_at,omitempty"`
	ChargePending   bool    `json:"charge_pending,omitempty"`
}

func toPurchaseResponse(p *domain.Purchase) purchaseResponse {
	resp := purchaseResponse{
		ID:              p.ID.String(),
		ProductAmount:   p.ProductAmount,
		ShippingFee:     p.ShippingFee,
		TotalAmount:     p.ProductAmount + p.ShippingFee,
		PaymentMethod:   string(p.PaymentMethod),
		Installments:    p.Installments,
		AddressID:       p.AddressID.String(),
		Status:          string(p.Status),
		ExternalOrderID: p.ExternalOrderID,
		PixQRCode:       p.PixQRCode,
	}
	if p.PixExpiresAt != nil {
		s := p.PixExpiresAt.Format(time.RFC3339)
		resp.PixExpiresAt = &s
	}
	return resp
}

// HandleCheckout handles POST /v1/checkout. Creates one purchase plus one
// sale per consumed cart line, all-or-nothing. An Idempotency-Key replays
// the purchase it created instead of consuming the cart twice.
func HandleCheckout(cfg *config.Config, repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	gateway := payment.NewClient(cfg.Payment.BaseURL, cfg.Payment.APIKey, logger)
	checkoutSvc := service.NewCheckoutService(repos, gateway, logger)

	return func(c *gin.Context) {
		user, ok := middleware.GetUserFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		// Replay of a previous submission with the same key
		idemKey, requestHash, existingPurchaseID, isExisting := middleware.GetIdempotencyInfo(c)
		if isExisting {
			purchaseID, err := uuid.Parse(existingPurchaseID)
			if err != nil {
				logger.Error("Invalid existing purchase ID from idempotency", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
			purchase, err := repos.Purchase.GetByID(c.Request.Context(), purchaseID)
			if err != nil {
				logger.Error("Failed to get existing purchase", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
			if purchase.BuyerID != user.ID {
				logger.Warn("Idempotency replay resolved to another buyer's purchase",
					zap.String("user_id", user.ID.String()),
					zap.String("purchase_id", purchase.ID.String()),
				)
				c.JSON(http.StatusNotFound, gin.H{"error": "purchase not found"})
				return
			}
			c.JSON(http.StatusOK, toPurchaseResponse(purchase))
			return
		}

		var req checkoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "details": err.Error()})
			return
		}

		selections := make(map[uuid.UUID]domain.ShippingOption, len(req.ShippingSelections))
		for _, sel := range req.ShippingSelections {
			selections[uuid.MustParse(sel.StoreID)] = domain.ShippingOption{
				ID:          sel.Option.ID,
				Carrier:     sel.Option.Carrier,
				Service:     sel.Option.Service,
				Price:       sel.Option.Price,
				DeliveryMin: sel.Option.DeliveryMin,
				DeliveryMax: sel.Option.DeliveryMax,
			}
		}

		purchase, err := checkoutSvc.CreatePurchase(c.Request.Context(), user, service.CheckoutRequest{
			AddressID:        uuid.MustParse(req.AddressID),
			PaymentMethod:    domain.PaymentMethod(req.PaymentMethod),
			Installments:     req.Installments,
			SelectedShipping: selections,
		})
		if err != nil {
			switch typed := err.(type) {
			case *errors.ErrIncompleteShippingSelection:
				c.JSON(http.StatusUnprocessableEntity, gin.H{
					"error":          "incomplete shipping selection",
					"missing_stores": typed.MissingStores,
				})
			case *errors.ErrValidation:
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": typed.Error(), "fields": typed.Fields})
			case *errors.ErrNotFound:
				c.JSON(http.StatusNotFound, gin.H{"error": typed.Error()})
			case *errors.ErrConflict:
				// Cart changed under the buyer; refresh, don't resubmit
				c.JSON(http.StatusConflict, gin.H{"error": typed.Error()})
			case *errors.ErrUpstream:
				// The purchase exists but has no charge yet; the buyer
				// retries the charge without re-creating the purchase
				if purchase != nil {
					storeIdempotencyKey(c, repos, logger, idemKey, requestHash, user.ID, purchase.ID)
					resp := toPurchaseResponse(purchase)
					resp.ChargePending = true
					c.JSON(http.StatusCreated, resp)
					return
				}
				c.JSON(http.StatusBadGateway, gin.H{"error": "payment processor unavailable, try again"})
			default:
				logger.Error("Checkout failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
			return
		}

		storeIdempotencyKey(c, repos, logger, idemKey, requestHash, user.ID, purchase.ID)
		c.JSON(http.StatusCreated, toPurchaseResponse(purchase))
	}
}

func storeIdempotencyKey(c *gin.Context, repos *repository.Repositories, logger *zap.Logger, key, requestHash string, buyerID, purchaseID uuid.UUID) {
	if key == "" {
		return
	}
	err := repos.IdempotencyKey.Create(c.Request.Context(), &domain.IdempotencyKey{
		Key:         key,
		BuyerID:     buyerID,
		PurchaseID:  purchaseID,
		RequestHash: requestHash,
	})
	if err != nil {
		logger.Warn("Failed to store idempotency key", zap.Error(err))
	}
}

// HandleObtainCharge handles POST /v1/checkout/:id/charge, the resumable
// retry point when the processor was unreachable during checkout.
func HandleObtainCharge(cfg *config.Config, repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	gateway := payment.NewClient(cfg.Payment.BaseURL, cfg.Payment.APIKey, logger)
	checkoutSvc := service.NewCheckoutService(repos, gateway, logger)

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

		purchase, err := checkoutSvc.ObtainCharge(c.Request.Context(), user, purchaseID)
		if err != nil {
			switch typed := err.(type) {
			case *errors.ErrNotFound:
				c.JSON(http.StatusNotFound, gin.H{"error": "purchase not found"})
			case *errors.ErrValidation:
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": typed.Error()})
			case *errors.ErrUpstream:
				c.JSON(http.StatusBadGateway, gin.H{"error": "payment processor unavailable, try again"})
			default:
				logger.Error("Charge retry failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
			return
		}

		c.JSON(http.StatusOK, toPurchaseResponse(purchase))
	}
}

// HandleCheckPayment handles POST /v1/purchases/:id/payment-check. The app
// polls this after showing the PIX code; a processor-confirmed payment
// moves the purchase and all its sales to paid together.
func HandleCheckPayment(cfg *config.Config, repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	gateway := payment.NewClient(cfg.Payment.BaseURL, cfg.Payment.APIKey, logger)
	checkoutSvc := service.NewCheckoutService(repos, gateway, logger)

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

		purchase, err := checkoutSvc.CheckPayment(c.Request.Context(), user, purchaseID)
		if err != nil {
			switch typed := err.(type) {
			case *errors.ErrNotFound:
				c.JSON(http.StatusNotFound, gin.H{"error": "purchase not found"})
			case *errors.ErrValidation:
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": typed.Error()})
			case *errors.ErrUpstream:
				c.JSON(http.StatusBadGateway, gin.H{"error": "payment processor unavailable, try again"})
			default:
				logger.Error("Payment check failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
			return
		}

		c.JSON(http.StatusOK, toPurchaseResponse(purchase))
	}
}

// HandleCancelPurchase handles POST /v1/purchases/:id/cancel
func HandleCancelPurchase(cfg *config.Config, repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	gateway := payment.NewClient(cfg.Payment.BaseURL, cfg.Payment.APIKey, logger)
	checkoutSvc := service.NewCheckoutService(repos, gateway, logger)

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

		if err := checkoutSvc.CancelPurchase(c.Request.Context(), user, purchaseID); err != nil {
			switch typed := err.(type) {
			case *errors.ErrNotFound:
				c.JSON(http.StatusNotFound, gin.H{"error": "purchase not found"})
			case *errors.ErrInvalidStateTransition:
				c.JSON(http.StatusConflict, gin.H{"error": typed.Error()})
			default:
				logger.Error("Cancel failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
			return
		}

		c.JSON(http.StatusOK, gin.H{"ok": true, "status": string(domain.PurchaseStatusCanceled)})
	}
}
