package handlers

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vitrineshop/marketapi/internal/config"
	"github.com/vitrineshop/marketapi/internal/repository"
	"github.com/vitrineshop/marketapi/internal/service"
	"github.com/vitrineshop/marketapi/pkg/signature"
)

// SignatureHeader carries the processor's HMAC-SHA256 signature of the raw
// body, optionally prefixed "sha256=".
const SignatureHeader = "X-Hub-Signature"

// HandlePaymentWebhook handles POST /webhooks/payment.
// Recipient (affiliation/KYC) events update the seller's affiliation
// account; every other event type is acknowledged without mutation so the
// processor stops retrying. Signature or structure failures are 401 and
// touch no state; storage failures are 500 so the processor retries.
func HandlePaymentWebhook(cfg *config.Config, repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	affiliationSvc := service.NewAffiliationService(repos, nil, logger)

	return func(c *gin.Context) {
		secret := strings.TrimSpace(cfg.PaymentWebhookSecret)
		if secret == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payment webhook not configured"})
			return
		}

		// The signature is computed over raw bytes
		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
			return
		}

		if !signature.Verify(bodyBytes, c.GetHeader(SignatureHeader), secret) {
			logger.Warn("Rejected webhook with invalid signature")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook signature"})
			return
		}

		event, err := service.ParseWebhookEvent(bodyBytes)
		if err != nil {
			// Malformed after a valid signature; never partially process
			logger.Warn("Rejected malformed webhook payload", zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "malformed webhook payload"})
			return
		}

		result, err := affiliationSvc.HandleWebhookEvent(c.Request.Context(), event, time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process webhook"})
			return
		}

		switch result {
		case service.WebhookResultIgnored:
			c.JSON(http.StatusOK, gin.H{"ok": true, "status": "ignored", "type": event.Type})
		case service.WebhookResultUnknownAccount:
			c.JSON(http.StatusOK, gin.H{"ok": true, "status": "not_found", "external_id": event.ExternalID})
		default:
			c.JSON(http.StatusOK, gin.H{"ok": true, "status": "updated", "external_id": event.ExternalID})
		}
	}
}
