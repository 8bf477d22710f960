package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitrineshop/marketapi/internal/domain"
	"github.com/vitrineshop/marketapi/internal/payment"
	"github.com/vitrineshop/marketapi/internal/repository"
	"github.com/vitrineshop/marketapi/pkg/errors"
)

// RecipientGateway is the processor operation seller registration depends on
type RecipientGateway interface {
	CreateRecipient(ctx context.Context, req payment.RecipientRequest) (*payment.Recipient, error)
}

// WebhookEvent is a decoded, validated processor event
type WebhookEvent struct {
	Type           string
	ExternalID     string
	ExternalStatus string
	AffiliationURL *string
}

// IsRecipientEvent reports whether this event is of the recipient /
// affiliation-update kind. Other event types are acknowledged but ignored.
func (e *WebhookEvent) IsRecipientEvent() bool {
	return strings.HasPrefix(e.Type, "recipient.")
}

type webhookEventBody struct {
	Type string `json:"type"`
	Data struct {
		ID             string  `json:"id"`
		Status         string  `json:"status"`
		AffiliationURL *string `json:"affiliation_url"`
	} `json:"data"`
}

// ParseWebhookEvent decodes a raw webhook payload into a validated event.
// A payload without a type or a data.id is malformed; nothing downstream
// ever touches an unchecked dynamic object.
func ParseWebhookEvent(raw []byte) (*WebhookEvent, error) {
	var body webhookEventBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, &errors.ErrValidation{Message: "invalid webhook payload"}
	}
	if strings.TrimSpace(body.Type) == "" || strings.TrimSpace(body.Data.ID) == "" {
		return nil, &errors.ErrValidation{Message: "webhook payload missing type or data.id"}
	}

	return &WebhookEvent{
		Type:           body.Type,
		ExternalID:     body.Data.ID,
		ExternalStatus: body.Data.Status,
		AffiliationURL: body.Data.AffiliationURL,
	}, nil
}

// WebhookResult classifies the outcome of processing one webhook event
type WebhookResult int

const (
	// WebhookResultUpdated - a recipient event was applied to the account
	WebhookResultUpdated WebhookResult = iota
	// WebhookResultIgnored - event type is not processed; acknowledged anyway
	WebhookResultIgnored
	// WebhookResultUnknownAccount - no account matches the external id;
	// logged and acknowledged so the sender does not retry forever
	WebhookResultUnknownAccount
)

// GateResult is the read-only affiliation gate consulted by listing/checkout
type GateResult struct {
	HasAccount     bool    `json:"has_account"`
	CanSell        bool    `json:"can_sell"`
	NeedsKyc       bool    `json:"needs_kyc"`
	AffiliationURL *string `json:"affiliation_url,omitempty"`
}

// RegistrationRequest carries seller KYC intake data
type RegistrationRequest struct {
	DocumentType   string
	DocumentNumber string
	BankCode       string
	BankAgency     string
	BankAccount    string
}

type affiliationService struct {
	repos   *repository.Repositories
	gateway RecipientGateway
	logger  *zap.Logger
}

// NewAffiliationService creates a new affiliation service
func NewAffiliationService(repos *repository.Repositories, gateway RecipientGateway, logger *zap.Logger) *affiliationService {
	return &affiliationService{
		repos:   repos,
		gateway: gateway,
		logger:  logger,
	}
}

// HandleWebhookEvent applies one verified, parsed processor event to the
// affiliation store. Replaying the same event is absorbed idempotently.
// A storage failure is returned as an error so the HTTP layer answers 5xx
// and the sender retries.
func (s *affiliationService) HandleWebhookEvent(ctx context.Context, event *WebhookEvent, receivedAt time.Time) (WebhookResult, error) {
	if !event.IsRecipientEvent() {
		s.logger.Debug("Ignoring unsupported webhook event", zap.String("type", event.Type))
		return WebhookResultIgnored, nil
	}

	status := domain.AffiliationStatusFromExternal(event.ExternalStatus)
	err := s.repos.Affiliation.ApplyWebhookUpdate(ctx, event.ExternalID, status, event.AffiliationURL, receivedAt)
	if err != nil {
		if _, ok := err.(*errors.ErrNotFound); ok {
			// The sender still gets a 2xx; retrying would never find the
			// account either, and retry storms help nobody.
			s.logger.Error("Webhook for unknown affiliation account",
				zap.String("external_id", event.ExternalID),
				zap.String("type", event.Type),
			)
			return WebhookResultUnknownAccount, nil
		}
		s.logger.Error("Failed to apply affiliation webhook", zap.Error(err))
		return 0, err
	}

	s.logger.Info("Affiliation status updated",
		zap.String("external_id", event.ExternalID),
		zap.String("status", string(status)),
	)
	return WebhookResultUpdated, nil
}

// CanSell derives the affiliation gate from the current account status.
// Read-only; the webhook processor is the only writer.
func (s *affiliationService) CanSell(ctx context.Context, userID uuid.UUID) (GateResult, error) {
	account, err := s.repos.Affiliation.GetByUserID(ctx, userID)
	if err != nil {
		if _, ok := err.(*errors.ErrNotFound); ok {
			return GateResult{}, nil
		}
		return GateResult{}, err
	}

	result := GateResult{
		HasAccount:     true,
		AffiliationURL: account.AffiliationURL,
	}
	switch account.Status {
	case domain.AffiliationStatusApproved:
		result.CanSell = true
	case domain.AffiliationStatusPending:
		result.NeedsKyc = true
	}

	return result, nil
}

// RegisterSeller submits registration data to the processor's recipient
// API and stores the resulting account as pending. A user with an existing
// account gets it back unchanged.
func (s *affiliationService) RegisterSeller(ctx context.Context, user *domain.User, req RegistrationRequest) (*domain.AffiliationAccount, error) {
	if req.DocumentType != "cpf" && req.DocumentType != "cnpj" {
		return nil, &errors.ErrValidation{Message: "document type must be cpf or cnpj", Fields: map[string]string{"document_type": req.DocumentType}}
	}
	if strings.TrimSpace(req.DocumentNumber) == "" {
		return nil, &errors.ErrValidation{Message: "document number is required"}
	}

	existing, err := s.repos.Affiliation.GetByUserID(ctx, user.ID)
	if err == nil {
		return existing, nil
	}
	if _, ok := err.(*errors.ErrNotFound); !ok {
		return nil, err
	}

	recipient, err := s.gateway.CreateRecipient(ctx, payment.RecipientRequest{
		Name:           user.Name,
		Email:          user.Email,
		DocumentType:   req.DocumentType,
		DocumentNumber: req.DocumentNumber,
		BankCode:       req.BankCode,
		BankAgency:     req.BankAgency,
		BankAccount:    req.BankAccount,
	})
	if err != nil {
		return nil, &errors.ErrUpstream{Service: "payment processor", Err: err}
	}

	account := &domain.AffiliationAccount{
		UserID:     user.ID,
		ExternalID: recipient.ID,
		Status:     domain.AffiliationStatusFromExternal(recipient.Status),
	}
	if recipient.AffiliationURL != "" {
		account.AffiliationURL = &recipient.AffiliationURL
	}

	if err := s.repos.Affiliation.Create(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("Seller registered for affiliation",
		zap.String("user_id", user.ID.String()),
		zap.String("external_id", recipient.ID),
	)
	return account, nil
}
