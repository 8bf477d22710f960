// Package payment is the HTTP client for the payment processor (orders,
// PIX charges and seller recipient onboarding).
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vitrineshop/marketapi/internal/domain"
)

// Client calls the payment processor API with a service API key
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a payment processor HTTP client
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// OrderRequest describes the charge to create for a purchase
type OrderRequest struct {
	ReferenceID   string               `json:"reference_id"` // our purchase id
	Amount        int64                `json:"amount"`       // minor units, products + shipping
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	Installments  int                  `json:"installments,omitempty"`
	BuyerName     string               `json:"buyer_name"`
	BuyerEmail    string               `json:"buyer_email"`
	BuyerPhone    string               `json:"buyer_phone"`
	Address       AddressPayload       `json:"address"`
}

// AddressPayload is the processor's address shape
type AddressPayload struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"zip_code"`
}

// Order is the processor's charge/order object
type Order struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	PixQRCode    string     `json:"pix_qr_code,omitempty"`
	PixExpiresAt *time.Time `json:"pix_expires_at,omitempty"`
}

// RecipientRequest carries the seller registration data submitted for KYC
type RecipientRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	DocumentType   string `json:"document_type"` // cpf or cnpj
	DocumentNumber string `json:"document_number"`
	BankCode       string `json:"bank_code"`
	BankAgency     string `json:"bank_agency"`
	BankAccount    string `json:"bank_account"`
}

// Recipient is the processor's payable seller account
type Recipient struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	AffiliationURL string `json:"affiliation_url,omitempty"`
}

// CreateOrder creates a charge for a purchase. For PIX/boleto the response
// carries the redeemable code and its expiry.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if c.baseURL == "" || c.apiKey == "" {
		return nil, fmt.Errorf("payment client not configured: base URL and API key required")
	}

	var order Order
	if err := c.post(ctx, "/orders", req, &order); err != nil {
		c.logger.Warn("Payment order request failed", zap.Error(err), zap.String("reference_id", req.ReferenceID))
		return nil, err
	}
	if order.ID == "" {
		return nil, fmt.Errorf("payment processor returned order without id")
	}

	return &order, nil
}

// CreateRecipient submits seller registration data for KYC and returns the
// recipient reference that tracks the affiliation from then on.
func (c *Client) CreateRecipient(ctx context.Context, req RecipientRequest) (*Recipient, error) {
	if c.baseURL == "" || c.apiKey == "" {
		return nil, fmt.Errorf("payment client not configured: base URL and API key required")
	}

	var recipient Recipient
	if err := c.post(ctx, "/recipients", req, &recipient); err != nil {
		c.logger.Warn("Payment recipient request failed", zap.Error(err))
		return nil, err
	}
	if recipient.ID == "" {
		return nil, fmt.Errorf("payment processor returned recipient without id")
	}

	return &recipient, nil
}

// GetOrder fetches the current state of a charge. Used by the payment-check
// poll to learn whether the buyer has paid.
func (c *Client) GetOrder(ctx context.Context, id string) (*Order, error) {
	if c.baseURL == "" || c.apiKey == "" {
		return nil, fmt.Errorf("payment client not configured: base URL and API key required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/orders/"+id, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Payment order lookup failed", zap.Error(err), zap.String("order_id", id))
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("payment processor returned %d: %s", resp.StatusCode, truncate(respBody, 512))
	}

	var order Order
	if err := json.Unmarshal(respBody, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("payment processor returned %d: %s", resp.StatusCode, truncate(respBody, 512))
	}

	return json.Unmarshal(respBody, out)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
