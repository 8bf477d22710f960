// Package shipping is the HTTP client for the shipping rate aggregator.
package shipping

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

// Client calls the shipping aggregator API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a shipping aggregator HTTP client
func NewClient(baseURL, token string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// Package describes one store's shipment for a quote request
type Package struct {
	WeightGrams   int   `json:"weight_grams"`
	LengthCm      int   `json:"length_cm"`
	HeightCm      int   `json:"height_cm"`
	WidthCm       int   `json:"width_cm"`
	DeclaredValue int64 `json:"declared_value"` // minor units
}

type calculateRequest struct {
	FromPostalCode string  `json:"from_postal_code"`
	ToPostalCode   string  `json:"to_postal_code"`
	Package        Package `json:"package"`
}

type rateResponse struct {
	ID              string `json:"id"`
	Carrier         string `json:"carrier"`
	Service         string `json:"service"`
	Price           int64  `json:"price"`
	DeliveryMinDays int    `json:"delivery_min_days"`
	DeliveryMaxDays int    `json:"delivery_max_days"`
	Error           string `json:"error,omitempty"`
}

// Calculate requests rate options for one package. Options the aggregator
// flags with a per-carrier error are dropped; an empty result is not an
// error here, the caller decides how to surface it.
func (c *Client) Calculate(ctx context.Context, fromPostal, toPostal string, pkg Package) ([]domain.ShippingOption, error) {
	if c.baseURL == "" || c.token == "" {
		return nil, fmt.Errorf("shipping client not configured: base URL and token required")
	}

	body, err := json.Marshal(calculateRequest{
		FromPostalCode: fromPostal,
		ToPostalCode:   toPostal,
		Package:        pkg,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/shipment/calculate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Shipping calculate request failed", zap.Error(err), zap.String("to", toPostal))
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("shipping aggregator returned %d: %s", resp.StatusCode, truncate(respBody, 512))
	}

	var rates []rateResponse
	if err := json.Unmarshal(respBody, &rates); err != nil {
		return nil, err
	}

	options := make([]domain.ShippingOption, 0, len(rates))
	for _, rate := range rates {
		if rate.Error != "" {
			c.logger.Debug("Carrier returned rate error",
				zap.String("carrier", rate.Carrier),
				zap.String("error", rate.Error),
			)
			continue
		}
		options = append(options, domain.ShippingOption{
			ID:          rate.ID,
			Carrier:     rate.Carrier,
			Service:     rate.Service,
			Price:       rate.Price,
			DeliveryMin: rate.DeliveryMinDays,
			DeliveryMax: rate.DeliveryMaxDays,
		})
	}

	return options, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
