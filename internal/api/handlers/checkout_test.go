package handlers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/vitrineshop/marketapi/internal/api/middleware"
	"github.com/vitrineshop/marketapi/internal/config"
	"github.com/vitrineshop/marketapi/internal/domain"
	"github.com/vitrineshop/marketapi/internal/repository"
	"github.com/vitrineshop/marketapi/pkg/errors"
)

type fakePurchaseRepo struct {
	byID map[uuid.UUID]*domain.Purchase
}

func (r *fakePurchaseRepo) CreateWithSales(_ context.Context, purchase *domain.Purchase, sales []*domain.StoreSale, lineIDs []uuid.UUID) error {
	r.byID[purchase.ID] = purchase
	return nil
}

func (r *fakePurchaseRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Purchase, error) {
	if p, ok := r.byID[id]; ok {
		return p, nil
	}
	return nil, &errors.ErrNotFound{Resource: "purchase", ID: id.String()}
}

func (r *fakePurchaseRepo) ListByBuyerID(_ context.Context, buyerID uuid.UUID, limit, offset int) ([]*domain.Purchase, error) {
	return nil, nil
}

func (r *fakePurchaseRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.PurchaseStatus) error {
	return nil
}

func (r *fakePurchaseRepo) SetExternalOrder(_ context.Context, id uuid.UUID, externalOrderID string, pixQRCode *string, pixExpiresAt *time.Time) error {
	return nil
}

type fakeCartRepo struct{}

func (r *fakeCartRepo) ListActiveByBuyer(_ context.Context, buyerID uuid.UUID) ([]*domain.CartLine, error) {
	return nil, nil
}

func (r *fakeCartRepo) AddLine(_ context.Context, line *domain.CartLine) error { return nil }

func (r *fakeCartRepo) UpdateQuantity(_ context.Context, buyerID, lineID uuid.UUID, quantity int) error {
	return nil
}

type fakeIdemRepo struct {
	keys map[string]*domain.IdempotencyKey
}

func (r *fakeIdemRepo) GetByKey(_ context.Context, key string) (*domain.IdempotencyKey, error) {
	return r.keys[key], nil
}

func (r *fakeIdemRepo) Create(_ context.Context, key *domain.IdempotencyKey) error {
	if _, exists := r.keys[key.Key]; exists {
		return fmt.Errorf("duplicate key")
	}
	r.keys[key.Key] = key
	return nil
}

func pixPurchase(buyerID uuid.UUID) *domain.Purchase {
	qr := "pix-code-ana"
	external := "or_123abc"
	return &domain.Purchase{
		ID:              uuid.New(),
		BuyerID:         buyerID,
		ProductAmount:   20000,
		ShippingFee:     3500,
		PaymentMethod:   domain.PaymentMethodPix,
		AddressID:       uuid.New(),
		ExternalOrderID: &external,
		PixQRCode:       &qr,
		Status:          domain.PurchaseStatusWaitingPayment,
	}
}

func checkoutTestConfig() *config.Config {
	return &config.Config{
		Payment: config.PaymentConfig{BaseURL: "http://processor.local", APIKey: "key"},
	}
}

// Presenting another buyer's idempotency key with the identical payload must
// not hand over that buyer's purchase or its PIX payload.
func TestCheckout_ForeignIdempotencyKeyDoesNotReplay(t *testing.T) {
	gin.SetMode(gin.TestMode)

	anaID := uuid.New()
	anaPurchase := pixPurchase(anaID)

	body := fmt.Sprintf(
		`{"address_id":%q,"payment_method":"pix","shipping_selections":[{"store_id":%q,"option":{"id":"1","carrier":"Correios","price":1500}}]}`,
		uuid.New(), uuid.New(),
	)
	hash := sha256.Sum256([]byte(body))

	purchases := &fakePurchaseRepo{byID: map[uuid.UUID]*domain.Purchase{anaPurchase.ID: anaPurchase}}
	repos := &repository.Repositories{
		Purchase: purchases,
		Cart:     &fakeCartRepo{},
		IdempotencyKey: &fakeIdemRepo{keys: map[string]*domain.IdempotencyKey{
			"key-ana": {Key: "key-ana", BuyerID: anaID, PurchaseID: anaPurchase.ID, RequestHash: hex.EncodeToString(hash[:])},
		}},
	}

	otherBuyer := &domain.User{ID: uuid.New(), Name: "Bruno", IsActive: true}
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.UserContextKey, otherBuyer) })
	r.Use(middleware.IdempotencyMiddleware(repos, zap.NewNop()))
	r.POST("/checkout", HandleCheckout(checkoutTestConfig(), repos, zap.NewNop()))

	req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.IdempotencyKeyHeader, "key-ana")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// the request falls through to a normal checkout (empty cart here),
	// never to the other buyer's purchase
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.NotContains(t, w.Body.String(), anaPurchase.ID.String())
	assert.NotContains(t, w.Body.String(), "pix-code-ana")
}

// Even if a replay resolves to a purchase, one owned by another buyer is
// answered as not found.
func TestCheckout_ReplayOfForeignPurchaseIsNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)

	anaPurchase := pixPurchase(uuid.New())
	purchases := &fakePurchaseRepo{byID: map[uuid.UUID]*domain.Purchase{anaPurchase.ID: anaPurchase}}
	repos := &repository.Repositories{
		Purchase:       purchases,
		Cart:           &fakeCartRepo{},
		IdempotencyKey: &fakeIdemRepo{keys: map[string]*domain.IdempotencyKey{}},
	}

	otherBuyer := &domain.User{ID: uuid.New(), IsActive: true}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserContextKey, otherBuyer)
		c.Set("idempotency_existing_purchase_id", anaPurchase.ID.String())
	})
	r.POST("/checkout", HandleCheckout(checkoutTestConfig(), repos, zap.NewNop()))

	req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotContains(t, w.Body.String(), "pix-code-ana")
}

// The scoped lookup must not break a buyer replaying their own submission.
func TestCheckout_OwnKeyReplaysOwnPurchase(t *testing.T) {
	gin.SetMode(gin.TestMode)

	buyer := &domain.User{ID: uuid.New(), Name: "Ana", IsActive: true}
	purchase := pixPurchase(buyer.ID)

	body := `{"address_id":"a"}`
	hash := sha256.Sum256([]byte(body))
	purchases := &fakePurchaseRepo{byID: map[uuid.UUID]*domain.Purchase{purchase.ID: purchase}}
	repos := &repository.Repositories{
		Purchase: purchases,
		Cart:     &fakeCartRepo{},
		IdempotencyKey: &fakeIdemRepo{keys: map[string]*domain.IdempotencyKey{
			"key-1": {Key: "key-1", BuyerID: buyer.ID, PurchaseID: purchase.ID, RequestHash: hex.EncodeToString(hash[:])},
		}},
	}

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.UserContextKey, buyer) })
	r.Use(middleware.IdempotencyMiddleware(repos, zap.NewNop()))
	r.POST("/checkout", HandleCheckout(checkoutTestConfig(), repos, zap.NewNop()))

	req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.IdempotencyKeyHeader, "key-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), purchase.ID.String())
}
