package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vitrineshop/marketapi/internal/domain"
	"github.com/vitrineshop/marketapi/internal/repository"
)

type fakeIdempotencyRepo struct {
	keys map[string]*domain.IdempotencyKey
}

func (r *fakeIdempotencyRepo) GetByKey(_ context.Context, key string) (*domain.IdempotencyKey, error) {
	return r.keys[key], nil
}

func (r *fakeIdempotencyRepo) Create(_ context.Context, key *domain.IdempotencyKey) error {
	r.keys[key.Key] = key
	return nil
}

func idempotencyTestRouter(repo *fakeIdempotencyRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	repos := &repository.Repositories{IdempotencyKey: repo}

	r := gin.New()
	r.Use(IdempotencyMiddleware(repos, zap.NewNop()))
	r.POST("/checkout", func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		c.JSON(http.StatusOK, gin.H{"body_len": len(body)})
	})
	return r
}

func postWithKey(r *gin.Engine, body, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_NoHeaderPassesThrough(t *testing.T) {
	r := idempotencyTestRouter(&fakeIdempotencyRepo{keys: map[string]*domain.IdempotencyKey{}})

	w := postWithKey(r, `{"a":1}`, "")

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIdempotency_BodyRestoredForHandler(t *testing.T) {
	r := idempotencyTestRouter(&fakeIdempotencyRepo{keys: map[string]*domain.IdempotencyKey{}})

	body := `{"address_id":"x"}`
	w := postWithKey(r, body, "key-1")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"body_len":18`)
}

func TestIdempotency_SameKeyDifferentPayloadConflicts(t *testing.T) {
	body := `{"address_id":"a"}`
	hash := sha256.Sum256([]byte(body))
	repo := &fakeIdempotencyRepo{keys: map[string]*domain.IdempotencyKey{
		"key-1": {Key: "key-1", BuyerID: uuid.New(), PurchaseID: uuid.New(), RequestHash: hex.EncodeToString(hash[:])},
	}}
	r := idempotencyTestRouter(repo)

	w := postWithKey(r, `{"address_id":"b"}`, "key-1")

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestIdempotency_SameKeySamePayloadReplays(t *testing.T) {
	body := `{"address_id":"a"}`
	hash := sha256.Sum256([]byte(body))
	purchaseID := uuid.New()
	repo := &fakeIdempotencyRepo{keys: map[string]*domain.IdempotencyKey{
		"key-1": {Key: "key-1", BuyerID: uuid.New(), PurchaseID: purchaseID, RequestHash: hex.EncodeToString(hash[:])},
	}}

	gin.SetMode(gin.TestMode)
	repos := &repository.Repositories{IdempotencyKey: repo}
	r := gin.New()
	r.Use(IdempotencyMiddleware(repos, zap.NewNop()))
	var gotID string
	var gotExisting bool
	r.POST("/checkout", func(c *gin.Context) {
		_, _, gotID, gotExisting = GetIdempotencyInfo(c)
		c.Status(http.StatusOK)
	})

	w := postWithKey(r, body, "key-1")

	assert.Equal(t, http.StatusOK, w.Code)
	require.True(t, gotExisting)
	assert.Equal(t, purchaseID.String(), gotID)
}

// Keys are buyer-scoped: another buyer's key must neither replay that
// buyer's purchase nor reveal that the key exists.
func TestIdempotency_ForeignKeyGivesNoReplay(t *testing.T) {
	body := `{"address_id":"a"}`
	hash := sha256.Sum256([]byte(body))
	ownerID := uuid.New()
	repo := &fakeIdempotencyRepo{keys: map[string]*domain.IdempotencyKey{
		"key-1": {Key: "key-1", BuyerID: ownerID, PurchaseID: uuid.New(), RequestHash: hex.EncodeToString(hash[:])},
	}}

	gin.SetMode(gin.TestMode)
	repos := &repository.Repositories{IdempotencyKey: repo}
	otherBuyer := &domain.User{ID: uuid.New(), IsActive: true}
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(UserContextKey, otherBuyer) })
	r.Use(IdempotencyMiddleware(repos, zap.NewNop()))
	var gotKey, gotID string
	var gotExisting bool
	r.POST("/checkout", func(c *gin.Context) {
		gotKey, _, gotID, gotExisting = GetIdempotencyInfo(c)
		c.Status(http.StatusOK)
	})

	// identical payload: no replay of the owner's purchase
	w := postWithKey(r, body, "key-1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, gotExisting)
	assert.Empty(t, gotID)
	assert.Empty(t, gotKey, "foreign key is never stored over the original")

	// different payload: no conflict oracle for the key's existence
	w = postWithKey(r, `{"address_id":"b"}`, "key-1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, gotExisting)
}

func TestIdempotency_OwnKeyStillReplays(t *testing.T) {
	body := `{"address_id":"a"}`
	hash := sha256.Sum256([]byte(body))
	buyer := &domain.User{ID: uuid.New(), IsActive: true}
	purchaseID := uuid.New()
	repo := &fakeIdempotencyRepo{keys: map[string]*domain.IdempotencyKey{
		"key-1": {Key: "key-1", BuyerID: buyer.ID, PurchaseID: purchaseID, RequestHash: hex.EncodeToString(hash[:])},
	}}

	gin.SetMode(gin.TestMode)
	repos := &repository.Repositories{IdempotencyKey: repo}
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(UserContextKey, buyer) })
	r.Use(IdempotencyMiddleware(repos, zap.NewNop()))
	var gotID string
	var gotExisting bool
	r.POST("/checkout", func(c *gin.Context) {
		_, _, gotID, gotExisting = GetIdempotencyInfo(c)
		c.Status(http.StatusOK)
	})

	w := postWithKey(r, body, "key-1")

	assert.Equal(t, http.StatusOK, w.Code)
	require.True(t, gotExisting)
	assert.Equal(t, purchaseID.String(), gotID)
}

func TestIdempotency_NewKeyExposedToHandler(t *testing.T) {
	repo := &fakeIdempotencyRepo{keys: map[string]*domain.IdempotencyKey{}}

	gin.SetMode(gin.TestMode)
	repos := &repository.Repositories{IdempotencyKey: repo}
	r := gin.New()
	r.Use(IdempotencyMiddleware(repos, zap.NewNop()))
	var gotKey, gotHash string
	var gotExisting bool
	r.POST("/checkout", func(c *gin.Context) {
		gotKey, gotHash, _, gotExisting = GetIdempotencyInfo(c)
		c.Status(http.StatusOK)
	})

	body := `{"address_id":"a"}`
	w := postWithKey(r, body, "key-new")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, gotExisting)
	assert.Equal(t, "key-new", gotKey)

	hash := sha256.Sum256([]byte(body))
	assert.Equal(t, hex.EncodeToString(hash[:]), gotHash)
}
