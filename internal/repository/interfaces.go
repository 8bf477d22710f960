package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vitrineshop/marketapi/internal/domain"
)

// UserRepository defines user data access methods
type UserRepository interface {
	GetByAPIToken(ctx context.Context, token string) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
}

// AddressRepository defines address data access methods
type AddressRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Address, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Address, error)
	Create(ctx context.Context, address *domain.Address) error
}

// CartRepository defines cart line data access methods. Consumed lines
// (purchase_id set) are excluded from all reads.
type CartRepository interface {
	ListActiveByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.CartLine, error)
	AddLine(ctx context.Context, line *domain.CartLine) error
	UpdateQuantity(ctx context.Context, buyerID, lineID uuid.UUID, quantity int) error
}

// PurchaseRepository defines purchase data access methods
type PurchaseRepository interface {
	// CreateWithSales creates the purchase, marks the cart lines as consumed
	// and inserts the sale rows in one transaction. Returns ErrConflict if
	// any cart line was already consumed by another purchase.
	CreateWithSales(ctx context.Context, purchase *domain.Purchase, sales []*domain.StoreSale, lineIDs []uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Purchase, error)
	ListByBuyerID(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]*domain.Purchase, error)
	// UpdateStatus transitions the purchase and all its sales in one
	// transaction so readers never observe a partial-status window.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PurchaseStatus) error
	SetExternalOrder(ctx context.Context, id uuid.UUID, externalOrderID string, pixQRCode *string, pixExpiresAt *time.Time) error
}

// StoreSaleRepository defines per-store sale data access methods
type StoreSaleRepository interface {
	GetByPurchaseID(ctx context.Context, purchaseID uuid.UUID) ([]*domain.StoreSale, error)
	ListByStoreID(ctx context.Context, storeID uuid.UUID, limit, offset int) ([]*domain.StoreSale, error)
}

// AffiliationRepository defines affiliation account data access methods
type AffiliationRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.AffiliationAccount, error)
	GetByExternalID(ctx context.Context, externalID string) (*domain.AffiliationAccount, error)
	Create(ctx context.Context, account *domain.AffiliationAccount) error
	// ApplyWebhookUpdate sets status, affiliation link (when provided) and the
	// last-webhook timestamp for the account matched by external id. Keyed on
	// external id so event replays are absorbed idempotently.
	ApplyWebhookUpdate(ctx context.Context, externalID string, status domain.AffiliationStatus, affiliationURL *string, receivedAt time.Time) error
}

// IdempotencyKeyRepository defines idempotency key data access methods
type IdempotencyKeyRepository interface {
	GetByKey(ctx context.Context, key string) (*domain.IdempotencyKey, error)
	Create(ctx context.Context, key *domain.IdempotencyKey) error
}

// Repositories aggregates all repositories
type Repositories struct {
	User           UserRepository
	Address        AddressRepository
	Cart           CartRepository
	Purchase       PurchaseRepository
	StoreSale      StoreSaleRepository
	Affiliation    AffiliationRepository
	IdempotencyKey IdempotencyKeyRepository
}
