package postgres

import (
	"database/sql"

	"go.uber.org/zap"

	"github.com/vitrineshop/marketapi/internal/repository"
)

// NewRepositories creates a new set of repositories
func NewRepositories(db *sql.DB, logger *zap.Logger) *repository.Repositories {
	return &repository.Repositories{
		User:           NewUserRepository(db, logger),
		Address:        NewAddressRepository(db, logger),
		Cart:           NewCartRepository(db, logger),
		Purchase:       NewPurchaseRepository(db, logger),
		StoreSale:      NewStoreSaleRepository(db, logger),
		Affiliation:    NewAffiliationRepository(db, logger),
		IdempotencyKey: NewIdempotencyKeyRepository(db, logger),
	}
}
