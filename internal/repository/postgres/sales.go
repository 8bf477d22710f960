package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitrineshop/marketapi/internal/domain"
)

type storeSaleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStoreSaleRepository creates a new store sale repository
func NewStoreSaleRepository(db *sql.DB, logger *zap.Logger) *storeSaleRepository {
	return &storeSaleRepository{
		db:     db,
		logger: logger,
	}
}

const storeSaleColumns = `id, purchase_id, store_id, buyer_id, product_id, quantity, amount,
		payment_method, installments, status, created_at, updated_at`

func scanStoreSale(row interface{ Scan(...interface{}) error }) (*domain.StoreSale, error) {
	var sale domain.StoreSale
	if err := row.Scan(
		&sale.ID,
		&sale.PurchaseID,
		&sale.StoreID,
		&sale.BuyerID,
		&sale.ProductID,
		&sale.Quantity,
		&sale.Amount,
		&sale.PaymentMethod,
		&sale.Installments,
		&sale.Status,
		&sale.CreatedAt,
		&sale.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *storeSaleRepository) GetByPurchaseID(ctx context.Context, purchaseID uuid.UUID) ([]*domain.StoreSale, error) {
	query := `
		SELECT ` + storeSaleColumns + `
		FROM store_sales
		WHERE purchase_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, purchaseID)
	if err != nil {
		r.logger.Error("Failed to get store sales", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var sales []*domain.StoreSale
	for rows.Next() {
		sale, err := scanStoreSale(rows)
		if err != nil {
			r.logger.Error("Failed to scan store sale", zap.Error(err))
			return nil, err
		}
		sales = append(sales, sale)
	}

	return sales, rows.Err()
}

func (r *storeSaleRepository) ListByStoreID(ctx context.Context, storeID uuid.UUID, limit, offset int) ([]*domain.StoreSale, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT ` + storeSaleColumns + `
		FROM store_sales
		WHERE store_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, storeID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list store sales", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var sales []*domain.StoreSale
	for rows.Next() {
		sale, err := scanStoreSale(rows)
		if err != nil {
			r.logger.Error("Failed to scan store sale", zap.Error(err))
			return nil, err
		}
		sales = append(sales, sale)
	}

	return sales, rows.Err()
}
