package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/vitrineshop/marketapi/internal/domain"
	"github.com/vitrineshop/marketapi/pkg/errors"
)

type purchaseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPurchaseRepository creates a new purchase repository
func NewPurchaseRepository(db *sql.DB, logger *zap.Logger) *purchaseRepository {
	return &purchaseRepository{
		db:     db,
		logger: logger,
	}
}

// CreateWithSales creates the purchase, consumes the cart lines and inserts
// the sale rows in one transaction. The cart-line UPDATE is conditional on
// purchase_id IS NULL; a shortfall in affected rows means another purchase
// won the race, and the whole transaction rolls back with ErrConflict.
func (r *purchaseRepository) CreateWithSales(ctx context.Context, purchase *domain.Purchase, sales []*domain.StoreSale, lineIDs []uuid.UUID) error {
	now := time.Now()
	if purchase.ID == uuid.Nil {
		purchase.ID = uuid.New()
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = now
	}
	if purchase.UpdatedAt.IsZero() {
		purchase.UpdatedAt = now
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin purchase transaction", zap.Error(err))
		return err
	}
	defer tx.Rollback()

	insertPurchase := `
		INSERT INTO purchases (
			id, buyer_id, product_amount, shipping_fee, payment_method, installments,
			address_id, external_order_id, pix_qr_code, pix_expires_at, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	if _, err := tx.ExecContext(ctx, insertPurchase,
		purchase.ID,
		purchase.BuyerID,
		purchase.ProductAmount,
		purchase.ShippingFee,
		purchase.PaymentMethod,
		purchase.Installments,
		purchase.AddressID,
		purchase.ExternalOrderID,
		purchase.PixQRCode,
		purchase.PixExpiresAt,
		purchase.Status,
		purchase.CreatedAt,
		purchase.UpdatedAt,
	); err != nil {
		r.logger.Error("Failed to insert purchase", zap.Error(err))
		return err
	}

	// Concurrency gate: first writer wins on each line
	idStrings := make([]string, 0, len(lineIDs))
	for _, id := range lineIDs {
		idStrings = append(idStrings, id.String())
	}
	markLines := `
		UPDATE cart_lines
		SET purchase_id = $1, updated_at = $2
		WHERE id = ANY($3) AND purchase_id IS NULL
	`
	result, err := tx.ExecContext(ctx, markLines, purchase.ID, now, pq.Array(idStrings))
	if err != nil {
		r.logger.Error("Failed to mark cart lines", zap.Error(err))
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected != int64(len(lineIDs)) {
		r.logger.Warn("Cart lines already consumed by another purchase",
			zap.Int64("marked", affected),
			zap.Int("expected", len(lineIDs)),
		)
		return &errors.ErrConflict{Message: "one or more cart lines were already consumed by another purchase"}
	}

	insertSale := `
		INSERT INTO store_sales (
			id, purchase_id, store_id, buyer_id, product_id, quantity, amount,
			payment_method, installments, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	for _, sale := range sales {
		if sale.ID == uuid.Nil {
			sale.ID = uuid.New()
		}
		if sale.CreatedAt.IsZero() {
			sale.CreatedAt = now
		}
		if sale.UpdatedAt.IsZero() {
			sale.UpdatedAt = now
		}
		if _, err := tx.ExecContext(ctx, insertSale,
			sale.ID,
			sale.PurchaseID,
			sale.StoreID,
			sale.BuyerID,
			sale.ProductID,
			sale.Quantity,
			sale.Amount,
			sale.PaymentMethod,
			sale.Installments,
			sale.Status,
			sale.CreatedAt,
			sale.UpdatedAt,
		); err != nil {
			r.logger.Error("Failed to insert store sale", zap.Error(err))
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit purchase transaction", zap.Error(err))
		return err
	}

	return nil
}

const purchaseColumns = `id, buyer_id, product_amount, shipping_fee, payment_method, installments,
		address_id, external_order_id, pix_qr_code, pix_expires_at, status, created_at, updated_at`

func scanPurchase(row interface{ Scan(...interface{}) error }) (*domain.Purchase, error) {
	var purchase domain.Purchase
	var externalOrderID, pixQRCode sql.NullString
	var pixExpiresAt sql.NullTime

	if err := row.Scan(
		&purchase.ID,
		&purchase.BuyerID,
		&purchase.ProductAmount,
		&purchase.ShippingFee,
		&purchase.PaymentMethod,
		&purchase.Installments,
		&purchase.AddressID,
		&externalOrderID,
		&pixQRCode,
		&pixExpiresAt,
		&purchase.Status,
		&purchase.CreatedAt,
		&purchase.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if externalOrderID.Valid {
		purchase.ExternalOrderID = &externalOrderID.String
	}
	if pixQRCode.Valid {
		purchase.PixQRCode = &pixQRCode.String
	}
	if pixExpiresAt.Valid {
		purchase.PixExpiresAt = &pixExpiresAt.Time
	}

	return &purchase, nil
}

func (r *purchaseRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Purchase, error) {
	query := `
		SELECT ` + purchaseColumns + `
		FROM purchases
		WHERE id = $1
	`

	purchase, err := scanPurchase(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "purchase", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get purchase", zap.Error(err))
		return nil, err
	}

	return purchase, nil
}

func (r *purchaseRepository) ListByBuyerID(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]*domain.Purchase, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT ` + purchaseColumns + `
		FROM purchases
		WHERE buyer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, buyerID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list purchases", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var purchases []*domain.Purchase
	for rows.Next() {
		purchase, err := scanPurchase(rows)
		if err != nil {
			r.logger.Error("Failed to scan purchase", zap.Error(err))
			return nil, err
		}
		purchases = append(purchases, purchase)
	}

	return purchases, rows.Err()
}

// UpdateStatus transitions the purchase and every one of its sales in one
// transaction, keeping parent and children in lock-step for readers.
func (r *purchaseRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PurchaseStatus) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin status transaction", zap.Error(err))
		return err
	}
	defer tx.Rollback()

	now := time.Now()

	result, err := tx.ExecContext(ctx,
		`UPDATE purchases SET status = $1, updated_at = $2 WHERE id = $3`,
		status, now, id,
	)
	if err != nil {
		r.logger.Error("Failed to update purchase status", zap.Error(err))
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &errors.ErrNotFound{Resource: "purchase", ID: id.String()}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE store_sales SET status = $1, updated_at = $2 WHERE purchase_id = $3`,
		status, now, id,
	); err != nil {
		r.logger.Error("Failed to update store sale statuses", zap.Error(err))
		return err
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit status transaction", zap.Error(err))
		return err
	}

	return nil
}

func (r *purchaseRepository) SetExternalOrder(ctx context.Context, id uuid.UUID, externalOrderID string, pixQRCode *string, pixExpiresAt *time.Time) error {
	query := `
		UPDATE purchases
		SET external_order_id = $1, pix_qr_code = $2, pix_expires_at = $3, updated_at = $4
		WHERE id = $5
	`

	result, err := r.db.ExecContext(ctx, query, externalOrderID, pixQRCode, pixExpiresAt, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to set external order reference", zap.Error(err))
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &errors.ErrNotFound{Resource: "purchase", ID: id.String()}
	}

	return nil
}
