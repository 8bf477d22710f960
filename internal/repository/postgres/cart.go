package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitrineshop/marketapi/internal/domain"
	"github.com/vitrineshop/marketapi/pkg/errors"
)

type cartRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCartRepository creates a new cart repository
func NewCartRepository(db *sql.DB, logger *zap.Logger) *cartRepository {
	return &cartRepository{
		db:     db,
		logger: logger,
	}
}

const cartLineColumns = `id, buyer_id, product_id, store_id, store_name, unit_price, quantity, available, stock, purchase_id, created_at, updated_at`

func scanCartLine(rows interface{ Scan(...interface{}) error }) (*domain.CartLine, error) {
	var line domain.CartLine
	var purchaseID uuid.NullUUID
	if err := rows.Scan(
		&line.ID,
		&line.BuyerID,
		&line.ProductID,
		&line.StoreID,
		&line.StoreName,
		&line.UnitPrice,
		&line.Quantity,
		&line.Available,
		&line.Stock,
		&purchaseID,
		&line.CreatedAt,
		&line.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if purchaseID.Valid {
		line.PurchaseID = &purchaseID.UUID
	}
	return &line, nil
}

func (r *cartRepository) ListActiveByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.CartLine, error) {
	query := `
		SELECT ` + cartLineColumns + `
		FROM cart_lines
		WHERE buyer_id = $1 AND purchase_id IS NULL
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, buyerID)
	if err != nil {
		r.logger.Error("Failed to list cart lines", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var lines []*domain.CartLine
	for rows.Next() {
		line, err := scanCartLine(rows)
		if err != nil {
			r.logger.Error("Failed to scan cart line", zap.Error(err))
			return nil, err
		}
		lines = append(lines, line)
	}

	return lines, rows.Err()
}

func (r *cartRepository) AddLine(ctx context.Context, line *domain.CartLine) error {
	query := `
		INSERT INTO cart_lines (id, buyer_id, product_id, store_id, store_name, unit_price, quantity, available, stock, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	now := time.Now()
	if line.ID == uuid.Nil {
		line.ID = uuid.New()
	}
	if line.CreatedAt.IsZero() {
		line.CreatedAt = now
	}
	if line.UpdatedAt.IsZero() {
		line.UpdatedAt = now
	}

	_, err := r.db.ExecContext(ctx, query,
		line.ID,
		line.BuyerID,
		line.ProductID,
		line.StoreID,
		line.StoreName,
		line.UnitPrice,
		line.Quantity,
		line.Available,
		line.Stock,
		line.CreatedAt,
		line.UpdatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to add cart line", zap.Error(err))
		return err
	}

	return nil
}

func (r *cartRepository) UpdateQuantity(ctx context.Context, buyerID, lineID uuid.UUID, quantity int) error {
	// Consumed lines are immutable
	query := `
		UPDATE cart_lines
		SET quantity = $1, updated_at = $2
		WHERE id = $3 AND buyer_id = $4 AND purchase_id IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, quantity, time.Now(), lineID, buyerID)
	if err != nil {
		r.logger.Error("Failed to update cart line quantity", zap.Error(err))
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &errors.ErrNotFound{Resource: "cart line", ID: lineID.String()}
	}

	return nil
}
