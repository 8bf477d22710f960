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

type addressRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAddressRepository creates a new address repository
func NewAddressRepository(db *sql.DB, logger *zap.Logger) *addressRepository {
	return &addressRepository{
		db:     db,
		logger: logger,
	}
}

func (r *addressRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Address, error) {
	query := `
		SELECT id, user_id, street, number, neighborhood, city, state, postal_code, complement, created_at, updated_at
		FROM addresses
		WHERE id = $1
	`

	var address domain.Address
	var complement sql.NullString

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&address.ID,
		&address.UserID,
		&address.Street,
		&address.Number,
		&address.Neighborhood,
		&address.City,
		&address.State,
		&address.PostalCode,
		&complement,
		&address.CreatedAt,
		&address.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "address", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get address", zap.Error(err))
		return nil, err
	}

	if complement.Valid {
		address.Complement = &complement.String
	}

	return &address, nil
}

func (r *addressRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Address, error) {
	query := `
		SELECT id, user_id, street, number, neighborhood, city, state, postal_code, complement, created_at, updated_at
		FROM addresses
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to list addresses", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var addresses []*domain.Address
	for rows.Next() {
		var address domain.Address
		var complement sql.NullString
		if err := rows.Scan(
			&address.ID,
			&address.UserID,
			&address.Street,
			&address.Number,
			&address.Neighborhood,
			&address.City,
			&address.State,
			&address.PostalCode,
			&complement,
			&address.CreatedAt,
			&address.UpdatedAt,
		); err != nil {
			r.logger.Error("Failed to scan address", zap.Error(err))
			return nil, err
		}
		if complement.Valid {
			address.Complement = &complement.String
		}
		addresses = append(addresses, &address)
	}

	return addresses, rows.Err()
}

func (r *addressRepository) Create(ctx context.Context, address *domain.Address) error {
	query := `
		INSERT INTO addresses (id, user_id, street, number, neighborhood, city, state, postal_code, complement, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	now := time.Now()
	if address.ID == uuid.Nil {
		address.ID = uuid.New()
	}
	if address.CreatedAt.IsZero() {
		address.CreatedAt = now
	}
	if address.UpdatedAt.IsZero() {
		address.UpdatedAt = now
	}

	_, err := r.db.ExecContext(ctx, query,
		address.ID,
		address.UserID,
		address.Street,
		address.Number,
		address.Neighborhood,
		address.City,
		address.State,
		address.PostalCode,
		address.Complement,
		address.CreatedAt,
		address.UpdatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to create address", zap.Error(err))
		return err
	}

	return nil
}
