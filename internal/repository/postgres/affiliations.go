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

type affiliationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAffiliationRepository creates a new affiliation account repository
func NewAffiliationRepository(db *sql.DB, logger *zap.Logger) *affiliationRepository {
	return &affiliationRepository{
		db:     db,
		logger: logger,
	}
}

const affiliationColumns = `id, user_id, external_id, status, affiliation_url, last_webhook_at, created_at, updated_at`

func scanAffiliation(row interface{ Scan(...interface{}) error }) (*domain.AffiliationAccount, error) {
	var account domain.AffiliationAccount
	var affiliationURL sql.NullString
	var lastWebhookAt sql.NullTime

	if err := row.Scan(
		&account.ID,
		&account.UserID,
		&account.ExternalID,
		&account.Status,
		&affiliationURL,
		&lastWebhookAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if affiliationURL.Valid {
		account.AffiliationURL = &affiliationURL.String
	}
	if lastWebhookAt.Valid {
		account.LastWebhookAt = &lastWebhookAt.Time
	}

	return &account, nil
}

func (r *affiliationRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.AffiliationAccount, error) {
	query := `
		SELECT ` + affiliationColumns + `
		FROM affiliation_accounts
		WHERE user_id = $1
	`

	account, err := scanAffiliation(r.db.QueryRowContext(ctx, query, userID))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "affiliation account", ID: userID.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get affiliation account by user", zap.Error(err))
		return nil, err
	}

	return account, nil
}

func (r *affiliationRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.AffiliationAccount, error) {
	query := `
		SELECT ` + affiliationColumns + `
		FROM affiliation_accounts
		WHERE external_id = $1
	`

	account, err := scanAffiliation(r.db.QueryRowContext(ctx, query, externalID))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "affiliation account", ID: externalID}
	}
	if err != nil {
		r.logger.Error("Failed to get affiliation account by external id", zap.Error(err))
		return nil, err
	}

	return account, nil
}

func (r *affiliationRepository) Create(ctx context.Context, account *domain.AffiliationAccount) error {
	query := `
		INSERT INTO affiliation_accounts (id, user_id, external_id, status, affiliation_url, last_webhook_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	now := time.Now()
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	if account.UpdatedAt.IsZero() {
		account.UpdatedAt = now
	}

	_, err := r.db.ExecContext(ctx, query,
		account.ID,
		account.UserID,
		account.ExternalID,
		account.Status,
		account.AffiliationURL,
		account.LastWebhookAt,
		account.CreatedAt,
		account.UpdatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to create affiliation account", zap.Error(err))
		return err
	}

	return nil
}

// ApplyWebhookUpdate updates the account matched by external id. The update
// is absorbed idempotently on replay: setting the same status twice leaves
// the row in the same state. The affiliation link is only overwritten when
// the event carries one.
func (r *affiliationRepository) ApplyWebhookUpdate(ctx context.Context, externalID string, status domain.AffiliationStatus, affiliationURL *string, receivedAt time.Time) error {
	query := `
		UPDATE affiliation_accounts
		SET status = $1,
			affiliation_url = COALESCE($2, affiliation_url),
			last_webhook_at = $3,
			updated_at = $4
		WHERE external_id = $5
	`

	result, err := r.db.ExecContext(ctx, query, status, affiliationURL, receivedAt, time.Now(), externalID)
	if err != nil {
		r.logger.Error("Failed to apply webhook update", zap.Error(err))
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &errors.ErrNotFound{Resource: "affiliation account", ID: externalID}
	}

	return nil
}
