package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ansel/internal/domain/item"
)

// TokenCipher encrypts access tokens at rest
type TokenCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

const itemColumns = `id, user_id, external_id, access_token, institution_id, institution_name, institution_logo, created_at, updated_at`

// ItemRepository implements the item.Repository interface for PostgreSQL
type ItemRepository struct {
	db     conn
	cipher TokenCipher
}

// NewItemRepository creates a new PostgreSQL linked item repository
func NewItemRepository(db *DB, cipher TokenCipher) *ItemRepository {
	return &ItemRepository{db: db.conn, cipher: cipher}
}

func (r *ItemRepository) Create(ctx context.Context, params item.CreateParams) (*item.LinkedItem, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	sealed, err := r.cipher.Encrypt(params.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}

	query := `
		INSERT INTO linked_items (user_id, external_id, access_token, institution_id, institution_name, institution_logo)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + itemColumns

	it, err := r.scan(r.db.QueryRowContext(ctx, query,
		params.UserID, params.ExternalID, sealed, params.InstitutionID, params.InstitutionName, params.InstitutionLogo,
	))
	if err != nil {
		if isUniqueViolation(err, "linked_items_user_institution_key") {
			return nil, item.ErrDuplicateInstitution
		}
		return nil, fmt.Errorf("failed to create linked item: %w", err)
	}

	return it, nil
}

func (r *ItemRepository) Update(ctx context.Context, id string, params item.UpdateParams) (*item.LinkedItem, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	sealed, err := r.cipher.Encrypt(params.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}

	query := `
		UPDATE linked_items
		SET external_id = $2, access_token = $3, institution_name = $4, institution_logo = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + itemColumns

	it, err := r.scan(r.db.QueryRowContext(ctx, query,
		id, params.ExternalID, sealed, params.InstitutionName, params.InstitutionLogo,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, item.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update linked item: %w", err)
	}

	return it, nil
}

func (r *ItemRepository) GetByID(ctx context.Context, id string) (*item.LinkedItem, error) {
	query := `SELECT ` + itemColumns + ` FROM linked_items WHERE id = $1`

	it, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
		return nil, item.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get linked item: %w", err)
	}

	return it, nil
}

func (r *ItemRepository) FindByInstitution(ctx context.Context, userID, institutionID string) (*item.LinkedItem, error) {
	query := `SELECT ` + itemColumns + ` FROM linked_items WHERE user_id = $1 AND institution_id = $2`

	it, err := r.scan(r.db.QueryRowContext(ctx, query, userID, institutionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, item.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find linked item: %w", err)
	}

	return it, nil
}

func (r *ItemRepository) ListByUserID(ctx context.Context, userID string) ([]*item.LinkedItem, error) {
	query := `SELECT ` + itemColumns + ` FROM linked_items WHERE user_id = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list linked items: %w", err)
	}
	defer rows.Close()

	var items []*item.LinkedItem
	for rows.Next() {
		it, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan linked item: %w", err)
		}
		items = append(items, it)
	}

	return items, rows.Err()
}

func (r *ItemRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM linked_items ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users with items: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *ItemRepository) scan(row scanner) (*item.LinkedItem, error) {
	var it item.LinkedItem
	var sealed string

	err := row.Scan(
		&it.ID, &it.UserID, &it.ExternalID, &sealed, &it.InstitutionID,
		&it.InstitutionName, &it.InstitutionLogo, &it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	it.AccessToken, err = r.cipher.Decrypt(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token for item %s: %w", it.ID, err)
	}

	return &it, nil
}
