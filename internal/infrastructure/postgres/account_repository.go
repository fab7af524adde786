package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"ansel/internal/domain/account"
)

const accountColumns = `a.id, a.linked_item_id, a.external_id, a.name, a.nickname, a.type, a.subtype, a.mask, a.hidden, a.sync_cursor, a.created_at, a.updated_at`

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	db conn
}

// NewAccountRepository creates a new PostgreSQL account repository
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db.conn}
}

// Create creates a new account
func (r *AccountRepository) Create(ctx context.Context, params account.CreateParams) (*account.Account, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO accounts AS a (linked_item_id, external_id, name, type, subtype, mask)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + accountColumns

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query,
		params.LinkedItemID, params.ExternalID, params.Name, params.Type, params.Subtype, params.Mask,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return acc, nil
}

// Update overwrites identity fields of a matched account and unhides it
func (r *AccountRepository) Update(ctx context.Context, id string, params account.UpdateParams) (*account.Account, error) {
	query := `
		UPDATE accounts AS a
		SET external_id = $2, name = $3, type = $4, subtype = $5, mask = $6, hidden = FALSE, updated_at = NOW()
		WHERE a.id = $1
		RETURNING ` + accountColumns

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query,
		id, params.ExternalID, params.Name, params.Type, params.Subtype, params.Mask,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, account.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	return acc, nil
}

// GetByID retrieves an account by its ID
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts a WHERE a.id = $1`

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
		return nil, account.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return acc, nil
}

func (r *AccountRepository) ListByItemID(ctx context.Context, itemID string) ([]*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts a WHERE a.linked_item_id = $1 ORDER BY a.created_at`
	return r.list(ctx, query, itemID)
}

func (r *AccountRepository) ListVisibleByUserID(ctx context.Context, userID string) ([]*account.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts a
		JOIN linked_items li ON li.id = a.linked_item_id
		WHERE li.user_id = $1 AND NOT a.hidden
		ORDER BY li.institution_name, a.name`
	return r.list(ctx, query, userID)
}

func (r *AccountRepository) Hide(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET hidden = TRUE, updated_at = NOW() WHERE id = ANY($1::uuid[])`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to hide accounts: %w", err)
	}
	return nil
}

func (r *AccountRepository) SetNickname(ctx context.Context, id, nickname string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET nickname = $2, updated_at = NOW() WHERE id = $1`,
		id, nickname,
	)
	if err != nil {
		return fmt.Errorf("failed to set nickname: %w", err)
	}
	return requireRow(res, account.ErrAccountNotFound)
}

func (r *AccountRepository) SaveCursor(ctx context.Context, id, cursor string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET sync_cursor = $2, updated_at = NOW() WHERE id = $1`,
		id, cursor,
	)
	if err != nil {
		return fmt.Errorf("failed to save sync cursor: %w", err)
	}
	return requireRow(res, account.ErrAccountNotFound)
}

// ListSummariesByUserID returns visible accounts joined with their
// institution and latest balance snapshot.
func (r *AccountRepository) ListSummariesByUserID(ctx context.Context, userID string) ([]*account.Summary, error) {
	query := `
		SELECT ` + accountColumns + `, li.institution_name, li.institution_logo,
		       b.id, b.current, b.available, b."limit", b.date
		FROM accounts a
		JOIN linked_items li ON li.id = a.linked_item_id
		LEFT JOIN LATERAL (
			SELECT DISTINCT ON (ab.account_id) ab.id, ab.current, ab.available, ab."limit", ab.date
			FROM account_balances ab
			WHERE ab.account_id = a.id
			ORDER BY ab.account_id, ab.date DESC
		) b ON TRUE
		WHERE li.user_id = $1 AND NOT a.hidden
		ORDER BY li.institution_name, a.name`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list account summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*account.Summary
	for rows.Next() {
		var s account.Summary
		var balanceID sql.NullString
		var bal account.Balance
		var current, available decimal.NullDecimal
		var date sql.NullTime

		err := rows.Scan(
			&s.ID, &s.LinkedItemID, &s.ExternalID, &s.Name, &s.Nickname, &s.Type, &s.Subtype,
			&s.Mask, &s.Hidden, &s.SyncCursor, &s.CreatedAt, &s.UpdatedAt,
			&s.InstitutionName, &s.InstitutionLogo,
			&balanceID, &current, &available, &bal.Limit, &date,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account summary: %w", err)
		}

		if balanceID.Valid {
			bal.ID = balanceID.String
			bal.AccountID = s.ID
			bal.Current = current.Decimal
			bal.Available = available.Decimal
			bal.Date = date.Time
			s.LatestBalance = &bal
		}
		summaries = append(summaries, &s)
	}

	return summaries, rows.Err()
}

func (r *AccountRepository) list(ctx context.Context, query string, arg any) ([]*account.Account, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}

	return accounts, rows.Err()
}

func scanAccount(row scanner) (*account.Account, error) {
	var acc account.Account
	err := row.Scan(
		&acc.ID, &acc.LinkedItemID, &acc.ExternalID, &acc.Name, &acc.Nickname, &acc.Type,
		&acc.Subtype, &acc.Mask, &acc.Hidden, &acc.SyncCursor, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
