package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ansel/internal/domain/account"
)

// BalanceRepository stores append-only balance snapshots
type BalanceRepository struct {
	db conn
}

func NewBalanceRepository(db *DB) *BalanceRepository {
	return &BalanceRepository{db: db.conn}
}

func (r *BalanceRepository) Append(ctx context.Context, params account.BalanceParams) (*account.Balance, error) {
	query := `
		INSERT INTO account_balances (account_id, current, available, "limit", date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, account_id, current, available, "limit", date`

	b, err := scanBalance(r.db.QueryRowContext(ctx, query,
		params.AccountID, params.Current, params.Available, params.Limit, params.Date,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to append balance: %w", err)
	}
	return b, nil
}

func (r *BalanceRepository) Latest(ctx context.Context, accountID string) (*account.Balance, error) {
	query := `
		SELECT id, account_id, current, available, "limit", date
		FROM account_balances
		WHERE account_id = $1
		ORDER BY date DESC
		LIMIT 1`

	b, err := scanBalance(r.db.QueryRowContext(ctx, query, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, account.ErrBalanceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest balance: %w", err)
	}
	return b, nil
}

func (r *BalanceRepository) History(ctx context.Context, accountID string) ([]*account.Balance, error) {
	query := `
		SELECT id, account_id, current, available, "limit", date
		FROM account_balances
		WHERE account_id = $1
		ORDER BY date`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	defer rows.Close()

	var balances []*account.Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		balances = append(balances, b)
	}

	return balances, rows.Err()
}

func scanBalance(row scanner) (*account.Balance, error) {
	var b account.Balance
	if err := row.Scan(&b.ID, &b.AccountID, &b.Current, &b.Available, &b.Limit, &b.Date); err != nil {
		return nil, err
	}
	return &b, nil
}
