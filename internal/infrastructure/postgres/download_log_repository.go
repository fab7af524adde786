package postgres

import (
	"context"
	"fmt"

	"ansel/internal/domain/transaction"
)

// DownloadLogRepository records transaction sync runs
type DownloadLogRepository struct {
	db conn
}

func NewDownloadLogRepository(db *DB) *DownloadLogRepository {
	return &DownloadLogRepository{db: db.conn}
}

func (r *DownloadLogRepository) Create(ctx context.Context, params transaction.DownloadLogParams) (*transaction.DownloadLog, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO download_logs (account_id, start_date, end_date, num_transactions, status, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, account_id, start_date, end_date, num_transactions, status, error_message, created_at`

	var l transaction.DownloadLog
	err := r.db.QueryRowContext(ctx, query,
		params.AccountID, params.StartDate, params.EndDate, params.NumTransactions, params.Status, params.ErrorMessage,
	).Scan(&l.ID, &l.AccountID, &l.StartDate, &l.EndDate, &l.NumTransactions, &l.Status, &l.ErrorMessage, &l.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create download log: %w", err)
	}

	return &l, nil
}

func (r *DownloadLogRepository) ListByAccountID(ctx context.Context, accountID string, limit int) ([]*transaction.DownloadLog, error) {
	query := `
		SELECT id, account_id, start_date, end_date, num_transactions, status, error_message, created_at
		FROM download_logs
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list download logs: %w", err)
	}
	defer rows.Close()

	var logs []*transaction.DownloadLog
	for rows.Next() {
		var l transaction.DownloadLog
		if err := rows.Scan(&l.ID, &l.AccountID, &l.StartDate, &l.EndDate, &l.NumTransactions, &l.Status, &l.ErrorMessage, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan download log: %w", err)
		}
		logs = append(logs, &l)
	}

	return logs, rows.Err()
}
