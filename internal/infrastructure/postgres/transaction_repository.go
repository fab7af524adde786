package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"ansel/internal/domain/transaction"
)

const (
	transactionColumns = `id, account_id, external_id, date, authorized_date, name, merchant_name, amount,
		iso_currency_code, category, personal_finance_category, payment_channel, pending, created_at, updated_at`

	insertColumnCount = 12
	insertBatchSize   = 500
)

// TransactionRepository implements transaction.Repository for PostgreSQL
type TransactionRepository struct {
	db conn
}

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db.conn}
}

// InsertMany inserts in batches; rows whose external id already exists are
// skipped by ON CONFLICT DO NOTHING and not counted.
func (r *TransactionRepository) InsertMany(ctx context.Context, params []transaction.CreateParams) (int, error) {
	inserted := 0
	for start := 0; start < len(params); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(params) {
			end = len(params)
		}

		n, err := r.insertBatch(ctx, params[start:end])
		if err != nil {
			return inserted, err
		}
		inserted += n
	}
	return inserted, nil
}

func (r *TransactionRepository) insertBatch(ctx context.Context, batch []transaction.CreateParams) (int, error) {
	var b strings.Builder
	b.WriteString(`INSERT INTO transactions (account_id, external_id, date, authorized_date, name, merchant_name, amount,
		iso_currency_code, category, personal_finance_category, payment_channel, pending) VALUES `)

	args := make([]any, 0, len(batch)*insertColumnCount)
	for i, p := range batch {
		if err := p.Validate(); err != nil {
			return 0, fmt.Errorf("invalid transaction %s: %w", p.ExternalID, err)
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := 1; c <= insertColumnCount; c++ {
			if c > 1 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", i*insertColumnCount+c)
		}
		b.WriteByte(')')

		var authorized sql.NullTime
		if p.AuthorizedDate != nil {
			authorized = sql.NullTime{Time: *p.AuthorizedDate, Valid: true}
		}
		args = append(args,
			p.AccountID, p.ExternalID, p.Date, authorized, p.Name, p.MerchantName, p.Amount,
			p.IsoCurrencyCode, p.Category, p.PersonalFinanceCategory, p.PaymentChannel, p.Pending,
		)
	}
	b.WriteString(` ON CONFLICT (external_id) DO NOTHING`)

	res, err := r.db.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert transactions: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted rows: %w", err)
	}
	return int(n), nil
}

func (r *TransactionRepository) UpdateByExternalID(ctx context.Context, accountID, externalID string, params transaction.UpdateParams) error {
	query := `
		UPDATE transactions
		SET date = $3, name = $4, merchant_name = $5, amount = $6, category = $7,
		    personal_finance_category = $8, pending = $9, updated_at = NOW()
		WHERE external_id = $1 AND account_id = $2`

	_, err := r.db.ExecContext(ctx, query,
		externalID, accountID, params.Date, params.Name, params.MerchantName, params.Amount,
		params.Category, params.PersonalFinanceCategory, params.Pending,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepository) DeleteByExternalIDs(ctx context.Context, accountID string, externalIDs []string) (int, error) {
	if len(externalIDs) == 0 {
		return 0, nil
	}

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE account_id = $1 AND external_id = ANY($2)`,
		accountID, pq.Array(externalIDs),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete transactions: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deleted rows: %w", err)
	}
	return int(n), nil
}

func (r *TransactionRepository) ListByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1
		ORDER BY date DESC, created_at DESC
		LIMIT $2 OFFSET $3`

	return r.list(ctx, query, accountID, limit, offset)
}

func (r *TransactionRepository) ListByAccountSince(ctx context.Context, accountID string, since time.Time) ([]*transaction.Transaction, error) {
	if since.IsZero() {
		query := `SELECT ` + transactionColumns + ` FROM transactions WHERE account_id = $1 ORDER BY date DESC`
		return r.list(ctx, query, accountID)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE account_id = $1 AND date > $2 ORDER BY date DESC`
	return r.list(ctx, query, accountID, since)
}

func (r *TransactionRepository) CountByAccountID(ctx context.Context, accountID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE account_id = $1`, accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

func (r *TransactionRepository) list(ctx context.Context, query string, args ...any) ([]*transaction.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*transaction.Transaction
	for rows.Next() {
		var t transaction.Transaction
		var authorized sql.NullTime

		err := rows.Scan(
			&t.ID, &t.AccountID, &t.ExternalID, &t.Date, &authorized, &t.Name, &t.MerchantName, &t.Amount,
			&t.IsoCurrencyCode, &t.Category, &t.PersonalFinanceCategory, &t.PaymentChannel, &t.Pending,
			&t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if authorized.Valid {
			t.AuthorizedDate = &authorized.Time
		}
		txs = append(txs, &t)
	}

	return txs, rows.Err()
}
