package postgres

import (
	"context"

	"ansel/internal/domain/aggregation"
)

// Transactor implements aggregation.Transactor by binding fresh repositories
// to a single database transaction.
type Transactor struct {
	db     *DB
	cipher TokenCipher
}

func NewTransactor(db *DB, cipher TokenCipher) *Transactor {
	return &Transactor{db: db, cipher: cipher}
}

// Stores returns repositories bound to the connection pool
func (t *Transactor) Stores() aggregation.Stores {
	return storesOn(t.db.conn, t.cipher)
}

func (t *Transactor) WithinTx(ctx context.Context, fn func(aggregation.Stores) error) error {
	return t.db.withTx(ctx, func(c conn) error {
		return fn(storesOn(c, t.cipher))
	})
}

func storesOn(c conn, cipher TokenCipher) aggregation.Stores {
	return aggregation.Stores{
		Items:        &ItemRepository{db: c, cipher: cipher},
		Accounts:     &AccountRepository{db: c},
		Balances:     &BalanceRepository{db: c},
		Transactions: &TransactionRepository{db: c},
		DownloadLogs: &DownloadLogRepository{db: c},
	}
}
