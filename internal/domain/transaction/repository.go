package transaction

import (
	"context"
	"time"
)

// Repository defines the interface for transaction data access
type Repository interface {
	// InsertMany inserts transactions, skipping external ids that already
	// exist. Returns the number of rows actually inserted.
	InsertMany(ctx context.Context, params []CreateParams) (int, error)

	// UpdateByExternalID overwrites the mutable fields of the account's
	// transaction. A missing row is not an error.
	UpdateByExternalID(ctx context.Context, accountID, externalID string, params UpdateParams) error

	// DeleteByExternalIDs removes the account's transactions and returns how
	// many were deleted. Rows of other accounts are never touched.
	DeleteByExternalIDs(ctx context.Context, accountID string, externalIDs []string) (int, error)

	// ListByAccountID returns transactions newest first
	ListByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*Transaction, error)

	// ListByAccountSince returns every transaction dated after since.
	// A zero since returns the full history.
	ListByAccountSince(ctx context.Context, accountID string, since time.Time) ([]*Transaction, error)

	CountByAccountID(ctx context.Context, accountID string) (int, error)
}

// DownloadLogRepository defines the interface for sync audit records
type DownloadLogRepository interface {
	Create(ctx context.Context, params DownloadLogParams) (*DownloadLog, error)

	// ListByAccountID returns the most recent runs first
	ListByAccountID(ctx context.Context, accountID string, limit int) ([]*DownloadLog, error)
}
