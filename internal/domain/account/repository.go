package account

import "context"

// Repository defines the interface for account data access.
// This interface is defined in the domain layer, but implemented in the infrastructure layer
type Repository interface {
	// Create inserts a new visible account
	Create(ctx context.Context, params CreateParams) (*Account, error)

	// Update overwrites identity fields of a matched account and unhides it
	Update(ctx context.Context, id string, params UpdateParams) (*Account, error)

	// GetByID retrieves an account by its ID
	GetByID(ctx context.Context, id string) (*Account, error)

	// ListByItemID returns every account of a linked item, hidden ones included
	ListByItemID(ctx context.Context, itemID string) ([]*Account, error)

	// ListVisibleByUserID returns the user's accounts that are not hidden
	ListVisibleByUserID(ctx context.Context, userID string) ([]*Account, error)

	// Hide marks the given accounts as hidden
	Hide(ctx context.Context, ids []string) error

	SetNickname(ctx context.Context, id, nickname string) error

	// SaveCursor stores the transaction sync checkpoint for the account
	SaveCursor(ctx context.Context, id, cursor string) error
}

// BalanceRepository defines the interface for balance snapshot access.
// Snapshots are append-only.
type BalanceRepository interface {
	Append(ctx context.Context, params BalanceParams) (*Balance, error)

	// Latest returns ErrBalanceNotFound when the account has no snapshot
	Latest(ctx context.Context, accountID string) (*Balance, error)

	// History returns snapshots oldest first
	History(ctx context.Context, accountID string) ([]*Balance, error)
}

// SummaryReader serves the dashboard view in a single query.
type SummaryReader interface {
	ListSummariesByUserID(ctx context.Context, userID string) ([]*Summary, error)
}
