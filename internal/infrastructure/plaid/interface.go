package plaid

import "context"

// ClientInterface defines the aggregation API operations the application uses
type ClientInterface interface {
	CreateLinkToken(ctx context.Context, req LinkTokenRequest) (*LinkTokenResponse, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResponse, error)
	GetItem(ctx context.Context, accessToken string) (*ItemResponse, error)
	GetInstitution(ctx context.Context, institutionID string) (*InstitutionResponse, error)
	GetAccounts(ctx context.Context, accessToken string) (*AccountsResponse, error)
	// GetBalances fetches fresh balances; a nil accountIDs returns every account of the item
	GetBalances(ctx context.Context, accessToken string, accountIDs []string) (*AccountsResponse, error)
	SyncTransactions(ctx context.Context, req SyncRequest) (*SyncResponse, error)
}
