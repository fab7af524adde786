package aggregation

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"ansel/internal/infrastructure/plaid"
)

// mockClient implements plaid.ClientInterface for testing
type mockClient struct {
	CreateLinkTokenFunc     func(ctx context.Context, req plaid.LinkTokenRequest) (*plaid.LinkTokenResponse, error)
	ExchangePublicTokenFunc func(ctx context.Context, publicToken string) (*plaid.ExchangeResponse, error)
	GetItemFunc             func(ctx context.Context, accessToken string) (*plaid.ItemResponse, error)
	GetInstitutionFunc      func(ctx context.Context, institutionID string) (*plaid.InstitutionResponse, error)
	GetAccountsFunc         func(ctx context.Context, accessToken string) (*plaid.AccountsResponse, error)
	GetBalancesFunc         func(ctx context.Context, accessToken string, accountIDs []string) (*plaid.AccountsResponse, error)
	SyncTransactionsFunc    func(ctx context.Context, req plaid.SyncRequest) (*plaid.SyncResponse, error)
}

var _ plaid.ClientInterface = (*mockClient)(nil)

var errNotMocked = errors.New("not mocked")

func (m *mockClient) CreateLinkToken(ctx context.Context, req plaid.LinkTokenRequest) (*plaid.LinkTokenResponse, error) {
	if m.CreateLinkTokenFunc != nil {
		return m.CreateLinkTokenFunc(ctx, req)
	}
	return nil, errNotMocked
}

func (m *mockClient) ExchangePublicToken(ctx context.Context, publicToken string) (*plaid.ExchangeResponse, error) {
	if m.ExchangePublicTokenFunc != nil {
		return m.ExchangePublicTokenFunc(ctx, publicToken)
	}
	return nil, errNotMocked
}

func (m *mockClient) GetItem(ctx context.Context, accessToken string) (*plaid.ItemResponse, error) {
	if m.GetItemFunc != nil {
		return m.GetItemFunc(ctx, accessToken)
	}
	return nil, errNotMocked
}

func (m *mockClient) GetInstitution(ctx context.Context, institutionID string) (*plaid.InstitutionResponse, error) {
	if m.GetInstitutionFunc != nil {
		return m.GetInstitutionFunc(ctx, institutionID)
	}
	return nil, errNotMocked
}

func (m *mockClient) GetAccounts(ctx context.Context, accessToken string) (*plaid.AccountsResponse, error) {
	if m.GetAccountsFunc != nil {
		return m.GetAccountsFunc(ctx, accessToken)
	}
	return nil, errNotMocked
}

func (m *mockClient) GetBalances(ctx context.Context, accessToken string, accountIDs []string) (*plaid.AccountsResponse, error) {
	if m.GetBalancesFunc != nil {
		return m.GetBalancesFunc(ctx, accessToken, accountIDs)
	}
	return nil, errNotMocked
}

func (m *mockClient) SyncTransactions(ctx context.Context, req plaid.SyncRequest) (*plaid.SyncResponse, error) {
	if m.SyncTransactionsFunc != nil {
		return m.SyncTransactionsFunc(ctx, req)
	}
	return nil, errNotMocked
}

func strPtr(s string) *string { return &s }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func apiAccount(id, name, accountType, subtype, mask, current string) plaid.Account {
	a := plaid.Account{
		AccountID: id,
		Name:      name,
		Type:      accountType,
		Balances:  plaid.Balances{Current: decPtr(current), Available: decPtr(current)},
	}
	if subtype != "" {
		a.Subtype = strPtr(subtype)
	}
	if mask != "" {
		a.Mask = strPtr(mask)
	}
	return a
}

func apiTransaction(id, accountID, amount, date, name string) plaid.Transaction {
	category := &plaid.PersonalFinanceCategory{Primary: "GENERAL_MERCHANDISE"}
	return plaid.Transaction{
		TransactionID:           id,
		AccountID:               accountID,
		Amount:                  decimal.RequireFromString(amount),
		Date:                    date,
		Name:                    name,
		PersonalFinanceCategory: category,
	}
}
