package aggregation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ansel/internal/domain/account"
	"ansel/internal/infrastructure/plaid"
)

// RefreshResult contains the results of a bulk balance refresh
type RefreshResult struct {
	Items    int `json:"items"`
	Accounts int `json:"accounts"`
}

// Message returns the human readable outcome
func (r *RefreshResult) Message() string {
	return fmt.Sprintf("Updated balances for %d accounts", r.Accounts)
}

// BalanceService appends fresh balance snapshots from the aggregation API.
type BalanceService struct {
	client plaid.ClientInterface
	stores Stores
	tx     Transactor
	logger *zap.Logger
	now    func() time.Time
}

// NewBalanceService creates a new balance service
func NewBalanceService(client plaid.ClientInterface, stores Stores, tx Transactor, logger *zap.Logger) *BalanceService {
	return &BalanceService{client: client, stores: stores, tx: tx, logger: logger, now: time.Now}
}

// RefreshUser refreshes every linked item of the user. Reported accounts are
// matched to stored ones by external id; unknown accounts are skipped. The
// first failing item aborts the refresh; items already refreshed stay committed.
func (s *BalanceService) RefreshUser(ctx context.Context, userID string) (*RefreshResult, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	items, err := s.stores.Items.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	result := &RefreshResult{}
	for _, it := range items {
		stored, err := s.stores.Accounts.ListByItemID(ctx, it.ID)
		if err != nil {
			return result, fmt.Errorf("failed to list accounts for item %s: %w", it.ID, err)
		}

		resp, err := s.client.GetBalances(ctx, it.AccessToken, nil)
		if err != nil {
			return result, fmt.Errorf("failed to get balances for item %s: %w", it.ID, err)
		}

		byExternalID := make(map[string]*account.Account, len(stored))
		for _, acct := range stored {
			byExternalID[acct.ExternalID] = acct
		}

		at := s.now()
		var appended int
		err = s.tx.WithinTx(ctx, func(st Stores) error {
			appended = 0
			for _, apiAccount := range resp.Accounts {
				acct, ok := byExternalID[apiAccount.AccountID]
				if !ok {
					continue
				}
				if _, err := st.Balances.Append(ctx, balanceParams(acct.ID, apiAccount.Balances, at)); err != nil {
					return fmt.Errorf("failed to append balance for account %s: %w", acct.ID, err)
				}
				appended++
			}
			return nil
		})
		if err != nil {
			return result, err
		}

		balanceSnapshots.Add(ctx, int64(appended))
		result.Items++
		result.Accounts += appended
	}

	s.logger.Info("balances refreshed",
		zap.String("user_id", userID),
		zap.Int("items", result.Items),
		zap.Int("accounts", result.Accounts),
	)

	return result, nil
}

// RefreshAccount appends a fresh snapshot for one owned account.
func (s *BalanceService) RefreshAccount(ctx context.Context, userID, accountID string) (*account.Balance, error) {
	acct, linked, err := account.LoadOwned(ctx, s.stores.Accounts, s.stores.Items, userID, accountID)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.GetBalances(ctx, linked.AccessToken, []string{acct.ExternalID})
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	var reported *plaid.Account
	for i := range resp.Accounts {
		if resp.Accounts[i].AccountID == acct.ExternalID {
			reported = &resp.Accounts[i]
			break
		}
	}
	if reported == nil {
		return nil, ErrAccountNotInResponse
	}

	balance, err := s.stores.Balances.Append(ctx, balanceParams(acct.ID, reported.Balances, s.now()))
	if err != nil {
		return nil, fmt.Errorf("failed to append balance: %w", err)
	}
	balanceSnapshots.Add(ctx, 1)

	return balance, nil
}
