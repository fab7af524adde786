package account

import (
	"context"
	"errors"
	"fmt"

	"ansel/internal/domain/item"
)

// Service contains the read-side business logic for accounts
type Service struct {
	repo     Repository
	balances BalanceRepository
	items    item.Repository
	reader   SummaryReader
}

// NewService creates a new account service
func NewService(repo Repository, balances BalanceRepository, items item.Repository, reader SummaryReader) *Service {
	return &Service{repo: repo, balances: balances, items: items, reader: reader}
}

// GetOwned loads an account and its linked item, reporting ErrAccountNotFound
// when the account belongs to somebody else.
func (s *Service) GetOwned(ctx context.Context, userID, accountID string) (*Account, *item.LinkedItem, error) {
	return LoadOwned(ctx, s.repo, s.items, userID, accountID)
}

// LoadOwned is GetOwned for callers that hold repositories directly.
// An empty userID skips the ownership check.
func LoadOwned(ctx context.Context, repo Repository, items item.Repository, userID, accountID string) (*Account, *item.LinkedItem, error) {
	if accountID == "" {
		return nil, nil, ErrAccountNotFound
	}

	acct, err := repo.GetByID(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}

	linked, err := items.GetByID(ctx, acct.LinkedItemID)
	if err != nil {
		return nil, nil, err
	}

	if userID != "" && linked.UserID != userID {
		return nil, nil, ErrAccountNotFound
	}

	return acct, linked, nil
}

// ListSummaries returns the user's visible accounts with their latest balance
func (s *Service) ListSummaries(ctx context.Context, userID string) ([]*Summary, error) {
	return s.reader.ListSummariesByUserID(ctx, userID)
}

// GetSummary returns one owned account with its latest balance
func (s *Service) GetSummary(ctx context.Context, userID, accountID string) (*Summary, error) {
	acct, linked, err := s.GetOwned(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Account:         *acct,
		InstitutionName: linked.InstitutionName,
		InstitutionLogo: linked.InstitutionLogo,
	}

	latest, err := s.balances.Latest(ctx, acct.ID)
	switch {
	case errors.Is(err, ErrBalanceNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to get latest balance: %w", err)
	default:
		summary.LatestBalance = latest
	}

	return summary, nil
}

// BalanceHistory returns all snapshots of an owned account, oldest first
func (s *Service) BalanceHistory(ctx context.Context, userID, accountID string) ([]*Balance, error) {
	acct, _, err := s.GetOwned(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}
	return s.balances.History(ctx, acct.ID)
}

// ItemHistory groups a linked item with its accounts and their balances.
type ItemHistory struct {
	item.LinkedItem
	Accounts []*History `json:"accounts"`
}

// ListItemHistory returns every linked item of the user with the full
// balance history of each account.
func (s *Service) ListItemHistory(ctx context.Context, userID string) ([]*ItemHistory, error) {
	items, err := s.items.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	out := make([]*ItemHistory, 0, len(items))
	for _, it := range items {
		accounts, err := s.repo.ListByItemID(ctx, it.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list accounts for item %s: %w", it.ID, err)
		}

		entry := &ItemHistory{LinkedItem: *it, Accounts: make([]*History, 0, len(accounts))}
		for _, acct := range accounts {
			if acct.Hidden {
				continue
			}
			balances, err := s.balances.History(ctx, acct.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to get balance history for account %s: %w", acct.ID, err)
			}
			entry.Accounts = append(entry.Accounts, &History{Account: *acct, Balances: balances})
		}
		out = append(out, entry)
	}

	return out, nil
}

// SetNickname renames an owned account. An empty nickname clears it.
func (s *Service) SetNickname(ctx context.Context, userID, accountID string, params NicknameParams) (*Account, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	acct, _, err := s.GetOwned(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetNickname(ctx, acct.ID, params.Nickname); err != nil {
		return nil, fmt.Errorf("failed to set nickname: %w", err)
	}

	acct.Nickname = params.Nickname
	return acct, nil
}
