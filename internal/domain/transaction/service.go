package transaction

import (
	"context"
	"fmt"
	"time"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	defaultLogLimit = 20
)

// Service contains the read-side business logic for transactions.
// Callers check account ownership before calling in.
type Service struct {
	repo Repository
	logs DownloadLogRepository
	now  func() time.Time
}

// NewService creates a new transaction service
func NewService(repo Repository, logs DownloadLogRepository) *Service {
	return &Service{repo: repo, logs: logs, now: time.Now}
}

// ListParams contains pagination for listing transactions
type ListParams struct {
	Limit  int
	Offset int
}

// Normalize clamps the page size and offset into accepted ranges
func (p *ListParams) Normalize() {
	if p.Limit <= 0 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// Page is one page of an account's transactions
type Page struct {
	Transactions []*Transaction `json:"transactions"`
	Total        int            `json:"total"`
	Limit        int            `json:"limit"`
	Offset       int            `json:"offset"`
}

// List returns a page of the account's transactions, newest first
func (s *Service) List(ctx context.Context, accountID string, params ListParams) (*Page, error) {
	params.Normalize()

	txs, err := s.repo.ListByAccountID(ctx, accountID, params.Limit, params.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	total, err := s.repo.CountByAccountID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	if txs == nil {
		txs = []*Transaction{}
	}

	return &Page{Transactions: txs, Total: total, Limit: params.Limit, Offset: params.Offset}, nil
}

// CategoryBreakdown returns spending per category over the last days days.
// days <= 0 covers the whole history.
func (s *Service) CategoryBreakdown(ctx context.Context, accountID string, days int) ([]CategoryTotal, error) {
	var since time.Time
	if days > 0 {
		since = s.now().AddDate(0, 0, -days)
	}

	txs, err := s.repo.ListByAccountSince(ctx, accountID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	return SpendingByCategory(txs, since), nil
}

// DownloadLogs returns the account's most recent sync runs
func (s *Service) DownloadLogs(ctx context.Context, accountID string, limit int) ([]*DownloadLog, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = defaultLogLimit
	}

	logs, err := s.logs.ListByAccountID(ctx, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list download logs: %w", err)
	}
	if logs == nil {
		logs = []*DownloadLog{}
	}
	return logs, nil
}
