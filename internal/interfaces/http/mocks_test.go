package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi/v5"

	"ansel/internal/domain/account"
	"ansel/internal/domain/aggregation"
	"ansel/internal/domain/item"
	"ansel/internal/domain/notification"
	"ansel/internal/domain/transaction"
	"ansel/internal/infrastructure/plaid"
	"ansel/internal/shared/middleware"
)

var errNotMocked = errors.New("not mocked")

type mockLinker struct {
	CreateLinkTokenFunc func(ctx context.Context, userID string) (*plaid.LinkTokenResponse, error)
	ReconcileFunc       func(ctx context.Context, userID, publicToken string) (*aggregation.ReconcileResult, error)
}

func (m *mockLinker) CreateLinkToken(ctx context.Context, userID string) (*plaid.LinkTokenResponse, error) {
	if m.CreateLinkTokenFunc != nil {
		return m.CreateLinkTokenFunc(ctx, userID)
	}
	return nil, errNotMocked
}

func (m *mockLinker) Reconcile(ctx context.Context, userID, publicToken string) (*aggregation.ReconcileResult, error) {
	if m.ReconcileFunc != nil {
		return m.ReconcileFunc(ctx, userID, publicToken)
	}
	return nil, errNotMocked
}

type mockBalances struct {
	RefreshUserFunc    func(ctx context.Context, userID string) (*aggregation.RefreshResult, error)
	RefreshAccountFunc func(ctx context.Context, userID, accountID string) (*account.Balance, error)
}

func (m *mockBalances) RefreshUser(ctx context.Context, userID string) (*aggregation.RefreshResult, error) {
	if m.RefreshUserFunc != nil {
		return m.RefreshUserFunc(ctx, userID)
	}
	return nil, errNotMocked
}

func (m *mockBalances) RefreshAccount(ctx context.Context, userID, accountID string) (*account.Balance, error) {
	if m.RefreshAccountFunc != nil {
		return m.RefreshAccountFunc(ctx, userID, accountID)
	}
	return nil, errNotMocked
}

type mockSyncer struct {
	SyncFunc          func(ctx context.Context, req aggregation.SyncRequest) (*aggregation.SyncResult, error)
	RecordFailureFunc func(ctx context.Context, accountID string, cause error) error
}

func (m *mockSyncer) Sync(ctx context.Context, req aggregation.SyncRequest) (*aggregation.SyncResult, error) {
	if m.SyncFunc != nil {
		return m.SyncFunc(ctx, req)
	}
	return nil, errNotMocked
}

func (m *mockSyncer) RecordFailure(ctx context.Context, accountID string, cause error) error {
	if m.RecordFailureFunc != nil {
		return m.RecordFailureFunc(ctx, accountID, cause)
	}
	return nil
}

type mockAccounts struct {
	GetOwnedFunc        func(ctx context.Context, userID, accountID string) (*account.Account, *item.LinkedItem, error)
	ListSummariesFunc   func(ctx context.Context, userID string) ([]*account.Summary, error)
	GetSummaryFunc      func(ctx context.Context, userID, accountID string) (*account.Summary, error)
	BalanceHistoryFunc  func(ctx context.Context, userID, accountID string) ([]*account.Balance, error)
	ListItemHistoryFunc func(ctx context.Context, userID string) ([]*account.ItemHistory, error)
	SetNicknameFunc     func(ctx context.Context, userID, accountID string, params account.NicknameParams) (*account.Account, error)
}

func (m *mockAccounts) GetOwned(ctx context.Context, userID, accountID string) (*account.Account, *item.LinkedItem, error) {
	if m.GetOwnedFunc != nil {
		return m.GetOwnedFunc(ctx, userID, accountID)
	}
	return nil, nil, errNotMocked
}

func (m *mockAccounts) ListSummaries(ctx context.Context, userID string) ([]*account.Summary, error) {
	if m.ListSummariesFunc != nil {
		return m.ListSummariesFunc(ctx, userID)
	}
	return nil, errNotMocked
}

func (m *mockAccounts) GetSummary(ctx context.Context, userID, accountID string) (*account.Summary, error) {
	if m.GetSummaryFunc != nil {
		return m.GetSummaryFunc(ctx, userID, accountID)
	}
	return nil, errNotMocked
}

func (m *mockAccounts) BalanceHistory(ctx context.Context, userID, accountID string) ([]*account.Balance, error) {
	if m.BalanceHistoryFunc != nil {
		return m.BalanceHistoryFunc(ctx, userID, accountID)
	}
	return nil, errNotMocked
}

func (m *mockAccounts) ListItemHistory(ctx context.Context, userID string) ([]*account.ItemHistory, error) {
	if m.ListItemHistoryFunc != nil {
		return m.ListItemHistoryFunc(ctx, userID)
	}
	return nil, errNotMocked
}

func (m *mockAccounts) SetNickname(ctx context.Context, userID, accountID string, params account.NicknameParams) (*account.Account, error) {
	if m.SetNicknameFunc != nil {
		return m.SetNicknameFunc(ctx, userID, accountID, params)
	}
	return nil, errNotMocked
}

type mockTransactions struct {
	ListFunc              func(ctx context.Context, accountID string, params transaction.ListParams) (*transaction.Page, error)
	CategoryBreakdownFunc func(ctx context.Context, accountID string, days int) ([]transaction.CategoryTotal, error)
	DownloadLogsFunc      func(ctx context.Context, accountID string, limit int) ([]*transaction.DownloadLog, error)
}

func (m *mockTransactions) List(ctx context.Context, accountID string, params transaction.ListParams) (*transaction.Page, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, accountID, params)
	}
	return nil, errNotMocked
}

func (m *mockTransactions) CategoryBreakdown(ctx context.Context, accountID string, days int) ([]transaction.CategoryTotal, error) {
	if m.CategoryBreakdownFunc != nil {
		return m.CategoryBreakdownFunc(ctx, accountID, days)
	}
	return nil, errNotMocked
}

func (m *mockTransactions) DownloadLogs(ctx context.Context, accountID string, limit int) ([]*transaction.DownloadLog, error) {
	if m.DownloadLogsFunc != nil {
		return m.DownloadLogsFunc(ctx, accountID, limit)
	}
	return nil, errNotMocked
}

type mockDevices struct {
	RegisterDeviceFunc func(ctx context.Context, params notification.RegisterDeviceParams) (*notification.DeviceToken, error)
}

func (m *mockDevices) RegisterDevice(ctx context.Context, params notification.RegisterDeviceParams) (*notification.DeviceToken, error) {
	if m.RegisterDeviceFunc != nil {
		return m.RegisterDeviceFunc(ctx, params)
	}
	return nil, errNotMocked
}

// newRequest builds a request as the router would hand it over: optional
// authenticated user and an {id} route param.
func newRequest(method, target, body, userID, id string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)

	ctx := req.Context()
	if userID != "" {
		ctx = middleware.WithUserID(ctx, userID)
	}
	if id != "" {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", id)
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}
