package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ansel/internal/domain/item"
)

type mockRepo struct {
	accounts        map[string]*Account
	setNicknameFunc func(ctx context.Context, id, nickname string) error
}

func (m *mockRepo) Create(ctx context.Context, params CreateParams) (*Account, error) {
	return nil, errors.New("not implemented")
}

func (m *mockRepo) Update(ctx context.Context, id string, params UpdateParams) (*Account, error) {
	return nil, errors.New("not implemented")
}

func (m *mockRepo) GetByID(ctx context.Context, id string) (*Account, error) {
	if a, ok := m.accounts[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, ErrAccountNotFound
}

func (m *mockRepo) ListByItemID(ctx context.Context, itemID string) ([]*Account, error) {
	var out []*Account
	for _, a := range m.accounts {
		if a.LinkedItemID == itemID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockRepo) ListVisibleByUserID(ctx context.Context, userID string) ([]*Account, error) {
	return nil, nil
}

func (m *mockRepo) Hide(ctx context.Context, ids []string) error { return nil }

func (m *mockRepo) SetNickname(ctx context.Context, id, nickname string) error {
	if m.setNicknameFunc != nil {
		return m.setNicknameFunc(ctx, id, nickname)
	}
	return nil
}

func (m *mockRepo) SaveCursor(ctx context.Context, id, cursor string) error { return nil }

type mockBalances struct {
	LatestFunc  func(ctx context.Context, accountID string) (*Balance, error)
	HistoryFunc func(ctx context.Context, accountID string) ([]*Balance, error)
}

func (m *mockBalances) Append(ctx context.Context, params BalanceParams) (*Balance, error) {
	return nil, errors.New("not implemented")
}

func (m *mockBalances) Latest(ctx context.Context, accountID string) (*Balance, error) {
	if m.LatestFunc != nil {
		return m.LatestFunc(ctx, accountID)
	}
	return nil, ErrBalanceNotFound
}

func (m *mockBalances) History(ctx context.Context, accountID string) ([]*Balance, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, accountID)
	}
	return nil, nil
}

type mockItems struct {
	items map[string]*item.LinkedItem
}

func (m *mockItems) Create(ctx context.Context, params item.CreateParams) (*item.LinkedItem, error) {
	return nil, errors.New("not implemented")
}

func (m *mockItems) Update(ctx context.Context, id string, params item.UpdateParams) (*item.LinkedItem, error) {
	return nil, errors.New("not implemented")
}

func (m *mockItems) GetByID(ctx context.Context, id string) (*item.LinkedItem, error) {
	if it, ok := m.items[id]; ok {
		return it, nil
	}
	return nil, item.ErrItemNotFound
}

func (m *mockItems) FindByInstitution(ctx context.Context, userID, institutionID string) (*item.LinkedItem, error) {
	return nil, item.ErrItemNotFound
}

func (m *mockItems) ListByUserID(ctx context.Context, userID string) ([]*item.LinkedItem, error) {
	var out []*item.LinkedItem
	for _, it := range m.items {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *mockItems) ListUserIDs(ctx context.Context) ([]string, error) { return nil, nil }

type mockReader struct {
	ListSummariesByUserIDFunc func(ctx context.Context, userID string) ([]*Summary, error)
}

func (m *mockReader) ListSummariesByUserID(ctx context.Context, userID string) ([]*Summary, error) {
	if m.ListSummariesByUserIDFunc != nil {
		return m.ListSummariesByUserIDFunc(ctx, userID)
	}
	return nil, nil
}

func newTestService(balances *mockBalances) (*Service, *mockRepo) {
	repo := &mockRepo{accounts: map[string]*Account{
		"acc-1": {ID: "acc-1", LinkedItemID: "item-1", Name: "Plaid Checking", Type: "depository", Mask: "0000"},
		"acc-2": {ID: "acc-2", LinkedItemID: "item-1", Name: "Old Savings", Hidden: true},
	}}
	items := &mockItems{items: map[string]*item.LinkedItem{
		"item-1": {ID: "item-1", UserID: "user-1", InstitutionName: "First Platypus Bank"},
	}}
	if balances == nil {
		balances = &mockBalances{}
	}
	return NewService(repo, balances, items, &mockReader{}), repo
}

func TestService_GetOwned(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	tests := []struct {
		name      string
		userID    string
		accountID string
		wantErr   error
	}{
		{"owner", "user-1", "acc-1", nil},
		{"system caller", "", "acc-1", nil},
		{"other user", "user-2", "acc-1", ErrAccountNotFound},
		{"missing account", "user-1", "acc-404", ErrAccountNotFound},
		{"empty account id", "user-1", "", ErrAccountNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct, linked, err := svc.GetOwned(ctx, tt.userID, tt.accountID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.accountID, acct.ID)
			assert.Equal(t, "item-1", linked.ID)
		})
	}
}

func TestService_GetSummary(t *testing.T) {
	snapshot := &Balance{ID: "b1", AccountID: "acc-1", Current: decimal.NewFromInt(110), Date: time.Now()}
	svc, _ := newTestService(&mockBalances{
		LatestFunc: func(ctx context.Context, accountID string) (*Balance, error) {
			return snapshot, nil
		},
	})

	summary, err := svc.GetSummary(context.Background(), "user-1", "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "First Platypus Bank", summary.InstitutionName)
	assert.Same(t, snapshot, summary.LatestBalance)
}

func TestService_GetSummary_NoBalanceYet(t *testing.T) {
	svc, _ := newTestService(nil)

	summary, err := svc.GetSummary(context.Background(), "user-1", "acc-1")
	require.NoError(t, err)
	assert.Nil(t, summary.LatestBalance)
}

func TestService_ListItemHistory_SkipsHiddenAccounts(t *testing.T) {
	svc, _ := newTestService(&mockBalances{
		HistoryFunc: func(ctx context.Context, accountID string) ([]*Balance, error) {
			return []*Balance{{AccountID: accountID}}, nil
		},
	})

	history, err := svc.ListItemHistory(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Len(t, history[0].Accounts, 1)
	assert.Equal(t, "acc-1", history[0].Accounts[0].ID)
	assert.Len(t, history[0].Accounts[0].Balances, 1)
}

func TestService_SetNickname(t *testing.T) {
	svc, repo := newTestService(nil)
	var saved string
	repo.setNicknameFunc = func(ctx context.Context, id, nickname string) error {
		saved = nickname
		return nil
	}

	acct, err := svc.SetNickname(context.Background(), "user-1", "acc-1", NicknameParams{Nickname: " Bills "})
	require.NoError(t, err)
	assert.Equal(t, "Bills", saved)
	assert.Equal(t, "Bills", acct.DisplayName())

	_, err = svc.SetNickname(context.Background(), "user-2", "acc-1", NicknameParams{Nickname: "x"})
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
