package aggregation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"ansel/internal/domain/account"
	"ansel/internal/domain/item"
	"ansel/internal/domain/transaction"
)

var errInjected = errors.New("injected failure")

// memStore is an in-memory stand-in for the postgres repositories.
type memStore struct {
	seq      int
	items    map[string]*item.LinkedItem
	accounts map[string]*account.Account
	balances []*account.Balance
	txs      map[string]*transaction.Transaction
	logs     []*transaction.DownloadLog

	// failBalanceAppendAfter makes the n-th+1 balance append fail when > 0
	failBalanceAppendAfter int
	balanceAppends         int
	failInsertMany         bool
}

func newMemStore() *memStore {
	return &memStore{
		items:    make(map[string]*item.LinkedItem),
		accounts: make(map[string]*account.Account),
		txs:      make(map[string]*transaction.Transaction),
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%03d", prefix, m.seq)
}

func (m *memStore) stores() Stores {
	return Stores{
		Items:        memItems{m},
		Accounts:     memAccounts{m},
		Balances:     memBalances{m},
		Transactions: memTransactions{m},
		DownloadLogs: memLogs{m},
	}
}

type memSnapshot struct {
	seq      int
	items    map[string]item.LinkedItem
	accounts map[string]account.Account
	balances []*account.Balance
	txs      map[string]transaction.Transaction
	logs     []*transaction.DownloadLog
}

func (m *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		seq:      m.seq,
		items:    make(map[string]item.LinkedItem, len(m.items)),
		accounts: make(map[string]account.Account, len(m.accounts)),
		balances: append([]*account.Balance(nil), m.balances...),
		txs:      make(map[string]transaction.Transaction, len(m.txs)),
		logs:     append([]*transaction.DownloadLog(nil), m.logs...),
	}
	for k, v := range m.items {
		snap.items[k] = *v
	}
	for k, v := range m.accounts {
		snap.accounts[k] = *v
	}
	for k, v := range m.txs {
		snap.txs[k] = *v
	}
	return snap
}

func (m *memStore) restore(snap memSnapshot) {
	m.seq = snap.seq
	m.items = make(map[string]*item.LinkedItem, len(snap.items))
	for k, v := range snap.items {
		v := v
		m.items[k] = &v
	}
	m.accounts = make(map[string]*account.Account, len(snap.accounts))
	for k, v := range snap.accounts {
		v := v
		m.accounts[k] = &v
	}
	m.txs = make(map[string]*transaction.Transaction, len(snap.txs))
	for k, v := range snap.txs {
		v := v
		m.txs[k] = &v
	}
	m.balances = snap.balances
	m.logs = snap.logs
}

// WithinTx gives all-or-nothing semantics by restoring a snapshot on error.
func (m *memStore) WithinTx(ctx context.Context, fn func(Stores) error) error {
	snap := m.snapshot()
	if err := fn(m.stores()); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memStore) accountsOfItem(itemID string) []*account.Account {
	var out []*account.Account
	for _, a := range m.accounts {
		if a.LinkedItemID == itemID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) balancesOf(accountID string) []*account.Balance {
	var out []*account.Balance
	for _, b := range m.balances {
		if b.AccountID == accountID {
			out = append(out, b)
		}
	}
	return out
}

func (m *memStore) transactionsOf(accountID string) []*transaction.Transaction {
	var out []*transaction.Transaction
	for _, t := range m.txs {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out
}

type memItems struct{ m *memStore }

func (r memItems) Create(ctx context.Context, p item.CreateParams) (*item.LinkedItem, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	for _, it := range r.m.items {
		if it.UserID == p.UserID && it.InstitutionID == p.InstitutionID {
			return nil, item.ErrDuplicateInstitution
		}
	}
	now := time.Now()
	it := &item.LinkedItem{
		ID: r.m.nextID("item"), UserID: p.UserID, ExternalID: p.ExternalID, AccessToken: p.AccessToken,
		InstitutionID: p.InstitutionID, InstitutionName: p.InstitutionName, InstitutionLogo: p.InstitutionLogo,
		CreatedAt: now, UpdatedAt: now,
	}
	r.m.items[it.ID] = it
	copied := *it
	return &copied, nil
}

func (r memItems) Update(ctx context.Context, id string, p item.UpdateParams) (*item.LinkedItem, error) {
	it, ok := r.m.items[id]
	if !ok {
		return nil, item.ErrItemNotFound
	}
	it.ExternalID = p.ExternalID
	it.AccessToken = p.AccessToken
	it.InstitutionName = p.InstitutionName
	it.InstitutionLogo = p.InstitutionLogo
	it.UpdatedAt = time.Now()
	copied := *it
	return &copied, nil
}

func (r memItems) GetByID(ctx context.Context, id string) (*item.LinkedItem, error) {
	it, ok := r.m.items[id]
	if !ok {
		return nil, item.ErrItemNotFound
	}
	copied := *it
	return &copied, nil
}

func (r memItems) FindByInstitution(ctx context.Context, userID, institutionID string) (*item.LinkedItem, error) {
	for _, it := range r.m.items {
		if it.UserID == userID && it.InstitutionID == institutionID {
			copied := *it
			return &copied, nil
		}
	}
	return nil, item.ErrItemNotFound
}

func (r memItems) ListByUserID(ctx context.Context, userID string) ([]*item.LinkedItem, error) {
	var out []*item.LinkedItem
	for _, it := range r.m.items {
		if it.UserID == userID {
			copied := *it
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memItems) ListUserIDs(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, it := range r.m.items {
		if !seen[it.UserID] {
			seen[it.UserID] = true
			out = append(out, it.UserID)
		}
	}
	sort.Strings(out)
	return out, nil
}

type memAccounts struct{ m *memStore }

func (r memAccounts) Create(ctx context.Context, p account.CreateParams) (*account.Account, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	for _, a := range r.m.accounts {
		if a.ExternalID == p.ExternalID {
			return nil, fmt.Errorf("duplicate external account id %s", p.ExternalID)
		}
	}
	now := time.Now()
	a := &account.Account{
		ID: r.m.nextID("acc"), LinkedItemID: p.LinkedItemID, ExternalID: p.ExternalID, Name: p.Name,
		Type: p.Type, Subtype: p.Subtype, Mask: p.Mask, CreatedAt: now, UpdatedAt: now,
	}
	r.m.accounts[a.ID] = a
	copied := *a
	return &copied, nil
}

func (r memAccounts) Update(ctx context.Context, id string, p account.UpdateParams) (*account.Account, error) {
	a, ok := r.m.accounts[id]
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	a.ExternalID, a.Name, a.Type, a.Subtype, a.Mask = p.ExternalID, p.Name, p.Type, p.Subtype, p.Mask
	a.Hidden = false
	a.UpdatedAt = time.Now()
	copied := *a
	return &copied, nil
}

func (r memAccounts) GetByID(ctx context.Context, id string) (*account.Account, error) {
	a, ok := r.m.accounts[id]
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	copied := *a
	return &copied, nil
}

func (r memAccounts) ListByItemID(ctx context.Context, itemID string) ([]*account.Account, error) {
	var out []*account.Account
	for _, a := range r.m.accountsOfItem(itemID) {
		copied := *a
		out = append(out, &copied)
	}
	return out, nil
}

func (r memAccounts) ListVisibleByUserID(ctx context.Context, userID string) ([]*account.Account, error) {
	var out []*account.Account
	for _, it := range r.m.items {
		if it.UserID != userID {
			continue
		}
		for _, a := range r.m.accountsOfItem(it.ID) {
			if !a.Hidden {
				copied := *a
				out = append(out, &copied)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memAccounts) Hide(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if a, ok := r.m.accounts[id]; ok {
			a.Hidden = true
		}
	}
	return nil
}

func (r memAccounts) SetNickname(ctx context.Context, id, nickname string) error {
	a, ok := r.m.accounts[id]
	if !ok {
		return account.ErrAccountNotFound
	}
	a.Nickname = nickname
	return nil
}

func (r memAccounts) SaveCursor(ctx context.Context, id, cursor string) error {
	a, ok := r.m.accounts[id]
	if !ok {
		return account.ErrAccountNotFound
	}
	a.SyncCursor = cursor
	return nil
}

type memBalances struct{ m *memStore }

func (r memBalances) Append(ctx context.Context, p account.BalanceParams) (*account.Balance, error) {
	if r.m.failBalanceAppendAfter > 0 && r.m.balanceAppends >= r.m.failBalanceAppendAfter {
		return nil, errInjected
	}
	r.m.balanceAppends++
	b := &account.Balance{
		ID: r.m.nextID("bal"), AccountID: p.AccountID, Current: p.Current,
		Available: p.Available, Limit: p.Limit, Date: p.Date,
	}
	r.m.balances = append(r.m.balances, b)
	return b, nil
}

func (r memBalances) Latest(ctx context.Context, accountID string) (*account.Balance, error) {
	all := r.m.balancesOf(accountID)
	if len(all) == 0 {
		return nil, account.ErrBalanceNotFound
	}
	return all[len(all)-1], nil
}

func (r memBalances) History(ctx context.Context, accountID string) ([]*account.Balance, error) {
	return r.m.balancesOf(accountID), nil
}

type memTransactions struct{ m *memStore }

func (r memTransactions) InsertMany(ctx context.Context, params []transaction.CreateParams) (int, error) {
	if r.m.failInsertMany {
		return 0, errInjected
	}
	inserted := 0
	for _, p := range params {
		if _, exists := r.m.txs[p.ExternalID]; exists {
			continue
		}
		now := time.Now()
		r.m.txs[p.ExternalID] = &transaction.Transaction{
			ID: r.m.nextID("tx"), AccountID: p.AccountID, ExternalID: p.ExternalID, Date: p.Date,
			AuthorizedDate: p.AuthorizedDate, Name: p.Name, MerchantName: p.MerchantName, Amount: p.Amount,
			IsoCurrencyCode: p.IsoCurrencyCode, Category: p.Category, PersonalFinanceCategory: p.PersonalFinanceCategory,
			PaymentChannel: p.PaymentChannel, Pending: p.Pending, CreatedAt: now, UpdatedAt: now,
		}
		inserted++
	}
	return inserted, nil
}

func (r memTransactions) UpdateByExternalID(ctx context.Context, accountID, externalID string, p transaction.UpdateParams) error {
	t, ok := r.m.txs[externalID]
	if !ok || t.AccountID != accountID {
		return nil
	}
	t.Date, t.Name, t.MerchantName, t.Amount = p.Date, p.Name, p.MerchantName, p.Amount
	t.Category, t.PersonalFinanceCategory, t.Pending = p.Category, p.PersonalFinanceCategory, p.Pending
	t.UpdatedAt = time.Now()
	return nil
}

func (r memTransactions) DeleteByExternalIDs(ctx context.Context, accountID string, externalIDs []string) (int, error) {
	deleted := 0
	for _, id := range externalIDs {
		if t, ok := r.m.txs[id]; ok && t.AccountID == accountID {
			delete(r.m.txs, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r memTransactions) ListByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*transaction.Transaction, error) {
	all := r.m.transactionsOf(accountID)
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r memTransactions) ListByAccountSince(ctx context.Context, accountID string, since time.Time) ([]*transaction.Transaction, error) {
	var out []*transaction.Transaction
	for _, t := range r.m.transactionsOf(accountID) {
		if since.IsZero() || t.Date.After(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r memTransactions) CountByAccountID(ctx context.Context, accountID string) (int, error) {
	return len(r.m.transactionsOf(accountID)), nil
}

type memLogs struct{ m *memStore }

func (r memLogs) Create(ctx context.Context, p transaction.DownloadLogParams) (*transaction.DownloadLog, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	l := &transaction.DownloadLog{
		ID: r.m.nextID("log"), AccountID: p.AccountID, StartDate: p.StartDate, EndDate: p.EndDate,
		NumTransactions: p.NumTransactions, Status: p.Status, ErrorMessage: p.ErrorMessage, CreatedAt: time.Now(),
	}
	r.m.logs = append(r.m.logs, l)
	return l, nil
}

func (r memLogs) ListByAccountID(ctx context.Context, accountID string, limit int) ([]*transaction.DownloadLog, error) {
	var out []*transaction.DownloadLog
	for i := len(r.m.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if r.m.logs[i].AccountID == accountID {
			out = append(out, r.m.logs[i])
		}
	}
	return out, nil
}
