package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ansel/internal/domain/account"
	"ansel/internal/domain/item"
	"ansel/internal/domain/transaction"
)

// AccountReader is the account read side used by the dashboard
type AccountReader interface {
	GetOwned(ctx context.Context, userID, accountID string) (*account.Account, *item.LinkedItem, error)
	ListSummaries(ctx context.Context, userID string) ([]*account.Summary, error)
	GetSummary(ctx context.Context, userID, accountID string) (*account.Summary, error)
	BalanceHistory(ctx context.Context, userID, accountID string) ([]*account.Balance, error)
	ListItemHistory(ctx context.Context, userID string) ([]*account.ItemHistory, error)
	SetNickname(ctx context.Context, userID, accountID string, params account.NicknameParams) (*account.Account, error)
}

// TransactionReader lists an account's transactions. Ownership is checked
// before calling in.
type TransactionReader interface {
	List(ctx context.Context, accountID string, params transaction.ListParams) (*transaction.Page, error)
	CategoryBreakdown(ctx context.Context, accountID string, days int) ([]transaction.CategoryTotal, error)
	DownloadLogs(ctx context.Context, accountID string, limit int) ([]*transaction.DownloadLog, error)
}

// AccountHandler serves the dashboard reads
type AccountHandler struct {
	accounts     AccountReader
	transactions TransactionReader
	logger       *zap.Logger
}

func NewAccountHandler(accounts AccountReader, transactions TransactionReader, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, transactions: transactions, logger: logger}
}

var errRead = apiError{http.StatusInternalServerError, CodeInternal, "Failed to load data"}

// HandleListAccounts returns the user's visible accounts with their latest balance
func (h *AccountHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, found := requireUser(w, r)
	if !found {
		return
	}

	summaries, err := h.accounts.ListSummaries(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err, errRead)
		return
	}
	if summaries == nil {
		summaries = []*account.Summary{}
	}

	writeJSON(w, http.StatusOK, summaries)
}

// HandleListItems returns linked items with their accounts and balance history
func (h *AccountHandler) HandleListItems(w http.ResponseWriter, r *http.Request) {
	userID, found := requireUser(w, r)
	if !found {
		return
	}

	items, err := h.accounts.ListItemHistory(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err, errRead)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

// HandleGetAccount returns one account with its latest balance
func (h *AccountHandler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	userID, found := requireUser(w, r)
	if !found {
		return
	}

	summary, err := h.accounts.GetSummary(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err, errRead)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// HandleBalanceHistory returns every balance snapshot of an account
func (h *AccountHandler) HandleBalanceHistory(w http.ResponseWriter, r *http.Request) {
	userID, found := requireUser(w, r)
	if !found {
		return
	}

	balances, err := h.accounts.BalanceHistory(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err, errRead)
		return
	}
	if balances == nil {
		balances = []*account.Balance{}
	}

	writeJSON(w, http.StatusOK, balances)
}

// HandleSetNickname renames an account
func (h *AccountHandler) HandleSetNickname(w http.ResponseWriter, r *http.Request) {
	userID, found := requireUser(w, r)
	if !found {
		return
	}

	var params account.NicknameParams
	if err := decodeJSON(r, &params); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	acct, err := h.accounts.SetNickname(r.Context(), userID, chi.URLParam(r, "id"), params)
	if err != nil {
		writeError(w, h.logger, err, apiError{http.StatusInternalServerError, CodeInternal, "Failed to update account"})
		return
	}

	writeJSON(w, http.StatusOK, acct)
}

// HandleListTransactions returns a page of transactions, newest first
func (h *AccountHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, found := h.ownedAccount(w, r)
	if !found {
		return
	}

	limit, err := intQuery(r, "limit")
	if err != nil {
		writeBadRequest(w, "limit must be an integer")
		return
	}
	offset, err := intQuery(r, "offset")
	if err != nil {
		writeBadRequest(w, "offset must be an integer")
		return
	}

	page, err := h.transactions.List(r.Context(), accountID, transaction.ListParams{Limit: limit, Offset: offset})
	if err != nil {
		writeError(w, h.logger, err, errRead)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// HandleCategories returns spending per category. ?days=0 covers all time.
func (h *AccountHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	accountID, found := h.ownedAccount(w, r)
	if !found {
		return
	}

	days, err := intQuery(r, "days")
	if err != nil || days < 0 {
		writeBadRequest(w, "days must be a non-negative integer")
		return
	}

	totals, err := h.transactions.CategoryBreakdown(r.Context(), accountID, days)
	if err != nil {
		writeError(w, h.logger, err, errRead)
		return
	}
	if totals == nil {
		totals = []transaction.CategoryTotal{}
	}

	writeJSON(w, http.StatusOK, totals)
}

// HandleDownloadLogs returns the account's recent sync runs
func (h *AccountHandler) HandleDownloadLogs(w http.ResponseWriter, r *http.Request) {
	accountID, found := h.ownedAccount(w, r)
	if !found {
		return
	}

	limit, err := intQuery(r, "limit")
	if err != nil {
		writeBadRequest(w, "limit must be an integer")
		return
	}

	logs, err := h.transactions.DownloadLogs(r.Context(), accountID, limit)
	if err != nil {
		writeError(w, h.logger, err, errRead)
		return
	}

	writeJSON(w, http.StatusOK, logs)
}

// ownedAccount resolves the {id} route param to an account of the user
func (h *AccountHandler) ownedAccount(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, found := requireUser(w, r)
	if !found {
		return "", false
	}

	acct, _, err := h.accounts.GetOwned(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err, errRead)
		return "", false
	}
	return acct.ID, true
}

// intQuery parses an optional integer query parameter, 0 when absent
func intQuery(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
