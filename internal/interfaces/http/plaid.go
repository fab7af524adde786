package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ansel/internal/domain/account"
	"ansel/internal/domain/aggregation"
	"ansel/internal/infrastructure/plaid"
)

// Linker creates link tokens and reconciles exchanged public tokens
type Linker interface {
	CreateLinkToken(ctx context.Context, userID string) (*plaid.LinkTokenResponse, error)
	Reconcile(ctx context.Context, userID, publicToken string) (*aggregation.ReconcileResult, error)
}

// BalanceRefresher appends fresh balance snapshots
type BalanceRefresher interface {
	RefreshUser(ctx context.Context, userID string) (*aggregation.RefreshResult, error)
	RefreshAccount(ctx context.Context, userID, accountID string) (*account.Balance, error)
}

// TransactionSyncer runs transaction syncs and records failed runs
type TransactionSyncer interface {
	Sync(ctx context.Context, req aggregation.SyncRequest) (*aggregation.SyncResult, error)
	RecordFailure(ctx context.Context, accountID string, cause error) error
}

// PlaidHandler serves the aggregation endpoints
type PlaidHandler struct {
	linker   Linker
	balances BalanceRefresher
	syncer   TransactionSyncer
	logger   *zap.Logger
}

func NewPlaidHandler(linker Linker, balances BalanceRefresher, syncer TransactionSyncer, logger *zap.Logger) *PlaidHandler {
	return &PlaidHandler{linker: linker, balances: balances, syncer: syncer, logger: logger}
}

type LinkTokenResponse struct {
	Response
	LinkToken  string `json:"link_token"`
	Expiration string `json:"expiration"`
}

type ExchangeTokenRequest struct {
	PublicToken string `json:"public_token" validate:"required"`
}

type ExchangeTokenResponse struct {
	Response
	*aggregation.ReconcileResult
}

type RefreshBalancesResponse struct {
	Response
	*aggregation.RefreshResult
}

type RefreshAccountBalanceResponse struct {
	Response
	Balance *account.Balance `json:"balance"`
}

type SyncTransactionsResponse struct {
	Response
	*aggregation.SyncResult
}

// HandleCreateLinkToken creates a Link token for the authenticated user
func (h *PlaidHandler) HandleCreateLinkToken(w http.ResponseWriter, r *http.Request) {
	userID, found := requireUser(w, r)
	if !found {
		return
	}

	token, err := h.linker.CreateLinkToken(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err, apiError{http.StatusInternalServerError, CodeLinkTokenError, "Failed to create link token"})
		return
	}

	writeJSON(w, http.StatusOK, LinkTokenResponse{
		Response:   ok("Link token created"),
		LinkToken:  token.LinkToken,
		Expiration: token.Expiration,
	})
}

// HandleExchangeToken exchanges a public token and reconciles the
// institution's accounts
func (h *PlaidHandler) HandleExchangeToken(w http.ResponseWriter, r *http.Request) {
	userID, found := requireUser(w, r)
	if !found {
		return
	}

	var req ExchangeTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	result, err := h.linker.Reconcile(r.Context(), userID, req.PublicToken)
	if err != nil {
		writeError(w, h.logger, err, apiError{http.StatusInternalServerError, CodeExchangeError, "Failed to exchange token"})
		return
	}

	writeJSON(w, http.StatusOK, ExchangeTokenResponse{Response: ok(result.Message()), ReconcileResult: result})
}

// HandleRefreshBalances refreshes the balances of every linked item of the user
func (h *PlaidHandler) HandleRefreshBalances(w http.ResponseWriter, r *http.Request) {
	userID, found := requireUser(w, r)
	if !found {
		return
	}

	result, err := h.balances.RefreshUser(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err, apiError{http.StatusInternalServerError, CodeBalanceError, "Error updating balances"})
		return
	}

	writeJSON(w, http.StatusOK, RefreshBalancesResponse{Response: ok(result.Message()), RefreshResult: result})
}

// HandleRefreshAccountBalance refreshes the balance of one account
func (h *PlaidHandler) HandleRefreshAccountBalance(w http.ResponseWriter, r *http.Request) {
	userID, found := requireUser(w, r)
	if !found {
		return
	}

	balance, err := h.balances.RefreshAccount(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err, apiError{http.StatusInternalServerError, CodeBalanceError, "Error updating balance"})
		return
	}

	writeJSON(w, http.StatusOK, RefreshAccountBalanceResponse{Response: ok("Balance updated"), Balance: balance})
}

// HandleSyncTransactions pulls new transactions for one account. ?full=true
// discards the stored cursor and replays the whole history.
func (h *PlaidHandler) HandleSyncTransactions(w http.ResponseWriter, r *http.Request) {
	userID, found := requireUser(w, r)
	if !found {
		return
	}

	full := false
	if raw := r.URL.Query().Get("full"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeBadRequest(w, "full must be a boolean")
			return
		}
		full = parsed
	}

	accountID := chi.URLParam(r, "id")
	result, err := h.syncer.Sync(r.Context(), aggregation.SyncRequest{
		UserID:     userID,
		AccountID:  accountID,
		FullResync: full,
	})
	if err != nil {
		fallback := apiError{http.StatusInternalServerError, CodeDownloadError, "Error downloading transactions"}
		if resolveError(err, fallback).status >= http.StatusInternalServerError {
			if recErr := h.syncer.RecordFailure(context.WithoutCancel(r.Context()), accountID, err); recErr != nil {
				h.logger.Error("failed to record sync failure", zap.String("account_id", accountID), zap.Error(recErr))
			}
		}
		writeError(w, h.logger, err, fallback)
		return
	}

	writeJSON(w, http.StatusOK, SyncTransactionsResponse{
		Response:   ok("Transactions downloaded successfully"),
		SyncResult: result,
	})
}
