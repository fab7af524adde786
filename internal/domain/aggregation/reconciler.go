package aggregation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"ansel/internal/domain/account"
	"ansel/internal/domain/item"
	"ansel/internal/infrastructure/plaid"
)

// Link token settings
const (
	DefaultClientName = "Ansel Tracker"
	linkLanguage      = "en"
	linkDaysRequested = 730
)

var linkProducts = []string{"transactions"}

// ReconcileResult contains the results of linking an institution
type ReconcileResult struct {
	ItemID          string `json:"itemId"`
	InstitutionID   string `json:"institutionId"`
	InstitutionName string `json:"institutionName"`
	InstitutionLogo string `json:"institutionLogo,omitempty"`
	NewItem         bool   `json:"newItem"`
	AccountsFound   int    `json:"accountsFound"`
	Created         int    `json:"created"`
	Updated         int    `json:"updated"`
	Hidden          int    `json:"hidden"`
}

// Message returns the human readable outcome
func (r *ReconcileResult) Message() string {
	if r.NewItem {
		return "Created new institution and accounts"
	}
	return "Updated existing institution"
}

// ReconcilerConfig holds link settings
type ReconcilerConfig struct {
	ClientName string
	// InstitutionLogos maps institution ids to logo URLs for institutions
	// the aggregator returns no logo for.
	InstitutionLogos map[string]string
}

// Reconciler links institutions and reconciles their accounts with the
// ones already stored.
type Reconciler struct {
	client plaid.ClientInterface
	tx     Transactor
	cfg    ReconcilerConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewReconciler creates a new reconciler
func NewReconciler(client plaid.ClientInterface, tx Transactor, cfg ReconcilerConfig, logger *zap.Logger) *Reconciler {
	if cfg.ClientName == "" {
		cfg.ClientName = DefaultClientName
	}
	return &Reconciler{client: client, tx: tx, cfg: cfg, logger: logger, now: time.Now}
}

// CreateLinkToken creates a Link token for the user
func (r *Reconciler) CreateLinkToken(ctx context.Context, userID string) (*plaid.LinkTokenResponse, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	resp, err := r.client.CreateLinkToken(ctx, plaid.LinkTokenRequest{
		ClientName:   r.cfg.ClientName,
		Language:     linkLanguage,
		CountryCodes: plaid.CountryCodes,
		User:         plaid.LinkUser{ClientUserID: userID},
		Products:     linkProducts,
		Transactions: &plaid.LinkTransactions{DaysRequested: linkDaysRequested},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create link token: %w", err)
	}

	return resp, nil
}

// Reconcile exchanges the public token and stores the institution and its
// accounts for the user. All API calls happen first; every write then runs
// in one transaction so a failure leaves the stored item untouched.
func (r *Reconciler) Reconcile(ctx context.Context, userID, publicToken string) (*ReconcileResult, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	if strings.TrimSpace(publicToken) == "" {
		return nil, ErrInvalidPublicToken
	}

	exchange, err := r.client.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange public token: %w", err)
	}

	itemResp, err := r.client.GetItem(ctx, exchange.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	institutionID := itemResp.Item.GetInstitutionID()
	if institutionID == "" {
		return nil, ErrMissingInstitution
	}

	instResp, err := r.client.GetInstitution(ctx, institutionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get institution %s: %w", institutionID, err)
	}

	accountsResp, err := r.client.GetAccounts(ctx, exchange.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to get accounts: %w", err)
	}

	institution := instResp.Institution
	result := &ReconcileResult{
		InstitutionID:   institutionID,
		InstitutionName: institution.Name,
		InstitutionLogo: item.FormatLogo(institution.GetLogo(), institutionID, r.cfg.InstitutionLogos),
		AccountsFound:   len(accountsResp.Accounts),
	}

	externalItemID := exchange.ItemID
	if externalItemID == "" {
		externalItemID = itemResp.Item.ItemID
	}

	err = r.tx.WithinTx(ctx, func(s Stores) error {
		existing, err := s.Items.FindByInstitution(ctx, userID, institutionID)
		switch {
		case errors.Is(err, item.ErrItemNotFound):
			return r.linkNew(ctx, s, userID, externalItemID, exchange.AccessToken, accountsResp.Accounts, result)
		case err != nil:
			return fmt.Errorf("failed to look up item: %w", err)
		default:
			return r.relink(ctx, s, existing, externalItemID, exchange.AccessToken, accountsResp.Accounts, result)
		}
	})
	if err != nil {
		return nil, err
	}

	reconciledAccounts.Add(ctx, int64(result.Created), metric.WithAttributes(attribute.String("outcome", "created")))
	reconciledAccounts.Add(ctx, int64(result.Updated), metric.WithAttributes(attribute.String("outcome", "updated")))
	reconciledAccounts.Add(ctx, int64(result.Hidden), metric.WithAttributes(attribute.String("outcome", "hidden")))

	r.logger.Info("institution reconciled",
		zap.String("user_id", userID),
		zap.String("institution_id", institutionID),
		zap.Bool("new_item", result.NewItem),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("hidden", result.Hidden),
	)

	return result, nil
}

func (r *Reconciler) linkNew(ctx context.Context, s Stores, userID, externalItemID, accessToken string, reported []plaid.Account, result *ReconcileResult) error {
	created, err := s.Items.Create(ctx, item.CreateParams{
		UserID:          userID,
		ExternalID:      externalItemID,
		AccessToken:     accessToken,
		InstitutionID:   result.InstitutionID,
		InstitutionName: result.InstitutionName,
		InstitutionLogo: result.InstitutionLogo,
	})
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}

	result.ItemID = created.ID
	result.NewItem = true

	for _, apiAccount := range reported {
		if err := r.createAccount(ctx, s, created.ID, apiAccount); err != nil {
			return err
		}
		result.Created++
	}

	return nil
}

func (r *Reconciler) relink(ctx context.Context, s Stores, existing *item.LinkedItem, externalItemID, accessToken string, reported []plaid.Account, result *ReconcileResult) error {
	updated, err := s.Items.Update(ctx, existing.ID, item.UpdateParams{
		ExternalID:      externalItemID,
		AccessToken:     accessToken,
		InstitutionName: result.InstitutionName,
		InstitutionLogo: result.InstitutionLogo,
	})
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	result.ItemID = updated.ID

	stored, err := s.Accounts.ListByItemID(ctx, existing.ID)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	matcher := account.NewMatcher(stored)

	for _, apiAccount := range reported {
		match := matcher.Claim(apiAccount.GetMask(), apiAccount.Type, apiAccount.GetSubtype())
		if match == nil {
			if err := r.createAccount(ctx, s, existing.ID, apiAccount); err != nil {
				return err
			}
			result.Created++
			continue
		}

		_, err := s.Accounts.Update(ctx, match.ID, account.UpdateParams{
			ExternalID: apiAccount.AccountID,
			Name:       apiAccount.Name,
			Type:       apiAccount.Type,
			Subtype:    apiAccount.GetSubtype(),
			Mask:       apiAccount.GetMask(),
		})
		if err != nil {
			return fmt.Errorf("failed to update account %s: %w", match.ID, err)
		}
		if err := r.appendBalance(ctx, s, match.ID, apiAccount.Balances); err != nil {
			return err
		}
		result.Updated++
	}

	var stale []string
	for _, acct := range matcher.Unclaimed() {
		if !acct.Hidden {
			stale = append(stale, acct.ID)
		}
	}
	if len(stale) > 0 {
		if err := s.Accounts.Hide(ctx, stale); err != nil {
			return fmt.Errorf("failed to hide stale accounts: %w", err)
		}
		result.Hidden = len(stale)
	}

	return nil
}

func (r *Reconciler) createAccount(ctx context.Context, s Stores, itemID string, apiAccount plaid.Account) error {
	created, err := s.Accounts.Create(ctx, account.CreateParams{
		LinkedItemID: itemID,
		ExternalID:   apiAccount.AccountID,
		Name:         apiAccount.Name,
		Type:         apiAccount.Type,
		Subtype:      apiAccount.GetSubtype(),
		Mask:         apiAccount.GetMask(),
	})
	if err != nil {
		return fmt.Errorf("failed to create account %s: %w", apiAccount.AccountID, err)
	}
	return r.appendBalance(ctx, s, created.ID, apiAccount.Balances)
}

func (r *Reconciler) appendBalance(ctx context.Context, s Stores, accountID string, balances plaid.Balances) error {
	_, err := s.Balances.Append(ctx, balanceParams(accountID, balances, r.now()))
	if err != nil {
		return fmt.Errorf("failed to append balance for account %s: %w", accountID, err)
	}
	balanceSnapshots.Add(ctx, 1)
	return nil
}

func balanceParams(accountID string, balances plaid.Balances, at time.Time) account.BalanceParams {
	return account.BalanceParams{
		AccountID: accountID,
		Current:   balances.GetCurrent(),
		Available: balances.GetAvailable(),
		Limit:     balances.GetLimit(),
		Date:      at,
	}
}
