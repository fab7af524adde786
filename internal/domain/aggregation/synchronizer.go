package aggregation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"ansel/internal/domain/account"
	"ansel/internal/domain/item"
	"ansel/internal/domain/transaction"
	"ansel/internal/infrastructure/plaid"
)

const (
	syncPageSize = 500
	syncLockTTL  = 10 * time.Minute
)

// SyncRequest selects the account to sync. An empty UserID skips the
// ownership check (scheduler and admin callers).
type SyncRequest struct {
	UserID    string
	AccountID string
	// FullResync ignores the stored cursor and replays the whole history.
	FullResync bool
}

// SyncResult contains the results of a transaction sync
type SyncResult struct {
	AccountID string    `json:"accountId"`
	Pages     int       `json:"pages"`
	Added     int       `json:"added"`
	Inserted  int       `json:"inserted"`
	Modified  int       `json:"modified"`
	Removed   int       `json:"removed"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// Synchronizer pulls transaction deltas for one account at a time.
type Synchronizer struct {
	client   plaid.ClientInterface
	stores   Stores
	tx       Transactor
	locker   Locker
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewSynchronizer creates a new synchronizer. notifier may be nil.
func NewSynchronizer(client plaid.ClientInterface, stores Stores, tx Transactor, locker Locker, notifier Notifier, logger *zap.Logger) *Synchronizer {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Synchronizer{
		client:   client,
		stores:   stores,
		tx:       tx,
		locker:   locker,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Sync runs the cursor loop for one account. Each page's deltas are committed
// together with the next cursor, so a failed run resumes after the last
// committed page. A success DownloadLog covers every added transaction of
// the run; failures are recorded by the caller through RecordFailure.
func (s *Synchronizer) Sync(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	acct, linked, err := account.LoadOwned(ctx, s.stores.Accounts, s.stores.Items, req.UserID, req.AccountID)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, accountLockKey(acct.ID), syncLockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	result, err := s.run(ctx, acct, linked, req.FullResync)
	if err != nil {
		syncRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("status", transaction.StatusError)))
		return result, err
	}
	syncRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("status", transaction.StatusSuccess)))

	if s.notifier != nil && result.Inserted > 0 {
		s.notifier.NotifySyncComplete(ctx, linked.UserID, acct.DisplayName(), result.Inserted)
	}

	return result, nil
}

func (s *Synchronizer) run(ctx context.Context, acct *account.Account, linked *item.LinkedItem, fullResync bool) (*SyncResult, error) {
	result := &SyncResult{AccountID: acct.ID}

	cursor := acct.SyncCursor
	if fullResync {
		cursor = ""
	}

	var bounds dateRange
	hasMore := true

	for hasMore {
		page, err := s.client.SyncTransactions(ctx, plaid.SyncRequest{
			AccessToken: linked.AccessToken,
			Cursor:      cursor,
			Count:       syncPageSize,
			AccountID:   acct.ExternalID,
		})
		if err != nil {
			return result, fmt.Errorf("failed to fetch transactions page %d: %w", result.Pages+1, err)
		}
		result.Pages++

		deltas, err := collectDeltas(acct, page)
		if err != nil {
			return result, err
		}

		var inserted int
		err = s.tx.WithinTx(ctx, func(st Stores) error {
			var err error
			inserted, err = applyDeltas(ctx, st, acct.ID, deltas)
			if err != nil {
				return err
			}
			if err := st.Accounts.SaveCursor(ctx, acct.ID, page.NextCursor); err != nil {
				return fmt.Errorf("failed to save sync cursor: %w", err)
			}
			return nil
		})
		if err != nil {
			return result, fmt.Errorf("failed to apply transactions page %d: %w", result.Pages, err)
		}

		for _, added := range deltas.added {
			bounds.extend(added.Date)
		}
		result.Added += len(deltas.added)
		result.Inserted += inserted
		result.Modified += len(deltas.modified)
		result.Removed += len(deltas.removed)

		syncedDeltas.Add(ctx, int64(len(deltas.added)), metric.WithAttributes(attribute.String("kind", "added")))
		syncedDeltas.Add(ctx, int64(len(deltas.modified)), metric.WithAttributes(attribute.String("kind", "modified")))
		syncedDeltas.Add(ctx, int64(len(deltas.removed)), metric.WithAttributes(attribute.String("kind", "removed")))

		cursor = page.NextCursor
		hasMore = page.HasMore
	}

	now := s.now()
	result.StartDate, result.EndDate = bounds.orElse(now)

	_, err := s.stores.DownloadLogs.Create(ctx, transaction.DownloadLogParams{
		AccountID:       acct.ID,
		StartDate:       result.StartDate,
		EndDate:         result.EndDate,
		NumTransactions: result.Added,
		Status:          transaction.StatusSuccess,
	})
	if err != nil {
		return result, fmt.Errorf("failed to record download log: %w", err)
	}

	s.logger.Info("transactions synced",
		zap.String("account_id", acct.ID),
		zap.Int("pages", result.Pages),
		zap.Int("added", result.Added),
		zap.Int("inserted", result.Inserted),
		zap.Int("modified", result.Modified),
		zap.Int("removed", result.Removed),
	)

	return result, nil
}

// RecordFailure stores an error DownloadLog for a failed sync run.
func (s *Synchronizer) RecordFailure(ctx context.Context, accountID string, cause error) error {
	now := s.now()
	message := "unknown error"
	if cause != nil {
		message = cause.Error()
	}

	_, err := s.stores.DownloadLogs.Create(ctx, transaction.DownloadLogParams{
		AccountID:       accountID,
		StartDate:       now,
		EndDate:         now,
		NumTransactions: 0,
		Status:          transaction.StatusError,
		ErrorMessage:    message,
	})
	if err != nil {
		return fmt.Errorf("failed to record failed download log: %w", err)
	}
	return nil
}

type pageDeltas struct {
	added    []transaction.CreateParams
	modified map[string]transaction.UpdateParams
	removed  []string
}

// collectDeltas converts one page into store operations, dropping deltas that
// belong to other accounts of the item.
func collectDeltas(acct *account.Account, page *plaid.SyncResponse) (*pageDeltas, error) {
	deltas := &pageDeltas{modified: make(map[string]transaction.UpdateParams)}

	for _, t := range page.Added {
		if t.AccountID != acct.ExternalID {
			continue
		}
		params, err := createParams(acct.ID, t)
		if err != nil {
			return nil, err
		}
		deltas.added = append(deltas.added, params)
	}

	for _, t := range page.Modified {
		if t.AccountID != acct.ExternalID {
			continue
		}
		date, err := t.GetDate()
		if err != nil {
			return nil, fmt.Errorf("modified transaction %s: %w", t.TransactionID, err)
		}
		deltas.modified[t.TransactionID] = transaction.UpdateParams{
			Date:                    date,
			Name:                    t.Name,
			MerchantName:            t.GetMerchantName(),
			Amount:                  t.Amount,
			Category:                t.GetCategory(),
			PersonalFinanceCategory: t.GetPersonalFinanceCategory(),
			Pending:                 t.Pending,
		}
	}

	for _, t := range page.Removed {
		if t.AccountID != acct.ExternalID {
			continue
		}
		deltas.removed = append(deltas.removed, t.TransactionID)
	}

	return deltas, nil
}

func createParams(accountID string, t plaid.Transaction) (transaction.CreateParams, error) {
	date, err := t.GetDate()
	if err != nil {
		return transaction.CreateParams{}, fmt.Errorf("added transaction %s: %w", t.TransactionID, err)
	}
	authorized, err := t.GetAuthorizedDate()
	if err != nil {
		return transaction.CreateParams{}, fmt.Errorf("added transaction %s: %w", t.TransactionID, err)
	}

	return transaction.CreateParams{
		AccountID:               accountID,
		ExternalID:              t.TransactionID,
		Date:                    date,
		AuthorizedDate:          authorized,
		Name:                    t.Name,
		MerchantName:            t.GetMerchantName(),
		Amount:                  t.Amount,
		IsoCurrencyCode:         t.GetIsoCurrencyCode(),
		Category:                t.GetCategory(),
		PersonalFinanceCategory: t.GetPersonalFinanceCategory(),
		PaymentChannel:          t.PaymentChannel,
		Pending:                 t.Pending,
	}, nil
}

// applyDeltas writes one page: modifications, then removals, then inserts.
func applyDeltas(ctx context.Context, st Stores, accountID string, deltas *pageDeltas) (int, error) {
	for externalID, params := range deltas.modified {
		if err := st.Transactions.UpdateByExternalID(ctx, accountID, externalID, params); err != nil {
			return 0, fmt.Errorf("failed to update transaction %s: %w", externalID, err)
		}
	}

	if len(deltas.removed) > 0 {
		if _, err := st.Transactions.DeleteByExternalIDs(ctx, accountID, deltas.removed); err != nil {
			return 0, fmt.Errorf("failed to delete removed transactions: %w", err)
		}
	}

	if len(deltas.added) == 0 {
		return 0, nil
	}

	inserted, err := st.Transactions.InsertMany(ctx, deltas.added)
	if err != nil {
		return 0, fmt.Errorf("failed to insert transactions: %w", err)
	}
	return inserted, nil
}

// dateRange tracks the earliest and latest dates seen.
type dateRange struct {
	min, max time.Time
	set      bool
}

func (d *dateRange) extend(t time.Time) {
	if !d.set {
		d.min, d.max, d.set = t, t, true
		return
	}
	if t.Before(d.min) {
		d.min = t
	}
	if t.After(d.max) {
		d.max = t
	}
}

func (d dateRange) orElse(fallback time.Time) (time.Time, time.Time) {
	if !d.set {
		return fallback, fallback
	}
	return d.min, d.max
}
