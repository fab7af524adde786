package scheduler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"ansel/internal/domain/account"
	"ansel/internal/domain/aggregation"
)

// BalanceRefresher refreshes every linked item of a user
type BalanceRefresher interface {
	RefreshUser(ctx context.Context, userID string) (*aggregation.RefreshResult, error)
}

// AccountLister lists the accounts a user sees on the dashboard
type AccountLister interface {
	ListVisibleByUserID(ctx context.Context, userID string) ([]*account.Account, error)
}

// TransactionSyncer syncs one account and records failed runs
type TransactionSyncer interface {
	Sync(ctx context.Context, req aggregation.SyncRequest) (*aggregation.SyncResult, error)
	RecordFailure(ctx context.Context, accountID string, cause error) error
}

// UserLister lists users with at least one linked item
type UserLister interface {
	ListUserIDs(ctx context.Context) ([]string, error)
}

// SyncServices bundles what a user sync job needs
type SyncServices struct {
	Balances BalanceRefresher
	Accounts AccountLister
	Syncer   TransactionSyncer
	Logger   *zap.Logger
}

// UserSyncJob refreshes a user's balances and then syncs the transactions of
// each visible account. One failing account does not stop the others.
type UserSyncJob struct {
	userID string
	svc    SyncServices
}

func NewUserSyncJob(userID string, svc SyncServices) *UserSyncJob {
	return &UserSyncJob{userID: userID, svc: svc}
}

func (j *UserSyncJob) Execute(ctx context.Context) error {
	log := j.svc.Logger.With(zap.String("user_id", j.userID))
	var errs []error

	refreshed, err := j.svc.Balances.RefreshUser(ctx, j.userID)
	if err != nil {
		errs = append(errs, fmt.Errorf("balance refresh failed: %w", err))
	} else {
		log.Info("balances refreshed", zap.Int("accounts", refreshed.Accounts))
	}

	accounts, err := j.svc.Accounts.ListVisibleByUserID(ctx, j.userID)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to list accounts: %w", err))
		return errors.Join(errs...)
	}

	for _, acct := range accounts {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		result, err := j.svc.Syncer.Sync(ctx, aggregation.SyncRequest{UserID: j.userID, AccountID: acct.ID})
		switch {
		case errors.Is(err, aggregation.ErrSyncInProgress):
			log.Info("sync already running, skipping account", zap.String("account_id", acct.ID))
		case err != nil:
			if recErr := j.svc.Syncer.RecordFailure(context.WithoutCancel(ctx), acct.ID, err); recErr != nil {
				log.Error("failed to record sync failure", zap.String("account_id", acct.ID), zap.Error(recErr))
			}
			errs = append(errs, fmt.Errorf("sync of account %s failed: %w", acct.ID, err))
		default:
			log.Info("account synced",
				zap.String("account_id", acct.ID),
				zap.Int("inserted", result.Inserted),
				zap.Int("modified", result.Modified),
				zap.Int("removed", result.Removed),
			)
		}
	}

	return errors.Join(errs...)
}

func (j *UserSyncJob) UserID() string {
	return j.userID
}

func (j *UserSyncJob) Description() string {
	return "balance refresh and transaction sync"
}

// UserSyncJobs returns a JobProvider creating one UserSyncJob per user with
// linked items.
func UserSyncJobs(users UserLister, svc SyncServices) JobProvider {
	return func(ctx context.Context) ([]Job, error) {
		userIDs, err := users.ListUserIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list users: %w", err)
		}

		jobs := make([]Job, 0, len(userIDs))
		for _, userID := range userIDs {
			jobs = append(jobs, NewUserSyncJob(userID, svc))
		}
		return jobs, nil
	}
}
