// Package aggregation links institutions through the aggregation API and
// keeps accounts, balances and transactions in step with it.
package aggregation

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"ansel/internal/domain/account"
	"ansel/internal/domain/item"
	"ansel/internal/domain/transaction"
)

// Domain errors
var (
	ErrMissingInstitution   = errors.New("item has no institution id")
	ErrAccountNotInResponse = errors.New("account missing from balance response")
	ErrSyncInProgress       = errors.New("sync already in progress for account")
	ErrInvalidPublicToken   = errors.New("public token is required")
	ErrUnauthorized         = errors.New("user is not authenticated")
)

var (
	aggMeter              = otel.Meter("ansel/aggregation")
	reconciledAccounts, _ = aggMeter.Int64Counter("aggregation.reconcile.accounts",
		metric.WithDescription("Accounts processed by reconciliation, by outcome"))
	syncedDeltas, _ = aggMeter.Int64Counter("aggregation.sync.deltas",
		metric.WithDescription("Transaction deltas applied, by kind"))
	syncRuns, _ = aggMeter.Int64Counter("aggregation.sync.runs",
		metric.WithDescription("Transaction sync runs, by status"))
	balanceSnapshots, _ = aggMeter.Int64Counter("aggregation.balance.snapshots",
		metric.WithDescription("Balance snapshots appended"))
)

// Stores groups the repositories the aggregation services write to.
type Stores struct {
	Items        item.Repository
	Accounts     account.Repository
	Balances     account.BalanceRepository
	Transactions transaction.Repository
	DownloadLogs transaction.DownloadLogRepository
}

// Transactor runs fn against stores bound to one database transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(Stores) error) error
}

// Notifier is told about finished syncs that brought in new transactions.
type Notifier interface {
	NotifySyncComplete(ctx context.Context, userID, accountName string, added int)
}
