package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"ansel/internal/domain/aggregation"
	"ansel/internal/infrastructure/crypto"
	"ansel/internal/infrastructure/plaid"
	"ansel/internal/infrastructure/postgres"
	"ansel/internal/infrastructure/redis"
	"ansel/internal/shared/config"
	"ansel/internal/shared/logger"
)

const usage = `Ansel Admin CLI - Management commands for the Ansel API

Usage:
  admin <command> [options]

Commands:
  migrate            Apply pending database migrations
  sync-account       Download transactions for one account
  refresh-balances   Fetch current balances for one user or every user

Examples:
  admin migrate

  # Incremental sync from the stored cursor
  admin sync-account --account-id=4f1c...

  # Discard the cursor and replay the full history
  admin sync-account --account-id=4f1c... --full

  # Refresh balances for a user
  admin refresh-balances --user-id=8a2e...

  # Refresh balances for every user with a linked institution
  admin refresh-balances --all --timeout=1h
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage + "\n")
		os.Exit(1)
	}

	command := os.Args[1]

	var err error
	switch command {
	case "migrate":
		err = runMigrate(os.Args[2:])
	case "sync-account":
		err = runSyncAccount(os.Args[2:])
	case "refresh-balances":
		err = runRefreshBalances(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage + "\n")
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage + "\n")
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env bundles what every command needs
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *postgres.DB
}

func setup(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, err
	}

	db, err := postgres.New(ctx, postgres.Config{
		DSN:            cfg.Database.ConnectionString(),
		MaxOpenConns:   5,
		ConnectTimeout: cfg.Database.ConnectTimeout,
	}, log)
	if err != nil {
		return nil, err
	}

	return &env{cfg: cfg, logger: log, db: db}, nil
}

func (e *env) close() {
	_ = e.db.Close()
	_ = e.logger.Sync()
}

// services builds the aggregation services over the database
func (e *env) services(ctx context.Context) (*aggregation.Synchronizer, *aggregation.BalanceService, *postgres.ItemRepository, error) {
	encryptor, err := crypto.NewEncryptor(e.cfg.Encryption.Key)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create encryptor: %w", err)
	}

	client, err := plaid.NewClient(plaid.Config{
		ClientID:          e.cfg.Plaid.ClientID,
		Secret:            e.cfg.Plaid.Secret,
		Environment:       e.cfg.Plaid.Environment,
		RequestsPerSecond: e.cfg.Plaid.RequestsPerSecond,
		Timeout:           e.cfg.Plaid.Timeout,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create plaid client: %w", err)
	}

	// Share the API's lock so a manual sync cannot overlap a scheduled one
	var locker aggregation.Locker = aggregation.NewLocalLocker()
	if e.cfg.Redis.Enabled() {
		rc, err := redis.New(ctx, redis.Config{
			Addr:     e.cfg.Redis.Addr,
			Password: e.cfg.Redis.Password,
			DB:       e.cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		locker = redis.NewLocker(rc, e.logger)
	}

	transactor := postgres.NewTransactor(e.db, encryptor)
	stores := transactor.Stores()

	syncer := aggregation.NewSynchronizer(client, stores, transactor, locker, nil, e.logger)
	balances := aggregation.NewBalanceService(client, stores, transactor, e.logger)

	return syncer, balances, postgres.NewItemRepository(e.db, encryptor), nil
}

func runMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	return postgres.Migrate(cfg.Database.ConnectionString(), log)
}

func runSyncAccount(args []string) error {
	fs := flag.NewFlagSet("sync-account", flag.ExitOnError)

	accountID := fs.String("account-id", "", "Account ID to sync")
	full := fs.Bool("full", false, "Ignore the stored cursor and download the full history")
	timeout := fs.Duration("timeout", 30*time.Minute, "Timeout for the operation (e.g., 5m, 1h)")

	fs.Usage = func() {
		fmt.Println("Usage: admin sync-account --account-id=<id> [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *accountID == "" {
		fs.Usage()
		return errors.New("must specify --account-id")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	syncer, _, _, err := e.services(ctx)
	if err != nil {
		return err
	}

	startTime := time.Now()
	result, err := syncer.Sync(ctx, aggregation.SyncRequest{AccountID: *accountID, FullResync: *full})
	if err != nil {
		if !errors.Is(err, aggregation.ErrSyncInProgress) {
			if recErr := syncer.RecordFailure(context.WithoutCancel(ctx), *accountID, err); recErr != nil {
				e.logger.Error("failed to record sync failure", zap.Error(recErr))
			}
		}
		return fmt.Errorf("sync failed: %w", err)
	}

	fmt.Printf("\n=== Account %s ===\n", result.AccountID)
	fmt.Printf("  Pages:     %d\n", result.Pages)
	fmt.Printf("  Added:     %d\n", result.Added)
	fmt.Printf("  Inserted:  %d\n", result.Inserted)
	fmt.Printf("  Modified:  %d\n", result.Modified)
	fmt.Printf("  Removed:   %d\n", result.Removed)
	e.logger.Info("sync completed", zap.Duration("elapsed", time.Since(startTime)))

	return nil
}

func runRefreshBalances(args []string) error {
	fs := flag.NewFlagSet("refresh-balances", flag.ExitOnError)

	userIDStr := fs.String("user-id", "", "User ID(s) to refresh (comma-separated for multiple)")
	allUsers := fs.Bool("all", false, "Refresh every user with a linked institution")
	timeout := fs.Duration("timeout", 30*time.Minute, "Timeout for the operation (e.g., 5m, 1h)")

	fs.Usage = func() {
		fmt.Println("Usage: admin refresh-balances [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userIDStr == "" && !*allUsers {
		fs.Usage()
		return errors.New("must specify --user-id or --all")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	_, balances, items, err := e.services(ctx)
	if err != nil {
		return err
	}

	userIDs := splitIDs(*userIDStr)
	if *allUsers {
		userIDs, err = items.ListUserIDs(ctx)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}
		e.logger.Info("found users with linked institutions", zap.Int("count", len(userIDs)))
	}

	if len(userIDs) == 0 {
		fmt.Println("No users to process")
		return nil
	}

	var failed int
	for _, userID := range userIDs {
		result, err := balances.RefreshUser(ctx, userID)
		if err != nil {
			failed++
			fmt.Printf("  %s: error: %v\n", userID, err)
			continue
		}
		fmt.Printf("  %s: %d item(s), %d account(s)\n", userID, result.Items, result.Accounts)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d users failed", failed, len(userIDs))
	}
	return nil
}

func splitIDs(s string) []string {
	var ids []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}
