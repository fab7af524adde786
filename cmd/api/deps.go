package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ansel/internal/domain/account"
	"ansel/internal/domain/aggregation"
	"ansel/internal/domain/notification"
	"ansel/internal/domain/transaction"
	"ansel/internal/infrastructure/crypto"
	"ansel/internal/infrastructure/firebase"
	"ansel/internal/infrastructure/plaid"
	"ansel/internal/infrastructure/postgres"
	"ansel/internal/infrastructure/redis"
	httphandlers "ansel/internal/interfaces/http"
	"ansel/internal/interfaces/scheduler"
	"ansel/internal/shared/auth"
	"ansel/internal/shared/config"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB    *postgres.DB
	Redis *goredis.Client

	// Handlers
	PlaidHandler        *httphandlers.PlaidHandler
	AccountHandler      *httphandlers.AccountHandler
	NotificationHandler *httphandlers.NotificationHandler

	// Auth
	JWT *auth.JWT

	// Sync services (for scheduler and admin commands)
	Reconciler   *aggregation.Reconciler
	Synchronizer *aggregation.Synchronizer
	Balances     *aggregation.BalanceService

	// Repositories (for scheduler job provider)
	ItemRepo    *postgres.ItemRepository
	AccountRepo *postgres.AccountRepository
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	db, err := postgres.New(ctx, postgres.Config{
		DSN:            cfg.Database.ConnectionString(),
		MaxOpenConns:   cfg.Database.MaxOpenConns,
		ConnectTimeout: cfg.Database.ConnectTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to database", zap.String("host", cfg.Database.Host), zap.String("database", cfg.Database.DBName))

	deps := &Dependencies{DB: db}
	if err := deps.build(ctx, cfg, logger); err != nil {
		deps.Close()
		return nil, err
	}
	return deps, nil
}

func (d *Dependencies) build(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if err := postgres.Migrate(cfg.Database.ConnectionString(), logger); err != nil {
		return err
	}

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		return fmt.Errorf("failed to create encryptor: %w", err)
	}

	// Initialize repositories
	transactor := postgres.NewTransactor(d.DB, encryptor)
	stores := transactor.Stores()
	d.ItemRepo = postgres.NewItemRepository(d.DB, encryptor)
	d.AccountRepo = postgres.NewAccountRepository(d.DB)
	deviceRepo := postgres.NewDeviceTokenRepository(d.DB)

	plaidClient, err := plaid.NewClient(plaid.Config{
		ClientID:          cfg.Plaid.ClientID,
		Secret:            cfg.Plaid.Secret,
		Environment:       cfg.Plaid.Environment,
		RequestsPerSecond: cfg.Plaid.RequestsPerSecond,
		Timeout:           cfg.Plaid.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create plaid client: %w", err)
	}

	locker, err := d.newLocker(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Push notifications are optional
	var messenger notification.Messenger
	if cfg.Firebase.CredentialsFile != "" {
		fcm, err := firebase.NewClient(ctx, cfg.Firebase.CredentialsFile, deviceRepo.DeactivateToken, logger)
		if err != nil {
			return err
		}
		messenger = fcm
		logger.Info("firebase messaging enabled")
	} else {
		logger.Info("firebase credentials not set, push notifications disabled")
	}
	notifications := notification.NewService(deviceRepo, messenger, logger)

	logos, err := loadInstitutionLogos(cfg.Plaid.LogoFile)
	if err != nil {
		return err
	}

	// Initialize aggregation services
	d.Reconciler = aggregation.NewReconciler(plaidClient, transactor, aggregation.ReconcilerConfig{
		ClientName:       cfg.Plaid.ClientName,
		InstitutionLogos: logos,
	}, logger)
	d.Synchronizer = aggregation.NewSynchronizer(plaidClient, stores, transactor, locker, notifications, logger)
	d.Balances = aggregation.NewBalanceService(plaidClient, stores, transactor, logger)

	accountService := account.NewService(stores.Accounts, stores.Balances, stores.Items, d.AccountRepo)
	transactionService := transaction.NewService(stores.Transactions, stores.DownloadLogs)

	// Initialize handlers
	d.JWT = auth.NewJWT(cfg.JWT.Secret)
	d.PlaidHandler = httphandlers.NewPlaidHandler(d.Reconciler, d.Balances, d.Synchronizer, logger)
	d.AccountHandler = httphandlers.NewAccountHandler(accountService, transactionService, logger)
	d.NotificationHandler = httphandlers.NewNotificationHandler(notifications, logger)

	return nil
}

// newLocker returns the Redis lock when Redis is configured so that the API
// and admin processes share it. A single process falls back to an in-memory
// lock.
func (d *Dependencies) newLocker(ctx context.Context, cfg *config.Config, logger *zap.Logger) (aggregation.Locker, error) {
	if !cfg.Redis.Enabled() {
		logger.Info("redis not configured, using in-process sync lock")
		return aggregation.NewLocalLocker(), nil
	}

	client, err := redis.New(ctx, redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, err
	}
	d.Redis = client
	logger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))

	return redis.NewLocker(client, logger), nil
}

// SyncServices returns what the scheduler's user sync jobs need.
func (d *Dependencies) SyncServices(logger *zap.Logger) scheduler.SyncServices {
	return scheduler.SyncServices{
		Balances: d.Balances,
		Accounts: d.AccountRepo,
		Syncer:   d.Synchronizer,
		Logger:   logger,
	}
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}

func loadInstitutionLogos(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read institution logo file: %w", err)
	}

	var logos map[string]string
	if err := json.Unmarshal(data, &logos); err != nil {
		return nil, fmt.Errorf("failed to parse institution logo file %s: %w", path, err)
	}
	return logos, nil
}
