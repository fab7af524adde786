package notification

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Route sent with sync notices so the app can open the account screen
const syncRoute = "transactions"

// Service contains the business logic for notification operations
type Service struct {
	repo      Repository
	messenger Messenger
	logger    *zap.Logger
}

// NewService creates a new notification service. messenger may be nil,
// in which case notices are skipped.
func NewService(repo Repository, messenger Messenger, logger *zap.Logger) *Service {
	return &Service{repo: repo, messenger: messenger, logger: logger}
}

// RegisterDevice registers a device token for the authenticated user.
// If the token already belongs to another user, it is reassigned.
func (s *Service) RegisterDevice(ctx context.Context, params RegisterDeviceParams) (*DeviceToken, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	token, err := s.repo.UpsertDeviceToken(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to register device: %w", err)
	}

	return token, nil
}

// NotifySyncComplete tells the user's devices how many new transactions a
// sync brought in. Delivery is best effort; failures are only logged.
func (s *Service) NotifySyncComplete(ctx context.Context, userID, accountName string, added int) {
	if s.messenger == nil || added <= 0 {
		return
	}

	tokens, err := s.repo.GetActiveTokensByUserID(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to load device tokens", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if len(tokens) == 0 {
		return
	}

	values := make([]string, len(tokens))
	for i, t := range tokens {
		values[i] = t.Token
	}

	title, body := syncMessage(accountName, added)
	data := map[string]string{
		"route": syncRoute,
		"added": fmt.Sprintf("%d", added),
	}

	if err := s.messenger.SendMulticast(ctx, values, title, body, data); err != nil {
		s.logger.Warn("failed to send sync notification", zap.String("user_id", userID), zap.Error(err))
	}
}

func syncMessage(accountName string, added int) (string, string) {
	noun := "transactions"
	if added == 1 {
		noun = "transaction"
	}
	return "New transactions", fmt.Sprintf("%d new %s in %s", added, noun, accountName)
}
