package notification

import "context"

// Repository defines the interface for device token storage.
// Defined in the domain layer, implemented in the infrastructure layer.
type Repository interface {
	// UpsertDeviceToken registers the token, reassigning it when another
	// user held it before, and marks it active.
	UpsertDeviceToken(ctx context.Context, params RegisterDeviceParams) (*DeviceToken, error)
	GetActiveTokensByUserID(ctx context.Context, userID string) ([]*DeviceToken, error)
	DeactivateToken(ctx context.Context, token string) error
}
