package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ansel/internal/domain/aggregation"
)

// releaseScript deletes the key only while it still holds our token, so a
// holder whose lock expired cannot release someone else's.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

const releaseTimeout = 2 * time.Second

// Locker implements aggregation.Locker with SET NX PX.
type Locker struct {
	client redis.UniversalClient
	logger *zap.Logger
}

func NewLocker(client redis.UniversalClient, logger *zap.Logger) *Locker {
	return &Locker{client: client, logger: logger}
}

// Acquire returns aggregation.ErrSyncInProgress when the key is held.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, aggregation.ErrSyncInProgress
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}

	return release, nil
}
