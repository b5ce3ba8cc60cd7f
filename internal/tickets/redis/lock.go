package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"onfa-ticketing/internal/logger"
	"onfa-ticketing/internal/models"
)

var ErrLockTimeout = errors.New("timed out waiting for tier lock")

const retryInterval = 25 * time.Millisecond

// unlockScript deletes the key only while it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis serialises registrations per tier across service instances.
type Redis struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration, log *logger.Logger) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Redis{Client: client, TTL: ttl, Logger: log}
}

func lockKey(tier models.Tier) string {
	return "registration_lock:" + string(tier)
}

// LockTier makes one attempt to take the tier lock. The returned token is
// needed to release it.
func (r *Redis) LockTier(ctx context.Context, tier models.Tier) (string, bool, error) {
	token := uuid.NewString()
	ok, err := r.Client.SetNX(ctx, lockKey(tier), token, r.TTL).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (r *Redis) UnlockTier(ctx context.Context, tier models.Tier, token string) error {
	return unlockScript.Run(ctx, r.Client, []string{lockKey(tier)}, token).Err()
}

// Acquire blocks until the tier lock is held or ctx is done. The release
// func is safe to call once.
func (r *Redis) Acquire(ctx context.Context, tier models.Tier) (func(), error) {
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		token, ok, err := r.LockTier(ctx, tier)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", ErrLockTimeout, ctx.Err())
			}
			return nil, fmt.Errorf("lock tier %s: %w", tier, err)
		}
		if ok {
			return func() {
				// The request context may already be cancelled; release regardless.
				unlockCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := r.UnlockTier(unlockCtx, tier, token); err != nil && r.Logger != nil {
					r.Logger.Warn("REDIS", fmt.Sprintf("Failed to release lock for tier %s: %v", tier, err))
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}
