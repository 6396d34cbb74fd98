// Package limiter caps failed second-factor attempts per user.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps backend failures so callers can decide to fail open.
var ErrUnavailable = errors.New("attempt limiter unavailable")

// Limiter tracks failed second-factor attempts.
type Limiter interface {
	// Locked reports whether the user has exhausted their attempts.
	Locked(ctx context.Context, userID string) (bool, error)
	// RecordFailure counts one failed attempt.
	RecordFailure(ctx context.Context, userID string) error
	// Reset clears the counter after a successful attempt.
	Reset(ctx context.Context, userID string) error
}

// Redis counts failures under a per-user key that expires lockout after
// the first failure of a window.
type Redis struct {
	client      *redis.Client
	maxAttempts int64
	lockout     time.Duration
}

// NewRedis creates a Redis backed limiter.
func NewRedis(client *redis.Client, maxAttempts int, lockout time.Duration) *Redis {
	return &Redis{client: client, maxAttempts: int64(maxAttempts), lockout: lockout}
}

func (l *Redis) key(userID string) string {
	return "mfa:att:" + userID
}

// Locked reports whether the user has reached the failure limit
func (l *Redis) Locked(ctx context.Context, userID string) (bool, error) {
	count, err := l.client.Get(ctx, l.key(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return count >= l.maxAttempts, nil
}

// RecordFailure increments the failure counter
func (l *Redis) RecordFailure(ctx context.Context, userID string) error {
	count, err := l.client.Incr(ctx, l.key(userID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, l.key(userID), l.lockout).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return nil
}

// Reset clears the failure counter
func (l *Redis) Reset(ctx context.Context, userID string) error {
	if err := l.client.Del(ctx, l.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Noop never locks. Used when no Redis address is configured.
type Noop struct{}

func (Noop) Locked(context.Context, string) (bool, error) { return false, nil }
func (Noop) RecordFailure(context.Context, string) error  { return nil }
func (Noop) Reset(context.Context, string) error          { return nil }
