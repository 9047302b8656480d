package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	appErrors "github.com/medconsult-app/medconsult-api/pkg/errors"
)

// ScheduleLocker serialises availability-window edits for a (doctor, date) pair.
type ScheduleLocker interface {
	WithScheduleLock(ctx context.Context, doctorID string, date string, fn func(ctx context.Context) error) error
}

type redisScheduleLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisScheduleLocker creates a locker keyed per doctor and calendar date.
func NewRedisScheduleLocker(client *redis.Client, ttl time.Duration) ScheduleLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &redisScheduleLocker{client: client, ttl: ttl}
}

func (l *redisScheduleLocker) WithScheduleLock(ctx context.Context, doctorID, date string, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:windows:%s:%s", doctorID, date)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "acquire schedule lock")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrLockNotAcquired, "doctor schedule is being edited, retry shortly")
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	lockCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(lockCtx)
}

// unlockScript releases the lock only when the token still matches, so an
// expired lock taken over by another editor is never deleted.
var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisScheduleLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release schedule lock %s: %w", key, err)
	}
	return nil
}

// NoopLocker runs the critical section without coordination. Used when Redis
// is not configured (single-instance deployments, tests).
type NoopLocker struct{}

func (NoopLocker) WithScheduleLock(ctx context.Context, _, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
