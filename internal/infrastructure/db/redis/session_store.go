package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/99minutos/admin-backend/internal/core/domain"
)

const (
	defaultSessionTTL = 24 * time.Hour
	lockTTL           = 10 * time.Second
	lockRetryDelay    = 25 * time.Millisecond
	unlockTimeout     = 2 * time.Second
)

// releaseLock deletes the lock only when it is still held by the caller.
var releaseLock = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// SessionStore keeps the administration session state as one JSON blob.
// Key format: admin:<session id>
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore creates a SessionStore. Sessions expire after ttl of
// inactivity; a non-positive ttl uses defaultSessionTTL.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionStore{client: client, ttl: ttl}
}

// Load returns nil, nil for an unknown session.
func (s *SessionStore) Load(ctx context.Context, id string) (*domain.SessionState, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var state domain.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &state, nil
}

func (s *SessionStore) Save(ctx context.Context, id string, state *domain.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.client.Set(ctx, s.key(id), raw, s.ttl).Err()
}

func (s *SessionStore) Clear(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

// Lock acquires the per-session lock with SET NX PX, polling until it is free
// or ctx is done. The lock expires on its own after lockTTL so a crashed
// request cannot hold a session forever.
func (s *SessionStore) Lock(ctx context.Context, id string) (func(), error) {
	key := s.lockKey(id)
	token := uuid.NewString()

	for {
		ok, err := s.client.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("lock session: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("lock session: %w", ctx.Err())
		case <-time.After(lockRetryDelay):
		}
	}

	return func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
		defer cancel()
		_ = releaseLock.Run(unlockCtx, s.client, []string{key}, token).Err()
	}, nil
}

func (s *SessionStore) key(id string) string { return "admin:" + id }

func (s *SessionStore) lockKey(id string) string { return "admin-lock:" + id }
