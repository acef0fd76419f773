package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"eduadmin-console/internal/school"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists edge sessions in Redis with the session TTL as the
// key TTL, so abandoned sessions vanish on their own.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "console:session:"}
}

func (r *RedisStore) key(userID string) string {
	return r.prefix + userID
}

func (r *RedisStore) Put(ctx context.Context, s Session) error {
	if s.UserID == "" {
		return errors.New("user_id required")
	}
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return errors.New("expires_at must be in the future")
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("state: marshal session: %w", err)
	}
	return r.client.Set(ctx, r.key(s.UserID), data, ttl).Err()
}

func (r *RedisStore) Get(ctx context.Context, userID string) (Session, error) {
	val, err := r.client.Get(ctx, r.key(userID)).Result()
	if err == redis.Nil {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}

	var s Session
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return Session{}, fmt.Errorf("state: unmarshal session: %w", err)
	}
	return s, nil
}

func (r *RedisStore) SetInstitution(ctx context.Context, userID string, inst *school.School) error {
	s, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}
	s.Institution = inst
	return r.Put(ctx, s)
}

func (r *RedisStore) Delete(ctx context.Context, userID string) error {
	return r.client.Del(ctx, r.key(userID)).Err()
}
