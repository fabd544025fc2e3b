// Package session provides refresh session storage backends.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"notelab/api/internal/store"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when a refresh token is missing or expired.
var ErrSessionNotFound = errors.New("refresh session not found or expired")

const (
	keyPrefix = "refresh:"
	// fallbackTTL guards against callers passing an expiry in the past.
	fallbackTTL = 30 * 24 * time.Hour
	connTimeout = 5 * time.Second
)

// sessionRecord is the JSON payload stored under each token hash. The user
// snapshot lets a refresh succeed without a database round trip.
type sessionRecord struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisStore keeps refresh sessions in Redis with per-key TTLs, so expiry
// needs no sweeper.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the given Redis URL and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), connTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient wraps an existing client. Used by tests.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error {
	payload, err := json.Marshal(sessionRecord{
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = fallbackTTL
	}
	if err := s.client.Set(ctx, keyPrefix+tokenHash, payload, ttl).Err(); err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *RedisStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	payload, err := s.client.Get(ctx, keyPrefix+tokenHash).Result()
	if errors.Is(err, redis.Nil) {
		return store.User{}, ErrSessionNotFound
	}
	if err != nil {
		return store.User{}, fmt.Errorf("lookup refresh session: %w", err)
	}

	var rec sessionRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return store.User{}, fmt.Errorf("unmarshal session: %w", err)
	}
	if rec.Role == "" {
		rec.Role = store.RoleMember
	}
	return store.User{
		ID:       rec.UserID,
		Username: rec.Username,
		Email:    rec.Email,
		Role:     rec.Role,
	}, nil
}

func (s *RedisStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, keyPrefix+tokenHash).Err(); err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping reports whether Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
