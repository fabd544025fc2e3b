package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"notelab/api/internal/store"
)

// PostgresStore keeps refresh sessions in the refresh_sessions table. It is
// the fallback when no Redis URL is configured.
type PostgresStore struct {
	store *store.PostgresStore
}

func NewPostgresStore(st *store.PostgresStore) *PostgresStore {
	return &PostgresStore{store: st}
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error {
	return s.store.SaveRefreshSession(ctx, tokenHash, user.ID, expiresAt)
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	user, err := s.store.LookupRefreshSession(ctx, tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, ErrSessionNotFound
	}
	if err != nil {
		return store.User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	return s.store.RevokeRefreshSession(ctx, tokenHash)
}
