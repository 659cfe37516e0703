package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"phone-auth-service/internal/model"
	"phone-auth-service/internal/util"
)

const (
	insertToken       = `INSERT INTO auth_tokens (token_key, user_id, created_at) VALUES (?, ?, ?)`
	upsertTokenByUser = `INSERT INTO tokens_by_user (user_id, token_key, created_at) VALUES (?, ?, ?)`
	selectTokenByUser = `SELECT user_id, token_key, created_at FROM tokens_by_user WHERE user_id = ?`
	selectTokenByKey  = `SELECT token_key, user_id, created_at FROM auth_tokens WHERE token_key = ?`
)

// ScyllaTokenRepository stores opaque bearer tokens. auth_tokens answers
// "which user owns this key"; tokens_by_user holds the latest key per user
// for the login reuse path.
type ScyllaTokenRepository struct {
	client *ScyllaClient
}

func NewTokenRepository(client *ScyllaClient) *ScyllaTokenRepository {
	return &ScyllaTokenRepository{client: client}
}

func (r *ScyllaTokenRepository) Create(ctx context.Context, token *model.AuthToken) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}

	batch := r.client.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(insertToken, token.Key, token.UserID, token.CreatedAt)
	batch.Query(upsertTokenByUser, token.UserID, token.Key, token.CreatedAt)

	if err := r.client.Session.ExecuteBatch(batch); err != nil {
		util.Error("Failed to create auth token",
			zap.String("user_id", token.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to create auth token: %w", err)
	}
	return nil
}

func (r *ScyllaTokenRepository) GetByUser(ctx context.Context, userID string) (*model.AuthToken, error) {
	token := &model.AuthToken{}
	err := r.client.Session.Query(selectTokenByUser, userID).WithContext(ctx).Scan(
		&token.UserID, &token.Key, &token.CreatedAt)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get token by user: %w", err)
	}
	return token, nil
}

func (r *ScyllaTokenRepository) GetByKey(ctx context.Context, key string) (*model.AuthToken, error) {
	token := &model.AuthToken{}
	err := r.client.Session.Query(selectTokenByKey, key).WithContext(ctx).Scan(
		&token.Key, &token.UserID, &token.CreatedAt)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get token by key: %w", err)
	}
	return token, nil
}
