package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"phone-auth-service/internal/model"
	"phone-auth-service/internal/repository/scylla"
)

// TokenIssuer mints and validates the opaque bearer tokens handed out after
// successful authentication. Login reuses a user's existing token;
// registration always mints a fresh one.
type TokenIssuer struct {
	tokens scylla.TokenRepository
	users  scylla.UserRepository
}

func NewTokenIssuer(tokens scylla.TokenRepository, users scylla.UserRepository) *TokenIssuer {
	return &TokenIssuer{
		tokens: tokens,
		users:  users,
	}
}

// Create always mints and persists a new token for the user.
func (t *TokenIssuer) Create(ctx context.Context, userID string) (*model.AuthToken, error) {
	key, err := newTokenKey()
	if err != nil {
		return nil, err
	}

	token := &model.AuthToken{Key: key, UserID: userID}
	if err := t.tokens.Create(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

// GetOrCreate returns the user's existing token, minting one only when none
// exists yet.
func (t *TokenIssuer) GetOrCreate(ctx context.Context, userID string) (*model.AuthToken, error) {
	token, err := t.tokens.GetByUser(ctx, userID)
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, scylla.ErrNotFound) {
		return nil, err
	}
	return t.Create(ctx, userID)
}

// Validate resolves a bearer token to its user. Unknown keys yield
// ErrInvalidToken; a resolvable key whose user is deactivated yields
// ErrUserInactive.
func (t *TokenIssuer) Validate(ctx context.Context, key string) (*model.User, error) {
	if key == "" {
		return nil, ErrInvalidToken
	}

	token, err := t.tokens.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, scylla.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	user, err := t.users.GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, scylla.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrUserInactive
	}
	return user, nil
}

// newTokenKey returns a 40-character hex key from a CSPRNG.
func newTokenKey() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token key: %w", err)
	}
	return hex.EncodeToString(b), nil
}
