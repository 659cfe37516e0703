package scylla

import (
	"context"
	"errors"

	"phone-auth-service/internal/model"
)

// ErrNotFound is returned by repositories when no row matches the lookup.
var ErrNotFound = errors.New("record not found")

// UserRepository abstracts user persistence so the service layer can be
// tested without a live cluster.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByPhone(ctx context.Context, phoneNumber string) (*model.User, error)
	GetByID(ctx context.Context, userID string) (*model.User, error)
	ExistsByPhone(ctx context.Context, phoneNumber string) (bool, error)
	UpdateProfile(ctx context.Context, user *model.User) error
	UpdateLastLogin(ctx context.Context, user *model.User) error
}

// TokenRepository abstracts auth-token persistence.
type TokenRepository interface {
	Create(ctx context.Context, token *model.AuthToken) error
	GetByUser(ctx context.Context, userID string) (*model.AuthToken, error)
	GetByKey(ctx context.Context, key string) (*model.AuthToken, error)
}
