package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"phone-auth-service/internal/bucketing"
	"phone-auth-service/internal/model"
	"phone-auth-service/internal/util"
)

const (
	insertUserByPhone = `INSERT INTO users_by_phone
		(phone_number, user_bucket, user_id, first_name, last_name, password_hash, is_active, created_at, updated_at, last_login_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	insertUserByID = `INSERT INTO users_by_id
		(user_id, user_bucket, phone_number, first_name, last_name, password_hash, is_active, created_at, updated_at, last_login_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	selectUserByPhone = `SELECT phone_number, user_bucket, user_id, first_name, last_name, password_hash, is_active, created_at, updated_at, last_login_at
		FROM users_by_phone WHERE phone_number = ?`
	selectUserByID = `SELECT phone_number, user_bucket, user_id, first_name, last_name, password_hash, is_active, created_at, updated_at, last_login_at
		FROM users_by_id WHERE user_id = ?`
	selectUserIDByPhone = `SELECT user_id FROM users_by_phone WHERE phone_number = ?`
	updateProfileByPhone = `UPDATE users_by_phone
		SET first_name = ?, last_name = ?, password_hash = ?, updated_at = ? WHERE phone_number = ?`
	updateProfileByID = `UPDATE users_by_id
		SET first_name = ?, last_name = ?, password_hash = ?, updated_at = ? WHERE user_id = ?`
	updateLastLoginByPhone = `UPDATE users_by_phone SET last_login_at = ? WHERE phone_number = ?`
	updateLastLoginByID    = `UPDATE users_by_id SET last_login_at = ? WHERE user_id = ?`
)

// ScyllaUserRepository stores users in a pair of lookup tables, one keyed by
// phone number and one by user ID, kept consistent through logged batches.
type ScyllaUserRepository struct {
	client    *ScyllaClient
	bucketing *bucketing.Manager
}

func NewUserRepository(client *ScyllaClient, bucketingMgr *bucketing.Manager) *ScyllaUserRepository {
	return &ScyllaUserRepository{
		client:    client,
		bucketing: bucketingMgr,
	}
}

func (r *ScyllaUserRepository) Create(ctx context.Context, user *model.User) error {
	if user.UserID == "" {
		user.UserID = uuid.New().String()
	}
	user.UserBucket = r.bucketing.GetUserBucket(user.UserID)

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	batch := r.client.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(insertUserByPhone,
		user.PhoneNumber, user.UserBucket, user.UserID, user.FirstName, user.LastName,
		user.PasswordHash, user.IsActive, user.CreatedAt, user.UpdatedAt, user.LastLoginAt)
	batch.Query(insertUserByID,
		user.UserID, user.UserBucket, user.PhoneNumber, user.FirstName, user.LastName,
		user.PasswordHash, user.IsActive, user.CreatedAt, user.UpdatedAt, user.LastLoginAt)

	if err := r.client.Session.ExecuteBatch(batch); err != nil {
		util.Error("Failed to create user",
			zap.String("user_id", user.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	util.Info("User created",
		zap.String("user_id", user.UserID),
		zap.Int("user_bucket", user.UserBucket))
	return nil
}

func (r *ScyllaUserRepository) GetByPhone(ctx context.Context, phoneNumber string) (*model.User, error) {
	user := &model.User{}
	err := r.client.Session.Query(selectUserByPhone, phoneNumber).WithContext(ctx).Scan(
		&user.PhoneNumber, &user.UserBucket, &user.UserID, &user.FirstName, &user.LastName,
		&user.PasswordHash, &user.IsActive, &user.CreatedAt, &user.UpdatedAt, &user.LastLoginAt)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrNotFound
		}
		util.Error("Failed to get user by phone", zap.Error(err))
		return nil, fmt.Errorf("failed to get user by phone: %w", err)
	}
	return user, nil
}

func (r *ScyllaUserRepository) GetByID(ctx context.Context, userID string) (*model.User, error) {
	user := &model.User{}
	err := r.client.Session.Query(selectUserByID, userID).WithContext(ctx).Scan(
		&user.PhoneNumber, &user.UserBucket, &user.UserID, &user.FirstName, &user.LastName,
		&user.PasswordHash, &user.IsActive, &user.CreatedAt, &user.UpdatedAt, &user.LastLoginAt)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrNotFound
		}
		util.Error("Failed to get user by ID",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

func (r *ScyllaUserRepository) ExistsByPhone(ctx context.Context, phoneNumber string) (bool, error) {
	var userID string
	err := r.client.Session.Query(selectUserIDByPhone, phoneNumber).WithContext(ctx).Scan(&userID)
	if err != nil {
		if err == gocql.ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return true, nil
}

func (r *ScyllaUserRepository) UpdateProfile(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.UpdatedAt = now

	batch := r.client.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(updateProfileByPhone,
		user.FirstName, user.LastName, user.PasswordHash, now, user.PhoneNumber)
	batch.Query(updateProfileByID,
		user.FirstName, user.LastName, user.PasswordHash, now, user.UserID)

	if err := r.client.Session.ExecuteBatch(batch); err != nil {
		util.Error("Failed to update user profile",
			zap.String("user_id", user.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	return nil
}

func (r *ScyllaUserRepository) UpdateLastLogin(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.LastLoginAt = &now

	batch := r.client.Session.NewBatch(gocql.UnloggedBatch).WithContext(ctx)
	batch.Query(updateLastLoginByPhone, now, user.PhoneNumber)
	batch.Query(updateLastLoginByID, now, user.UserID)

	if err := r.client.Session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}
