package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"phone-auth-service/internal/client"
	"phone-auth-service/internal/util"
)

const otpPrefix = "otp:"

// ErrOTPNotFound is returned when no unexpired code exists for a phone
// number.
var ErrOTPNotFound = errors.New("no OTP found for phone number")

// OTPCache stores the current one-time code per phone number. A new code
// overwrites any prior one; expiry is handled entirely by the Redis TTL.
type OTPCache struct {
	client *client.RedisClient
}

func NewOTPCache(client *client.RedisClient) *OTPCache {
	return &OTPCache{client: client}
}

func (c *OTPCache) SetOTP(ctx context.Context, phoneNumber, code string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	key := otpPrefix + phoneNumber
	if err := c.client.Set(ctx, key, code, ttl); err != nil {
		util.Error("Failed to cache OTP",
			zap.String("phone_number", phoneNumber),
			zap.Duration("ttl", ttl),
			zap.Error(err))
		return fmt.Errorf("failed to cache OTP: %w", err)
	}

	util.Debug("OTP cached",
		zap.String("phone_number", phoneNumber),
		zap.Duration("ttl", ttl))
	return nil
}

func (c *OTPCache) GetOTP(ctx context.Context, phoneNumber string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	key := otpPrefix + phoneNumber
	code, err := c.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrOTPNotFound
		}
		util.Error("Failed to get OTP from cache",
			zap.String("phone_number", phoneNumber),
			zap.Error(err))
		return "", fmt.Errorf("failed to get OTP from cache: %w", err)
	}
	return code, nil
}

func (c *OTPCache) DeleteOTP(ctx context.Context, phoneNumber string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	key := otpPrefix + phoneNumber
	if err := c.client.Del(ctx, key); err != nil {
		util.Error("Failed to delete OTP from cache",
			zap.String("phone_number", phoneNumber),
			zap.Error(err))
		return fmt.Errorf("failed to delete OTP from cache: %w", err)
	}
	return nil
}
