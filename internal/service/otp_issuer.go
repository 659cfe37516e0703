package service

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"phone-auth-service/internal/config"
	redisrepo "phone-auth-service/internal/repository/redis"
	"phone-auth-service/internal/util"
)

// OtpIssuer generates and verifies the short-lived numeric codes sent to new
// phone numbers. A new code overwrites any prior one; the cached value is the
// only valid code until it expires or is replaced.
type OtpIssuer struct {
	cache  *redisrepo.OTPCache
	length int
	ttl    time.Duration
}

func NewOtpIssuer(cache *redisrepo.OTPCache, cfg config.AuthConfig) *OtpIssuer {
	return &OtpIssuer{
		cache:  cache,
		length: cfg.OTPLength,
		ttl:    cfg.OTPTTL,
	}
}

// Issue generates a fresh code of independent uniform digits and caches it
// under the phone number. The digits are not drawn from a CSPRNG; the code's
// short TTL and the attempt guard bound the guessing surface.
func (o *OtpIssuer) Issue(ctx context.Context, phoneNumber string) (string, error) {
	code := make([]byte, o.length)
	for i := range code {
		code[i] = byte('0' + rand.Intn(10))
	}

	if err := o.cache.SetOTP(ctx, phoneNumber, string(code), o.ttl); err != nil {
		return "", err
	}

	util.Debug("OTP issued",
		zap.String("phone_number", phoneNumber),
		zap.Duration("ttl", o.ttl))

	return string(code), nil
}

// Verify reports whether the submitted code matches the cached one exactly.
// An expired or absent record verifies false, not as an error. The record is
// left in place on success; it lapses with its TTL.
func (o *OtpIssuer) Verify(ctx context.Context, phoneNumber, submitted string) (bool, error) {
	if submitted == "" {
		return false, nil
	}

	cached, err := o.cache.GetOTP(ctx, phoneNumber)
	if err != nil {
		if errors.Is(err, redisrepo.ErrOTPNotFound) {
			return false, nil
		}
		return false, err
	}

	return cached == submitted, nil
}
