package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"phone-auth-service/internal/hashing"
	"phone-auth-service/internal/model"
	"phone-auth-service/internal/phone"
	"phone-auth-service/internal/repository/scylla"
	"phone-auth-service/internal/util"
)

// Navigation hints handed back to the client alongside every outcome.
const (
	NextPageLogin           = "login"
	NextPageVerifyOTP       = "verify_otp"
	NextPageMain            = "main"
	NextPageCompleteProfile = "complete_profile"
)

// Custom outcome codes carried in responses as front-end navigation hints.
const (
	CodeUserExists      = 1001
	CodeOTPSent         = 1002
	CodeLoginOK         = 2001
	CodeBadCredentials  = 2002
	CodeUserNotFound    = 2003
	CodeRegistered      = 3001
)

// AuthService drives the phone authentication state machine: phone check,
// OTP issue, OTP verify, login. Every entry point that can mutate state runs
// the attempt guard before doing anything else.
type AuthService struct {
	guard  *AttemptGuard
	otp    *OtpIssuer
	tokens *TokenIssuer
	users  scylla.UserRepository
	hasher *hashing.Hasher
	events EventPublisher

	exposeOTP bool
}

func NewAuthService(
	guard *AttemptGuard,
	otp *OtpIssuer,
	tokens *TokenIssuer,
	users scylla.UserRepository,
	hasher *hashing.Hasher,
	events EventPublisher,
	exposeOTP bool,
) *AuthService {
	return &AuthService{
		guard:     guard,
		otp:       otp,
		tokens:    tokens,
		users:     users,
		hasher:    hasher,
		events:    events,
		exposeOTP: exposeOTP,
	}
}

// CheckMobileResult is the outcome of the phone-check transition.
type CheckMobileResult struct {
	Exists     bool
	CustomCode int
	NextPage   string
	Message    string
	OTP        string
}

// CheckMobile normalizes the phone number, reports whether a user exists for
// it, and issues an OTP for unknown numbers. Only the new-user branch is
// guarded: disclosing that a number is registered is deliberately not gated,
// issuing codes to a blocked caller is.
func (s *AuthService) CheckMobile(ctx context.Context, rawPhone, ipAddress string) (*CheckMobileResult, error) {
	phoneNumber, err := phone.Normalize(rawPhone)
	if err != nil {
		return nil, err
	}

	exists, err := s.users.ExistsByPhone(ctx, phoneNumber)
	if err != nil {
		return nil, err
	}

	if exists {
		return &CheckMobileResult{
			Exists:     true,
			CustomCode: CodeUserExists,
			NextPage:   NextPageLogin,
			Message:    "User with this phone number exists. please proceed to login.",
		}, nil
	}

	if err := s.guard.CheckBlocked(ctx, ipAddress, phoneNumber); err != nil {
		return nil, err
	}

	code, err := s.otp.Issue(ctx, phoneNumber)
	if err != nil {
		return nil, err
	}

	result := &CheckMobileResult{
		Exists:     false,
		CustomCode: CodeOTPSent,
		NextPage:   NextPageVerifyOTP,
		Message:    "otp sent. Please verify your phone number.",
	}
	if s.exposeOTP {
		result.OTP = code
		result.Message = "otp sent(included in response for dev purposes). Please verify your phone number."
	}
	return result, nil
}

// LoginResult is the outcome of a successful login transition.
type LoginResult struct {
	CustomCode int
	NextPage   string
	Message    string
	AuthToken  string
}

// Login authenticates an existing user by phone number and password. Both a
// missing user and a bad password count as failures against the phone and the
// caller's IP; a success clears both counters and reuses the user's token.
func (s *AuthService) Login(ctx context.Context, rawPhone, password, ipAddress string) (*LoginResult, error) {
	phoneNumber, err := phone.Normalize(rawPhone)
	if err != nil {
		return nil, err
	}

	if err := s.guard.CheckBlocked(ctx, ipAddress, phoneNumber); err != nil {
		return nil, err
	}

	user, err := s.users.GetByPhone(ctx, phoneNumber)
	if err != nil {
		if errors.Is(err, scylla.ErrNotFound) {
			if err := s.guard.RecordFailures(ctx, PhoneIdentifier(phoneNumber), IPIdentifier(ipAddress)); err != nil {
				return nil, err
			}
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	ok, err := s.verifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := s.guard.RecordFailures(ctx, PhoneIdentifier(phoneNumber), IPIdentifier(ipAddress)); err != nil {
			return nil, err
		}
		return nil, ErrInvalidCredentials
	}

	if err := s.guard.RecordSuccesses(ctx, PhoneIdentifier(phoneNumber), IPIdentifier(ipAddress)); err != nil {
		return nil, err
	}

	token, err := s.tokens.GetOrCreate(ctx, user.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, user); err != nil {
		util.Warn("Failed to update last login",
			zap.String("user_id", user.UserID),
			zap.Error(err))
	}

	s.events.Publish(ctx, SecurityEvent{
		EventType:       EventLoginSucceeded,
		IdentifierKind:  string(KindPhoneNumber),
		IdentifierValue: phoneNumber,
		UserID:          user.UserID,
	})

	return &LoginResult{
		CustomCode: CodeLoginOK,
		NextPage:   NextPageMain,
		Message:    "You have been successfully logged in",
		AuthToken:  token.Key,
	}, nil
}

// VerifyOTPResult is the outcome of a successful registration.
type VerifyOTPResult struct {
	CustomCode int
	NextPage   string
	Message    string
	AuthToken  string
}

// VerifyOTP checks the submitted code against the cached one. A match
// registers the phone number (get-or-create) and always mints a fresh token;
// a mismatch counts as a failure against the phone and IP.
func (s *AuthService) VerifyOTP(ctx context.Context, rawPhone, otpCode, ipAddress string) (*VerifyOTPResult, error) {
	phoneNumber, err := phone.Normalize(rawPhone)
	if err != nil {
		return nil, err
	}

	if err := s.guard.CheckBlocked(ctx, ipAddress, phoneNumber); err != nil {
		return nil, err
	}

	match, err := s.otp.Verify(ctx, phoneNumber, otpCode)
	if err != nil {
		return nil, err
	}
	if !match {
		if err := s.guard.RecordFailures(ctx, PhoneIdentifier(phoneNumber), IPIdentifier(ipAddress)); err != nil {
			return nil, err
		}
		return nil, ErrInvalidOTP
	}

	user, err := s.users.GetByPhone(ctx, phoneNumber)
	if err != nil {
		if !errors.Is(err, scylla.ErrNotFound) {
			return nil, err
		}
		user = &model.User{
			PhoneNumber: phoneNumber,
			IsActive:    true,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, err
		}
	}

	token, err := s.tokens.Create(ctx, user.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.guard.RecordSuccesses(ctx, PhoneIdentifier(phoneNumber), IPIdentifier(ipAddress)); err != nil {
		return nil, err
	}

	s.events.Publish(ctx, SecurityEvent{
		EventType:       EventUserRegistered,
		IdentifierKind:  string(KindPhoneNumber),
		IdentifierValue: phoneNumber,
		UserID:          user.UserID,
	})

	return &VerifyOTPResult{
		CustomCode: CodeRegistered,
		NextPage:   NextPageCompleteProfile,
		Message:    "You have been successfully registered, please proceed to complete your profile",
		AuthToken:  token.Key,
	}, nil
}

// CompleteProfile updates the authenticated user's name fields and optionally
// replaces the password. It is not a brute-force-sensitive entry point and is
// therefore not guarded.
func (s *AuthService) CompleteProfile(ctx context.Context, user *model.User, firstName, lastName, password string) error {
	user.FirstName = firstName
	user.LastName = lastName

	if password != "" {
		hash, err := s.hasher.Hash(password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = hash
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return err
	}

	util.Info("User profile updated", zap.String("user_id", user.UserID))
	return nil
}

// ValidateToken resolves a bearer token to its user for authenticated routes.
func (s *AuthService) ValidateToken(ctx context.Context, key string) (*model.User, error) {
	return s.tokens.Validate(ctx, key)
}

func (s *AuthService) verifyPassword(password, passwordHash string) (bool, error) {
	// Users who never completed their profile have no credential yet; any
	// password attempt against them fails.
	if passwordHash == "" || password == "" {
		return false, nil
	}
	return s.hasher.Verify(password, passwordHash)
}
