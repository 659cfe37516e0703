package service

import (
	"errors"
	"fmt"
)

var (
	// ErrBlocked is the common base for guard rejections; errors.Is matches
	// both the IP and phone variants.
	ErrBlocked      = errors.New("temporarily blocked")
	ErrIPBlocked    = fmt.Errorf("ip address %w", ErrBlocked)
	ErrPhoneBlocked = fmt.Errorf("phone number %w", ErrBlocked)

	ErrUserNotFound       = errors.New("user with this phone number does not exist")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidOTP         = errors.New("invalid OTP code")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserInactive       = errors.New("user inactive or deleted")
)
