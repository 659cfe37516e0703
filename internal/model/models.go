package model

import "time"

// User is the account record keyed by normalized phone number. Users are
// created at registration (OTP verification) with an empty password hash;
// the hash is set later through profile completion.
type User struct {
	UserBucket   int        `json:"-"`
	UserID       string     `json:"user_id"`
	PhoneNumber  string     `json:"phone_number"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	PasswordHash string     `json:"-"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// AuthToken is an opaque bearer credential bound to a single user. A user
// may accumulate several tokens (registration mints a fresh one each time);
// login reuses the most recent.
type AuthToken struct {
	Key       string    `json:"key"`
	UserID    string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
