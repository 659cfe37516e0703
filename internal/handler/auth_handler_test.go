package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phone-auth-service/internal/client"
	"phone-auth-service/internal/config"
	"phone-auth-service/internal/hashing"
	"phone-auth-service/internal/model"
	redisrepo "phone-auth-service/internal/repository/redis"
	"phone-auth-service/internal/repository/scylla"
	"phone-auth-service/internal/service"
	"phone-auth-service/internal/util"
)

type stubUserRepo struct {
	byPhone map[string]*model.User
	byID    map[string]*model.User
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{
		byPhone: make(map[string]*model.User),
		byID:    make(map[string]*model.User),
	}
}

func (r *stubUserRepo) Create(_ context.Context, user *model.User) error {
	if user.UserID == "" {
		user.UserID = uuid.New().String()
	}
	r.byPhone[user.PhoneNumber] = user
	r.byID[user.UserID] = user
	return nil
}

func (r *stubUserRepo) GetByPhone(_ context.Context, phoneNumber string) (*model.User, error) {
	if user, ok := r.byPhone[phoneNumber]; ok {
		return user, nil
	}
	return nil, scylla.ErrNotFound
}

func (r *stubUserRepo) GetByID(_ context.Context, userID string) (*model.User, error) {
	if user, ok := r.byID[userID]; ok {
		return user, nil
	}
	return nil, scylla.ErrNotFound
}

func (r *stubUserRepo) ExistsByPhone(_ context.Context, phoneNumber string) (bool, error) {
	_, ok := r.byPhone[phoneNumber]
	return ok, nil
}

func (r *stubUserRepo) UpdateProfile(_ context.Context, user *model.User) error {
	r.byPhone[user.PhoneNumber] = user
	r.byID[user.UserID] = user
	return nil
}

func (r *stubUserRepo) UpdateLastLogin(_ context.Context, _ *model.User) error { return nil }

type stubTokenRepo struct {
	byKey  map[string]*model.AuthToken
	byUser map[string]*model.AuthToken
}

func newStubTokenRepo() *stubTokenRepo {
	return &stubTokenRepo{
		byKey:  make(map[string]*model.AuthToken),
		byUser: make(map[string]*model.AuthToken),
	}
}

func (r *stubTokenRepo) Create(_ context.Context, token *model.AuthToken) error {
	r.byKey[token.Key] = token
	r.byUser[token.UserID] = token
	return nil
}

func (r *stubTokenRepo) GetByUser(_ context.Context, userID string) (*model.AuthToken, error) {
	if token, ok := r.byUser[userID]; ok {
		return token, nil
	}
	return nil, scylla.ErrNotFound
}

func (r *stubTokenRepo) GetByKey(_ context.Context, key string) (*model.AuthToken, error) {
	if token, ok := r.byKey[key]; ok {
		return token, nil
	}
	return nil, scylla.ErrNotFound
}

type handlerTestEnv struct {
	mr     *miniredis.Miniredis
	router chi.Router
	users  *stubUserRepo
	tokens *stubTokenRepo
	hasher *hashing.Hasher
}

func newHandlerTestEnv(t *testing.T) *handlerTestEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	rc := client.NewRedisClientFromRaw(rdb)

	cfg := config.AuthConfig{
		MaxFailedAttempts: 3,
		AttemptWindow:     24 * time.Hour,
		BlockDuration:     time.Hour,
		OTPLength:         6,
		OTPTTL:            5 * time.Minute,
		ExposeOTP:         true,
	}

	users := newStubUserRepo()
	tokens := newStubTokenRepo()
	hasher := hashing.NewHasher()

	svc := service.NewAuthService(
		service.NewAttemptGuard(redisrepo.NewRateLimitCache(rc), service.NoopEventPublisher{}, cfg),
		service.NewOtpIssuer(redisrepo.NewOTPCache(rc), cfg),
		service.NewTokenIssuer(tokens, users),
		users,
		hasher,
		service.NoopEventPublisher{},
		cfg.ExposeOTP,
	)

	logger := util.Get()
	router := NewRouter(NewAuthHandler(svc, logger), logger, false)

	return &handlerTestEnv{mr: mr, router: router, users: users, tokens: tokens, hasher: hasher}
}

func (e *handlerTestEnv) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var payload map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	}
	return rec, payload
}

func (e *handlerTestEnv) seedUser(t *testing.T, phoneNumber, password string) *model.User {
	t.Helper()

	user := &model.User{PhoneNumber: phoneNumber, IsActive: true}
	if password != "" {
		hash, err := e.hasher.Hash(password)
		require.NoError(t, err)
		user.PasswordHash = hash
	}
	require.NoError(t, e.users.Create(context.Background(), user))
	return user
}

func (e *handlerTestEnv) seedToken(t *testing.T, user *model.User) string {
	t.Helper()

	key := uuid.New().String()
	require.NoError(t, e.tokens.Create(context.Background(), &model.AuthToken{Key: key, UserID: user.UserID}))
	return key
}

const handlerPhone = "09351234567"

func TestHealthEndpoint(t *testing.T) {
	env := newHandlerTestEnv(t)

	rec, payload := env.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", payload["status"])
}

func TestCheckMobileNewNumber(t *testing.T) {
	env := newHandlerTestEnv(t)

	rec, payload := env.do(t, http.MethodPost, "/api/v1/auth/check-mobile",
		map[string]string{"phone_number": handlerPhone}, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, payload["exists"])
	assert.Equal(t, float64(1002), payload["custom_code"])
	assert.Equal(t, "verify_otp", payload["next_page"])
	assert.Len(t, payload["otp"], 6)
}

func TestCheckMobileExistingNumber(t *testing.T) {
	env := newHandlerTestEnv(t)
	env.seedUser(t, handlerPhone, "")

	rec, payload := env.do(t, http.MethodPost, "/api/v1/auth/check-mobile",
		map[string]string{"phone_number": handlerPhone}, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, payload["exists"])
	assert.Equal(t, float64(1001), payload["custom_code"])
	assert.Equal(t, "login", payload["next_page"])
	assert.NotContains(t, payload, "otp")
}

func TestCheckMobileInvalidPhone(t *testing.T) {
	env := newHandlerTestEnv(t)

	rec, payload := env.do(t, http.MethodPost, "/api/v1/auth/check-mobile",
		map[string]string{"phone_number": "12"}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid phone number format. Expected 10 or 11 digits starting with 0.", payload["error"])
}

func TestCheckMobileMalformedBody(t *testing.T) {
	env := newHandlerTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/check-mobile",
		bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckMobileBlockedPhone(t *testing.T) {
	env := newHandlerTestEnv(t)
	require.NoError(t, env.mr.Set("blocked:phone_number:"+handlerPhone, "1"))

	rec, payload := env.do(t, http.MethodPost, "/api/v1/auth/check-mobile",
		map[string]string{"phone_number": handlerPhone}, nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "PHONE_BLOCKED", payload["state"])
}

func TestBlockedIPTakesPrecedence(t *testing.T) {
	env := newHandlerTestEnv(t)
	// httptest requests arrive from 192.0.2.1.
	require.NoError(t, env.mr.Set("blocked:ip_address:192.0.2.1", "1"))
	require.NoError(t, env.mr.Set("blocked:phone_number:"+handlerPhone, "1"))

	rec, payload := env.do(t, http.MethodPost, "/api/v1/auth/check-mobile",
		map[string]string{"phone_number": handlerPhone}, nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "IP_BLOCKED", payload["state"])
}

func TestRegistrationRoundTrip(t *testing.T) {
	env := newHandlerTestEnv(t)

	_, checked := env.do(t, http.MethodPost, "/api/v1/auth/check-mobile",
		map[string]string{"phone_number": handlerPhone}, nil)
	otp, _ := checked["otp"].(string)
	require.Len(t, otp, 6)

	rec, payload := env.do(t, http.MethodPost, "/api/v1/auth/verify-otp",
		map[string]string{"phone_number": handlerPhone, "otp_code": otp}, nil)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, float64(3001), payload["custom_code"])
	assert.Equal(t, "complete_profile", payload["next_page"])
	assert.NotEmpty(t, payload["auth_token"])
}

func TestVerifyOTPWrongCode(t *testing.T) {
	env := newHandlerTestEnv(t)

	env.do(t, http.MethodPost, "/api/v1/auth/check-mobile",
		map[string]string{"phone_number": handlerPhone}, nil)

	rec, payload := env.do(t, http.MethodPost, "/api/v1/auth/verify-otp",
		map[string]string{"phone_number": handlerPhone, "otp_code": "000000"}, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid OTP code, try again", payload["message"])
}

func TestLoginSuccess(t *testing.T) {
	env := newHandlerTestEnv(t)
	env.seedUser(t, handlerPhone, "hunter22222")

	rec, payload := env.do(t, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"phone_number": handlerPhone, "password": "hunter22222"}, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2001), payload["custom_code"])
	assert.Equal(t, "main", payload["next_page"])
	assert.NotEmpty(t, payload["auth_token"])
}

func TestLoginWrongPassword(t *testing.T) {
	env := newHandlerTestEnv(t)
	env.seedUser(t, handlerPhone, "hunter22222")

	rec, payload := env.do(t, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"phone_number": handlerPhone, "password": "nope"}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, float64(2002), payload["custom_code"])
	assert.Equal(t, "Invalid credentials, please try again.", payload["message"])
}

func TestLoginUnknownNumber(t *testing.T) {
	env := newHandlerTestEnv(t)

	rec, payload := env.do(t, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"phone_number": handlerPhone, "password": "whatever"}, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, float64(2003), payload["custom_code"])
}

func TestCompleteProfileRequiresToken(t *testing.T) {
	env := newHandlerTestEnv(t)

	rec, payload := env.do(t, http.MethodPut, "/api/v1/auth/complete-profile",
		map[string]string{"first_name": "Jane", "last_name": "Doe"}, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Authentication credentials were not provided.", payload["error"])
}

func TestCompleteProfileInvalidToken(t *testing.T) {
	env := newHandlerTestEnv(t)

	rec, payload := env.do(t, http.MethodPut, "/api/v1/auth/complete-profile",
		map[string]string{"first_name": "Jane", "last_name": "Doe"},
		map[string]string{"Authorization": "Token bogus"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", payload["error"])
}

func TestCompleteProfileInactiveUser(t *testing.T) {
	env := newHandlerTestEnv(t)
	user := env.seedUser(t, handlerPhone, "")
	user.IsActive = false
	key := env.seedToken(t, user)

	rec, payload := env.do(t, http.MethodPut, "/api/v1/auth/complete-profile",
		map[string]string{"first_name": "Jane", "last_name": "Doe"},
		map[string]string{"Authorization": "Token " + key})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "User inactive or deleted", payload["error"])
}

func TestCompleteProfileSuccess(t *testing.T) {
	env := newHandlerTestEnv(t)
	user := env.seedUser(t, handlerPhone, "")
	key := env.seedToken(t, user)

	rec, payload := env.do(t, http.MethodPut, "/api/v1/auth/complete-profile",
		map[string]string{"first_name": "Jane", "last_name": "Doe", "password": "brand-new-pass"},
		map[string]string{"Authorization": "Token " + key})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", payload["status"])
	assert.Equal(t, "Jane", user.FirstName)
	assert.NotEmpty(t, user.PasswordHash)
}

func TestCompleteProfileValidation(t *testing.T) {
	env := newHandlerTestEnv(t)
	user := env.seedUser(t, handlerPhone, "")
	key := env.seedToken(t, user)

	rec, payload := env.do(t, http.MethodPut, "/api/v1/auth/complete-profile",
		map[string]string{"first_name": "", "last_name": "Doe", "password": "short"},
		map[string]string{"Authorization": "Token " + key})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", payload["status"])
	assert.Contains(t, payload["errors"], "FirstName")
	assert.Contains(t, payload["errors"], "Password")
}

func TestClientIPFromForwardedHeader(t *testing.T) {
	env := newHandlerTestEnv(t)
	// Only the last forwarded hop counts; earlier entries are caller supplied.
	require.NoError(t, env.mr.Set("blocked:ip_address:203.0.113.9", "1"))

	rec, payload := env.do(t, http.MethodPost, "/api/v1/auth/check-mobile",
		map[string]string{"phone_number": handlerPhone},
		map[string]string{"X-Forwarded-For": "198.51.100.7, 203.0.113.9"})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "IP_BLOCKED", payload["state"])
}

func TestUnknownEndpoint(t *testing.T) {
	env := newHandlerTestEnv(t)

	rec, payload := env.do(t, http.MethodGet, "/api/v1/auth/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "endpoint not found", payload["error"])
}
