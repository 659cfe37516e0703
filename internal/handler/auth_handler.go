package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"phone-auth-service/internal/phone"
	"phone-auth-service/internal/service"
	"phone-auth-service/internal/util"
)

// AuthHandler exposes the authentication flow over HTTP.
type AuthHandler struct {
	authService *service.AuthService
	logger      *zap.Logger
	validate    *validator.Validate
}

func NewAuthHandler(authService *service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
		validate:    validator.New(),
	}
}

// RegisterRoutes registers all auth routes.
func (h *AuthHandler) RegisterRoutes(router chi.Router) {
	router.Route("/auth", func(r chi.Router) {
		r.Post("/check-mobile", h.CheckMobile)
		r.Post("/login", h.Login)
		r.Post("/verify-otp", h.VerifyOTP)

		r.Group(func(r chi.Router) {
			r.Use(TokenAuth(h.authService))
			r.Put("/complete-profile", h.CompleteProfile)
		})
	})
}

type checkMobileRequest struct {
	PhoneNumber string `json:"phone_number"`
}

type checkMobileResponse struct {
	Exists     bool   `json:"exists"`
	Message    string `json:"message"`
	CustomCode int    `json:"custom_code"`
	NextPage   string `json:"next_page"`
	OTP        string `json:"otp,omitempty"`
}

// CheckMobile reports whether the phone number is registered and issues an
// OTP for new numbers.
func (h *AuthHandler) CheckMobile(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req checkMobileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.authService.CheckMobile(r.Context(), req.PhoneNumber, clientIP(r))
	if err != nil {
		h.respondFlowError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, checkMobileResponse{
		Exists:     result.Exists,
		Message:    result.Message,
		CustomCode: result.CustomCode,
		NextPage:   result.NextPage,
		OTP:        result.OTP,
	})

	h.logger.Info("Phone check handled",
		util.Bool("exists", result.Exists),
		util.Duration("duration", time.Since(start)))
}

type loginRequest struct {
	PhoneNumber string `json:"phone_number"`
	Password    string `json:"password"`
}

type authFlowResponse struct {
	Message    string `json:"message"`
	CustomCode int    `json:"custom_code,omitempty"`
	NextPage   string `json:"next_page,omitempty"`
	AuthToken  string `json:"auth_token,omitempty"`
}

// Login authenticates by phone number and password.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.authService.Login(r.Context(), req.PhoneNumber, req.Password, clientIP(r))
	if err != nil {
		h.respondFlowError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, authFlowResponse{
		Message:    result.Message,
		CustomCode: result.CustomCode,
		NextPage:   result.NextPage,
		AuthToken:  result.AuthToken,
	})
}

type verifyOTPRequest struct {
	PhoneNumber string `json:"phone_number"`
	OTPCode     string `json:"otp_code"`
}

// VerifyOTP completes registration of a new phone number.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.authService.VerifyOTP(r.Context(), req.PhoneNumber, req.OTPCode, clientIP(r))
	if err != nil {
		h.respondFlowError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, authFlowResponse{
		Message:    result.Message,
		CustomCode: result.CustomCode,
		NextPage:   result.NextPage,
		AuthToken:  result.AuthToken,
	})
}

type completeProfileRequest struct {
	FirstName string `json:"first_name" validate:"required,max=150"`
	LastName  string `json:"last_name" validate:"required,max=150"`
	Password  string `json:"password,omitempty" validate:"omitempty,min=8"`
}

type profileResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Errors  string `json:"errors,omitempty"`
}

// CompleteProfile updates the authenticated user's profile after initial
// registration.
func (h *AuthHandler) CompleteProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, service.ErrInvalidToken.Error())
		return
	}

	var req completeProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondJSON(w, http.StatusBadRequest, profileResponse{
			Status:  "error",
			Message: "Invalid data",
			Errors:  "malformed request body",
		})
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		h.respondJSON(w, http.StatusBadRequest, profileResponse{
			Status:  "error",
			Message: "Invalid data",
			Errors:  validationErrors(err),
		})
		return
	}

	firstName := util.SanitizeInput(req.FirstName)
	lastName := util.SanitizeInput(req.LastName)

	if err := h.authService.CompleteProfile(r.Context(), user, firstName, lastName, req.Password); err != nil {
		h.respondError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	h.respondJSON(w, http.StatusOK, profileResponse{
		Status:  "success",
		Message: "Profile updated successfully",
	})
}

type blockedResponse struct {
	Message string `json:"message"`
	State   string `json:"state"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// respondFlowError maps flow errors to their status, code, and message.
func (h *AuthHandler) respondFlowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, phone.ErrInvalidPhone):
		h.respondJSON(w, http.StatusBadRequest, errorResponse{
			Error: "Invalid phone number format. Expected 10 or 11 digits starting with 0.",
		})
	case errors.Is(err, service.ErrIPBlocked):
		h.respondJSON(w, http.StatusForbidden, blockedResponse{
			Message: "IP address has been temporarily blocked. Please try again later.",
			State:   "IP_BLOCKED",
		})
	case errors.Is(err, service.ErrPhoneBlocked):
		h.respondJSON(w, http.StatusForbidden, blockedResponse{
			Message: "This phone number has been temporarily blocked. Please try again later.",
			State:   "PHONE_BLOCKED",
		})
	case errors.Is(err, service.ErrUserNotFound):
		h.respondJSON(w, http.StatusNotFound, authFlowResponse{
			Message:    "User with this phone number does not exist.",
			CustomCode: service.CodeUserNotFound,
			NextPage:   service.NextPageLogin,
		})
	case errors.Is(err, service.ErrInvalidCredentials):
		h.respondJSON(w, http.StatusBadRequest, authFlowResponse{
			Message:    "Invalid credentials, please try again.",
			CustomCode: service.CodeBadCredentials,
			NextPage:   service.NextPageLogin,
		})
	case errors.Is(err, service.ErrInvalidOTP):
		h.respondJSON(w, http.StatusUnauthorized, authFlowResponse{
			Message: "Invalid OTP code, try again",
		})
	default:
		h.logger.Error("Auth flow failed", util.ErrorField(err))
		h.respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *AuthHandler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", util.ErrorField(err))
	}
}

func (h *AuthHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, errorResponse{Error: message})
}

func validationErrors(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	msg := ""
	for i, fe := range ve {
		if i > 0 {
			msg += "; "
		}
		msg += "field '" + fe.Field() + "' failed '" + fe.Tag() + "'"
	}
	return msg
}
