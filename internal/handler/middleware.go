package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"phone-auth-service/internal/model"
	"phone-auth-service/internal/service"
)

type contextKey string

const userContextKey contextKey = "auth_user"

// UserFromContext returns the authenticated user placed by TokenAuth.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	return user, ok
}

// TokenAuth authenticates requests carrying an "Authorization: Token <key>"
// header, resolving the opaque key to a user. Invalid keys and deactivated
// users are rejected with distinguishable messages.
func TokenAuth(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := tokenFromHeader(r)
			if !ok {
				writeAuthError(w, "Authentication credentials were not provided.")
				return
			}

			user, err := authService.ValidateToken(r.Context(), key)
			if err != nil {
				switch {
				case errors.Is(err, service.ErrInvalidToken):
					writeAuthError(w, "Invalid token")
				case errors.Is(err, service.ErrUserInactive):
					writeAuthError(w, "User inactive or deleted")
				default:
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(errorResponse{Error: "internal server error"})
				}
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromHeader(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Token" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message})
}

// clientIP extracts the caller's IP: the last entry of X-Forwarded-For when
// present, otherwise the host part of RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[len(parts)-1])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
