// Package middleware provides HTTP middleware: bearer-token auth and
// request logging.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/clearledge/coursedrive/internal/response"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

// UserIDKey is the context key for the authenticated user's ID.
const UserIDKey contextKey = "userID"

// UserNameKey is the context key for the authenticated user's display name.
const UserNameKey contextKey = "userName"

// TrainerKey is the context key for the caller's trainer flag.
const TrainerKey contextKey = "trainer"

// RequireAuth returns middleware that validates a Bearer JWT and injects
// user claims into the request context. The outer routing layer is
// responsible for minting these tokens; the gateway only verifies them.
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "authorization header required")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				response.Unauthorized(w, "invalid authorization header format")
				return
			}

			token, err := jwt.Parse(parts[1], func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				response.Unauthorized(w, "invalid or expired token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				response.Unauthorized(w, "invalid token claims")
				return
			}

			userID, _ := claims["sub"].(string)
			name, _ := claims["name"].(string)
			trainer, _ := claims["trainer"].(bool)

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			ctx = context.WithValue(ctx, UserNameKey, name)
			ctx = context.WithValue(ctx, TrainerKey, trainer)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireTrainer returns middleware that rejects callers whose token does
// not carry the trainer claim. Must run after RequireAuth.
func RequireTrainer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trainer, _ := r.Context().Value(TrainerKey).(bool)
		if !trainer {
			response.Forbidden(w, "trainer access required")
			return
		}

		next.ServeHTTP(w, r)
	})
}
