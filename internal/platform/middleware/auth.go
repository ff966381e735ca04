package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	dErrors "bureau/pkg/domain-errors"
	"bureau/pkg/platform/httputil"
)

// JWTValidator defines the interface for validating bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the caller identity extracted from a valid token.
type JWTClaims struct {
	UserID string
	Role   string
}

type contextKeyUserID struct{}
type contextKeyUserRole struct{}

// ContextKeyUserID is exported for use in handler tests.
var (
	ContextKeyUserID   = contextKeyUserID{}
	ContextKeyUserRole = contextKeyUserRole{}
)

// GetUserID retrieves the authenticated user ID from the context.
func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(ContextKeyUserID).(string)
	if !ok {
		return ""
	}
	return userID
}

// GetUserRole retrieves the authenticated caller's role from the context.
func GetUserRole(ctx context.Context) string {
	role, ok := ctx.Value(ContextKeyUserRole).(string)
	if !ok {
		return ""
	}
	return role
}

// WithUser attaches a caller identity to ctx, as RequireAuth does.
func WithUser(ctx context.Context, userID, role string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyUserID, userID)
	return context.WithValue(ctx, ContextKeyUserRole, role)
}

// RequireAuth rejects requests without a valid "Authorization: Bearer" token.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(ctx, claims.UserID, claims.Role)))
		})
	}
}
