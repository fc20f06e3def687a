package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/utafrali/zaver-checkout/pkg/httputil"
	"github.com/utafrali/zaver-checkout/pkg/logger"
)

type contextKeyType string

const claimsKey contextKeyType = "claims"

// Claims are the identity fields extracted from a bearer token.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator func(token string) (*Claims, error)

// Auth rejects requests without a valid bearer token and stores the claims in
// the request context.
func Auth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or malformed bearer token")
				return
			}

			claims, err := validate(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
				return
			}

			ctx := WithClaims(r.Context(), claims)
			ctx = logger.WithUserID(ctx, claims.UserID)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("user_id", claims.UserID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated requests whose role is not listed.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := allowed[RoleFromContext(r.Context())]; !ok {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithClaims stores claims in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext returns the authenticated claims, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

// UserIDFromContext returns the authenticated user ID, or "".
func UserIDFromContext(ctx context.Context) string {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.UserID
	}
	return ""
}

// RoleFromContext returns the authenticated role, or "".
func RoleFromContext(ctx context.Context) string {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.Role
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	httputil.WriteJSON(w, status, httputil.Response{
		Error: &httputil.ErrorResponse{Code: code, Message: message},
	})
}
