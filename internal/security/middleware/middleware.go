package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phuttachad/dormcore/internal/security/audit"
	"github.com/phuttachad/dormcore/internal/security/auth"
	"github.com/phuttachad/dormcore/internal/security/ratelimit"
)

type ClaimsContextKey struct{}
type BearerTokenContextKey struct{}

// isPublic reports endpoints served without a token: probes, metrics, and
// the read-only occupant board (HTTP and websocket).
func isPublic(r *http.Request) bool {
	p := r.URL.Path
	if p == "/healthz" || p == "/readyz" || p == "/metrics" {
		return true
	}
	if strings.HasPrefix(p, "/ws/rooms/") {
		return true
	}
	if r.Method == http.MethodGet && (p == "/api/rooms" || strings.HasPrefix(p, "/api/rooms/")) {
		return true
	}
	return false
}

func JWTMiddleware(tm *auth.TokenManager, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"error":"missing auth"}`, http.StatusUnauthorized)
				return
			}

			tokenString, err := auth.ExtractToken(authHeader)
			if err != nil {
				http.Error(w, `{"error":"invalid auth"}`, http.StatusUnauthorized)
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				log.Debug("token rejected", slog.String("error", err.Error()))
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey{}, claims)
			// The raw token is forwarded verbatim to the identity gateway
			// on provisioning calls.
			ctx = context.WithValue(ctx, BearerTokenContextKey{}, tokenString)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates account provisioning behind the admin role.
func RequireAdmin(auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaimsFromContext(r.Context())
			if claims == nil || claims.Role != auth.RoleAdmin {
				actor := ""
				if claims != nil {
					actor = claims.UserID
				}
				auditLog.LogDenied(r.Context(), actor, "admin role required")
				http.Error(w, `{"error":"admin role required"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RateLimitMiddleware(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r) {
				next.ServeHTTP(w, r)
				return
			}

			caller := ""
			if claims := GetClaimsFromContext(r.Context()); claims != nil {
				caller = claims.UserID
			}

			if !limiter.Allow(caller) {
				log.Warn("rate limit exceeded",
					slog.String("caller", caller),
					slog.String("path", r.URL.Path),
				)
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequestIDMiddleware tags each request for audit correlation.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				var buf [8]byte
				rand.Read(buf[:])
				id = hex.EncodeToString(buf[:])
			}
			w.Header().Set("X-Request-ID", id)
			next.ServeHTTP(w, r.WithContext(audit.WithRequestID(r.Context(), id)))
		})
	}
}

func AuditMiddleware(auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ""
			if claims := GetClaimsFromContext(r.Context()); claims != nil {
				actor = claims.UserID
			}

			switch {
			case r.Method == http.MethodPost && r.URL.Path == "/api/provision":
				auditLog.LogProvision(r.Context(), actor, "", "initiated", "")
			case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/admissions"):
				auditLog.LogAdmission(r.Context(), actor, r.PathValue("id"), "initiated", "")
			case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/checkout"):
				auditLog.LogCheckout(r.Context(), actor, r.PathValue("id"), "initiated", "")
			case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/resolve"):
				auditLog.LogOrphanResolve(r.Context(), actor, r.PathValue("id"), "initiated", "")
			}

			next.ServeHTTP(w, r)
		})
	}
}

func GetClaimsFromContext(ctx context.Context) *auth.Claims {
	if c := ctx.Value(ClaimsContextKey{}); c != nil {
		return c.(*auth.Claims)
	}
	return nil
}

// GetBearerToken returns the raw validated token for forwarding downstream.
func GetBearerToken(ctx context.Context) string {
	if t := ctx.Value(BearerTokenContextKey{}); t != nil {
		return t.(string)
	}
	return ""
}
