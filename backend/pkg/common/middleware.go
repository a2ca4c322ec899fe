package common

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openaudit/budgetledger/backend/pkg/apperr"
	"github.com/openaudit/budgetledger/backend/pkg/auth"
	"github.com/openaudit/budgetledger/backend/pkg/common/api"
	"github.com/openaudit/budgetledger/backend/pkg/models"
)

type contextKey string

const (
	claimsKey  contextKey = "claims"
	traceIDKey contextKey = "trace_id"
)

// ClaimsFrom returns the verified claims injected by AuthMiddleware.
func ClaimsFrom(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok
}

// TraceIDFrom returns the request trace id, when present.
func TraceIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// TraceMiddleware assigns each request a trace id, echoed in responses and
// attached to log lines.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-Id")
		if traceID == "" {
			traceID = uuid.NewString()
		}
		w.Header().Set("X-Trace-Id", traceID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), traceIDKey, traceID)))
	})
}

// RequestLogger logs each request once it completes.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("trace_id", TraceIDFrom(r.Context())))
		})
	}
}

// AuthMiddleware verifies the bearer token and injects the claims into the
// request context. This is the first access-policy check: an invalid or
// missing credential is Unauthenticated before any role or scope question.
func AuthMiddleware(authSvc *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.WriteAppError(w, TraceIDFrom(r.Context()), apperr.New(apperr.Unauthenticated, "access token required"))
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := authSvc.VerifyToken(tokenString)
			if err != nil {
				api.WriteAppError(w, TraceIDFrom(r.Context()), err)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
		})
	}
}

// RequireRole enforces the operation's required role. Checked after
// authentication and before institution scoping.
func RequireRole(role models.Role, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFrom(r.Context())
		if !ok {
			api.WriteAppError(w, TraceIDFrom(r.Context()), apperr.New(apperr.Unauthenticated, "authentication required"))
			return
		}
		if claims.Role != role {
			api.WriteAppError(w, TraceIDFrom(r.Context()), apperr.Newf(apperr.Forbidden, "operation requires the %s role", role))
			return
		}
		next(w, r)
	}
}

// RequireInstitution scopes a handler to the caller's own institution: the
// institution referenced by the path must equal the one bound in the token.
func RequireInstitution(pathVar func(*http.Request) string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFrom(r.Context())
		if !ok {
			api.WriteAppError(w, TraceIDFrom(r.Context()), apperr.New(apperr.Unauthenticated, "authentication required"))
			return
		}
		if pathVar(r) != claims.InstitutionID {
			api.WriteAppError(w, TraceIDFrom(r.Context()), apperr.New(apperr.Forbidden, "access denied to this institution"))
			return
		}
		next(w, r)
	}
}
