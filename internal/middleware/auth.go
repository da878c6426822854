package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"traders-server/internal/auth"
	"traders-server/internal/shared/errors"
	"traders-server/internal/shared/response"
)

type contextKey string

const ShipContextKey contextKey = "ship"

// TokenValidator turns a bearer token into ship claims.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// ActivityTracker keeps a ship inside the active window used by the turn
// grant.
type ActivityTracker interface {
	TouchLogin(ctx context.Context, shipID int) error
}

type JWTMiddleware struct {
	tokens   TokenValidator
	activity ActivityTracker
}

func NewJWTMiddleware(tokens TokenValidator, activity ActivityTracker) *JWTMiddleware {
	return &JWTMiddleware{tokens: tokens, activity: activity}
}

func (m *JWTMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := slog.With(
			"middleware", "jwt",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)
		logger.Debug("Processing JWT authentication")

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			response.Error(w, r, logger, errors.Unauthorized("authentication required"))
			return
		}

		claims, err := m.tokens.Validate(strings.TrimSpace(token))
		if err != nil {
			logger.Debug("Token rejected", "error", err)
			response.Error(w, r, logger, errors.Unauthorized("invalid token"))
			return
		}

		if m.activity != nil {
			if err := m.activity.TouchLogin(r.Context(), claims.ShipID); err != nil {
				logger.Warn("Failed to record ship activity", "ship_id", claims.ShipID, "error", err)
			}
		}

		ctx := context.WithValue(r.Context(), ShipContextKey, claims)
		logger.Debug("JWT authentication successful", "ship_id", claims.ShipID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClaimsFromContext returns the claims stored by JWTMiddleware, or nil.
func GetClaimsFromContext(r *http.Request) *auth.Claims {
	if claims, ok := r.Context().Value(ShipContextKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}

// ShipID returns the acting ship of an authenticated request.
func ShipID(r *http.Request) (int, error) {
	claims := GetClaimsFromContext(r)
	if claims == nil {
		return 0, errors.Unauthorized("authentication required")
	}
	return claims.ShipID, nil
}
