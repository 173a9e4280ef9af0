package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"kart-ledger/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey struct{}

// IdentityClaims are the claims the identity provider puts in its tokens.
// The subject is the user's UUID.
type IdentityClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name,omitempty"`
	Role          string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *model.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// IdentityFrom returns the caller attached by Identity, or nil for
// anonymous requests.
func IdentityFrom(ctx context.Context) *model.Identity {
	id, _ := ctx.Value(contextKey{}).(*model.Identity)
	return id
}

// Identity verifies HS256 bearer tokens issued by the identity provider and
// attaches the caller to the request context. Requests without a token pass
// through anonymously; requests with a bad token are rejected.
func Identity(secret []byte, logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("component", "identity").Logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok || strings.HasPrefix(r.URL.Path, "/api/cron/") {
				next.ServeHTTP(w, r)
				return
			}

			id, err := ParseIdentity(raw, secret)
			if err != nil {
				logger.Warn().Err(err).Str("path", r.URL.Path).Msg("invalid identity token")
				writeError(w, http.StatusUnauthorized, model.ErrCodeUnauthorised, "unauthorised: invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// ParseIdentity verifies raw and converts its claims into an identity.
func ParseIdentity(raw string, secret []byte) (*model.Identity, error) {
	claims := &IdentityClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, errors.New("token subject is not a user id")
	}

	return &model.Identity{
		UserID:        userID,
		Email:         claims.Email,
		Name:          claims.Name,
		EmailVerified: claims.EmailVerified,
		Role:          claims.Role,
	}, nil
}

// RequireAuth rejects anonymous requests.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IdentityFrom(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, model.ErrCodeUnauthorised, "unauthorised: login required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects callers without the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := IdentityFrom(r.Context())
		if id == nil {
			writeError(w, http.StatusUnauthorized, model.ErrCodeUnauthorised, "unauthorised: login required")
			return
		}
		if !id.IsAdmin() {
			writeError(w, http.StatusForbidden, model.ErrCodeForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CronAuth guards scheduler endpoints with a shared bearer secret.
func CronAuth(secret string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided, ok := bearerToken(r)
			if !ok || secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				logger.Warn().Str("path", r.URL.Path).Msg("rejected cron request")
				writeError(w, http.StatusUnauthorized, model.ErrCodeUnauthorised, "unauthorised")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
