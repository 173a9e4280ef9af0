package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kart-ledger/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("identity-test-secret")

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims IdentityClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims(userID uuid.UUID) IdentityClaims {
	return IdentityClaims{
		Email:         "ada@example.com",
		EmailVerified: true,
		Role:          model.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestParseIdentity(t *testing.T) {
	userID := uuid.New()

	id, err := ParseIdentity(signToken(t, jwt.SigningMethodHS256, testSecret, validClaims(userID)), testSecret)

	require.NoError(t, err)
	assert.Equal(t, userID, id.UserID)
	assert.Equal(t, "ada@example.com", id.Email)
	assert.True(t, id.EmailVerified)
	assert.True(t, id.IsAdmin())
}

func TestParseIdentity_Rejects(t *testing.T) {
	userID := uuid.New()

	expired := validClaims(userID)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noExpiry := validClaims(userID)
	noExpiry.ExpiresAt = nil

	badSubject := validClaims(userID)
	badSubject.Subject = "not-a-uuid"

	tests := []struct {
		name  string
		token string
	}{
		{name: "wrong secret", token: signToken(t, jwt.SigningMethodHS256, []byte("other"), validClaims(userID))},
		{name: "wrong algorithm", token: signToken(t, jwt.SigningMethodHS512, testSecret, validClaims(userID))},
		{name: "expired", token: signToken(t, jwt.SigningMethodHS256, testSecret, expired)},
		{name: "missing expiry", token: signToken(t, jwt.SigningMethodHS256, testSecret, noExpiry)},
		{name: "subject not a uuid", token: signToken(t, jwt.SigningMethodHS256, testSecret, badSubject)},
		{name: "garbage", token: "not.a.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseIdentity(tt.token, testSecret)
			assert.Error(t, err)
			assert.Nil(t, id)
		})
	}
}

func TestIdentity(t *testing.T) {
	logger := zerolog.Nop()
	userID := uuid.New()
	valid := signToken(t, jwt.SigningMethodHS256, testSecret, validClaims(userID))

	tests := []struct {
		name           string
		path           string
		authorization  string
		expectedStatus int
		expectHandler  bool
		expectIdentity bool
	}{
		{
			name:           "Anonymous request",
			path:           "/api/products",
			expectedStatus: http.StatusOK,
			expectHandler:  true,
		},
		{
			name:           "Valid token",
			path:           "/api/orders",
			authorization:  "Bearer " + valid,
			expectedStatus: http.StatusOK,
			expectHandler:  true,
			expectIdentity: true,
		},
		{
			name:           "Invalid token",
			path:           "/api/orders",
			authorization:  "Bearer broken",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Cron path is left to its own guard",
			path:           "/api/cron/credit-points",
			authorization:  "Bearer cron-secret",
			expectedStatus: http.StatusOK,
			expectHandler:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlerCalled := false
			var seen *model.Identity
			testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
				seen = IdentityFrom(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			handler := Identity(testSecret, logger)(testHandler)

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.authorization != "" {
				req.Header.Set("Authorization", tt.authorization)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectHandler, handlerCalled)
			if tt.expectIdentity {
				require.NotNil(t, seen)
				assert.Equal(t, userID, seen.UserID)
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}

func TestRequireAuthAndAdmin(t *testing.T) {
	customer := &model.Identity{UserID: uuid.New()}
	admin := &model.Identity{UserID: uuid.New(), Role: model.RoleAdmin}

	tests := []struct {
		name        string
		identity    *model.Identity
		authStatus  int
		adminStatus int
	}{
		{name: "anonymous", identity: nil, authStatus: http.StatusUnauthorized, adminStatus: http.StatusUnauthorized},
		{name: "customer", identity: customer, authStatus: http.StatusOK, adminStatus: http.StatusForbidden},
		{name: "admin", identity: admin, authStatus: http.StatusOK, adminStatus: http.StatusOK},
	}

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin", nil)
			if tt.identity != nil {
				req = req.WithContext(WithIdentity(req.Context(), tt.identity))
			}

			w := httptest.NewRecorder()
			RequireAuth(ok).ServeHTTP(w, req)
			assert.Equal(t, tt.authStatus, w.Code)

			w = httptest.NewRecorder()
			RequireAdmin(ok).ServeHTTP(w, req)
			assert.Equal(t, tt.adminStatus, w.Code)
		})
	}
}

func TestCronAuth(t *testing.T) {
	logger := zerolog.Nop()

	tests := []struct {
		name           string
		secret         string
		authorization  string
		expectedStatus int
	}{
		{name: "Matching secret", secret: "s3cret", authorization: "Bearer s3cret", expectedStatus: http.StatusOK},
		{name: "Wrong secret", secret: "s3cret", authorization: "Bearer guess", expectedStatus: http.StatusUnauthorized},
		{name: "Missing header", secret: "s3cret", expectedStatus: http.StatusUnauthorized},
		{name: "Not a bearer token", secret: "s3cret", authorization: "s3cret", expectedStatus: http.StatusUnauthorized},
		{name: "Unconfigured secret", secret: "", authorization: "Bearer ", expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlerCalled := false
			testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/api/cron/credit-points", nil)
			if tt.authorization != "" {
				req.Header.Set("Authorization", tt.authorization)
			}
			w := httptest.NewRecorder()

			CronAuth(tt.secret, logger)(testHandler).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedStatus == http.StatusOK, handlerCalled)
		})
	}
}
