package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jstittsworth/player-valuation/pkg/utils"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func adminToken(t *testing.T, role string, expires time.Time) string {
	t.Helper()
	token, err := IssueToken(testSecret, Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops@example.com",
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	require.NoError(t, err)
	return token
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"valid id is propagated", "abc-123_XYZ", true},
		{"missing id is generated", "", false},
		{"unsafe id is replaced", "bad id\nwith newline", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			id := w.Header().Get(RequestIDHeader)
			assert.Equal(t, id, w.Body.String())
			if tt.keep {
				assert.Equal(t, tt.incoming, id)
			} else {
				assert.Len(t, id, 36)
			}
		})
	}
}

func TestParseToken(t *testing.T) {
	claims, err := ParseToken(adminToken(t, RoleAdmin, time.Now().Add(time.Hour)), testSecret)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, "ops@example.com", claims.Subject)

	_, err = ParseToken(adminToken(t, RoleAdmin, time.Now().Add(-time.Minute)), testSecret)
	assert.True(t, errors.Is(err, utils.ErrUnauthorized), "expired")

	_, err = ParseToken(adminToken(t, RoleAdmin, time.Now().Add(time.Hour)), "other-secret")
	assert.True(t, errors.Is(err, utils.ErrUnauthorized), "wrong secret")

	hs384, err := jwt.NewWithClaims(jwt.SigningMethodHS384, Claims{Role: RoleAdmin}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = ParseToken(hs384, testSecret)
	assert.True(t, errors.Is(err, utils.ErrUnauthorized), "only HS256 is accepted")
}

func TestAuthRequired(t *testing.T) {
	router := gin.New()
	router.GET("/admin", AuthRequired(testSecret, RoleAdmin), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(subjectKey))
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"wrong role", "Bearer " + adminToken(t, "viewer", time.Now().Add(time.Hour)), http.StatusForbidden},
		{"admin", "Bearer " + adminToken(t, RoleAdmin, time.Now().Add(time.Hour)), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "ops@example.com", w.Body.String())
			}
		})
	}
}

func TestCORS(t *testing.T) {
	router := gin.New()
	router.Use(CORS([]string{"http://localhost:5173"}))
	router.GET("/players", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/players", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("other origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/players", nil)
		req.Header.Set("Origin", "http://evil.example")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/players", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	})
}
