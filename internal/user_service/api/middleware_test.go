package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type fakeSessions struct {
	alive map[string]bool
}

func (f *fakeSessions) Exists(ctx context.Context, userID, sessionID string) (bool, error) {
	return f.alive[userID+"/"+sessionID], nil
}

func signToken(t *testing.T, userID, sessionID string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": userID,
		"jti": sessionID,
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func newProtectedRouter(sessions SessionChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", AuthMiddleware(testSecret, sessions), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("userID")})
	})
	return r
}

func do(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddlewareAcceptsLiveSession(t *testing.T) {
	sessions := &fakeSessions{alive: map[string]bool{"u1/s1": true}}
	r := newProtectedRouter(sessions)

	w := do(r, "Bearer "+signToken(t, "u1", "s1"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "u1")
}

func TestAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	r := newProtectedRouter(&fakeSessions{alive: map[string]bool{}})

	w := do(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareRejectsMalformedHeader(t *testing.T) {
	r := newProtectedRouter(&fakeSessions{alive: map[string]bool{}})

	w := do(r, "Token abc")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareRejectsBadSignature(t *testing.T) {
	sessions := &fakeSessions{alive: map[string]bool{"u1/s1": true}}
	r := newProtectedRouter(sessions)

	claims := jwt.MapClaims{"sub": "u1", "jti": "s1", "exp": time.Now().Add(time.Hour).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	w := do(r, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareRejectsRevokedSession(t *testing.T) {
	// The token is valid, but the session was deleted at logout.
	sessions := &fakeSessions{alive: map[string]bool{}}
	r := newProtectedRouter(sessions)

	w := do(r, "Bearer "+signToken(t, "u1", "s1"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareRejectsExpiredToken(t *testing.T) {
	sessions := &fakeSessions{alive: map[string]bool{"u1/s1": true}}
	r := newProtectedRouter(sessions)

	claims := jwt.MapClaims{"sub": "u1", "jti": "s1", "exp": time.Now().Add(-time.Hour).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	w := do(r, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
