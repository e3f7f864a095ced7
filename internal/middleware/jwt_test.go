package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/court-dcm-api/internal/models"
	"github.com/noah-isme/court-dcm-api/internal/service"
)

const testSecret = "test-secret"

func testAuthService() *service.AuthService {
	return service.NewAuthService(nil, nil, validator.New(), zap.NewNop(), service.AuthConfig{
		AccessTokenSecret:  testSecret,
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "court-dcm-api",
	})
}

func mintToken(t *testing.T, secret, userID string, role models.UserRole, ttl time.Duration) string {
	t.Helper()
	claims := models.JWTClaims{
		UserID:   userID,
		Role:     role,
		Email:    "staff@court.test",
		FullName: "Court Staff",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "court-dcm-api",
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newProtectedRouter(guards ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append([]gin.HandlerFunc{JWT(testAuthService())}, guards...)
	group := r.Group("/", handlers...)
	group.GET("/users/:id", func(c *gin.Context) {
		claims := c.MustGet(ContextUserKey).(*models.JWTClaims)
		c.JSON(http.StatusOK, gin.H{"user_id": claims.UserID})
	})
	return r
}

func doRequest(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTMissingHeader(t *testing.T) {
	r := newProtectedRouter()
	w := doRequest(r, "/users/user-1", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTMalformedHeader(t *testing.T) {
	r := newProtectedRouter()
	req := httptest.NewRequest(http.MethodGet, "/users/user-1", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	r := newProtectedRouter()
	token := mintToken(t, "another-secret", "user-1", models.RoleClerk, time.Hour)
	w := doRequest(r, "/users/user-1", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTRejectsExpiredToken(t *testing.T) {
	r := newProtectedRouter()
	token := mintToken(t, testSecret, "user-1", models.RoleClerk, -time.Hour)
	w := doRequest(r, "/users/user-1", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTSetsClaimsInContext(t *testing.T) {
	r := newProtectedRouter()
	token := mintToken(t, testSecret, "user-1", models.RoleClerk, time.Hour)
	w := doRequest(r, "/users/user-1", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"user-1"`)
}

func TestRBACAllowsListedRole(t *testing.T) {
	r := newProtectedRouter(RequireRoles(models.RoleJudge, models.RoleAdmin))
	token := mintToken(t, testSecret, "user-1", models.RoleJudge, time.Hour)
	w := doRequest(r, "/users/user-1", token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRBACRejectsOtherRole(t *testing.T) {
	r := newProtectedRouter(RequireRoles(models.RoleAdmin))
	token := mintToken(t, testSecret, "user-1", models.RoleClerk, time.Hour)
	w := doRequest(r, "/users/user-1", token)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACSelfAccess(t *testing.T) {
	r := newProtectedRouter(RBAC("ADMIN", "SELF"))
	token := mintToken(t, testSecret, "user-1", models.RoleClerk, time.Hour)

	w := doRequest(r, "/users/user-1", token)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, "/users/user-2", token)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
