package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-agent/infrastructure/configuration"
)

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Auth())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func signedToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "operator"})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestAuthPassesThroughWithoutSecret(t *testing.T) {
	prev := configuration.C.App.SecretKey
	configuration.C.App.SecretKey = ""
	defer func() { configuration.C.App.SecretKey = prev }()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	testRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRejectsMissingToken(t *testing.T) {
	prev := configuration.C.App.SecretKey
	configuration.C.App.SecretKey = "unit-secret"
	defer func() { configuration.C.App.SecretKey = prev }()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	testRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthAcceptsSignedToken(t *testing.T) {
	prev := configuration.C.App.SecretKey
	configuration.C.App.SecretKey = "unit-secret"
	defer func() { configuration.C.App.SecretKey = prev }()

	token := signedToken(t, "unit-secret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	testRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRejectsTokenSignedWithWrongSecret(t *testing.T) {
	prev := configuration.C.App.SecretKey
	configuration.C.App.SecretKey = "unit-secret"
	defer func() { configuration.C.App.SecretKey = prev }()

	token := signedToken(t, "other-secret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	testRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
