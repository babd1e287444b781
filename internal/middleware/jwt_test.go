package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campusconnect-api/internal/models"
	"github.com/noah-isme/campusconnect-api/internal/service"
)

func newJWTEngine(tokens TokenValidator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", JWT(tokens), func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": claims.UserID, "department": claims.Department})
	})
	return r
}

func TestJWTAttachesClaims(t *testing.T) {
	tokens := service.NewTokenService(service.TokenConfig{Secret: "secret", Issuer: "campusconnect", Expiry: time.Hour})
	token, _, err := tokens.Issue("F1", models.RoleFaculty, " Library ", "Dr. Rao", "rao@example.edu")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "bearer "+token)
	newJWTEngine(tokens).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"F1","department":"Library"}`, w.Body.String())
}

func TestJWTRejectsMissingOrInvalidTokens(t *testing.T) {
	tokens := service.NewTokenService(service.TokenConfig{Secret: "secret"})
	other := service.NewTokenService(service.TokenConfig{Secret: "other"})
	forged, _, err := other.Issue("A1", models.RoleAdmin, "", "", "")
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing":   "",
		"scheme":    "Basic abc",
		"empty":     "Bearer   ",
		"forged":    "Bearer " + forged,
		"malformed": "Bearer not-a-jwt",
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		newJWTEngine(tokens).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, name)
		assert.Contains(t, w.Body.String(), "UNAUTHORIZED", name)
	}
}

func TestBearerToken(t *testing.T) {
	token, ok := bearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", token)

	_, ok = bearerToken("abc.def")
	assert.False(t, ok)
}
