package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/medconsult-app/medconsult-api/internal/models"
)

func rbacRouter(claims *models.JWTClaims, allowed ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/resource/:id", func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	}, RBAC(allowed...), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func performRBAC(t *testing.T, router *gin.Engine, path string) int {
	t.Helper()
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))
	return recorder.Code
}

func TestRBACAllowsMatchingRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "user-1", Role: models.RoleDoctor}
	router := rbacRouter(claims, string(models.RoleDoctor))

	assert.Equal(t, http.StatusNoContent, performRBAC(t, router, "/resource/anything"))
}

func TestRBACRejectsOtherRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "user-1", Role: models.RolePatient}
	router := rbacRouter(claims, string(models.RoleDoctor))

	assert.Equal(t, http.StatusForbidden, performRBAC(t, router, "/resource/anything"))
}

func TestRBACAdminBypassesRoleChecks(t *testing.T) {
	claims := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	router := rbacRouter(claims, string(models.RoleDoctor))

	assert.Equal(t, http.StatusNoContent, performRBAC(t, router, "/resource/anything"))
}

func TestRBACSelfMatchesOwnResource(t *testing.T) {
	claims := &models.JWTClaims{UserID: "user-1", Role: models.RolePatient}
	router := rbacRouter(claims, "SELF")

	assert.Equal(t, http.StatusNoContent, performRBAC(t, router, "/resource/user-1"))
	assert.Equal(t, http.StatusForbidden, performRBAC(t, router, "/resource/user-2"))
}

func TestRBACRequiresClaims(t *testing.T) {
	router := rbacRouter(nil, string(models.RoleDoctor))

	assert.Equal(t, http.StatusUnauthorized, performRBAC(t, router, "/resource/anything"))
}

func TestBearerToken(t *testing.T) {
	token, ok := bearerToken("Bearer abc.def.ghi")
	assert.True(t, ok)
	assert.Equal(t, "abc.def.ghi", token)

	_, ok = bearerToken("Basic dXNlcg==")
	assert.False(t, ok)
	_, ok = bearerToken("Bearer")
	assert.False(t, ok)
}
