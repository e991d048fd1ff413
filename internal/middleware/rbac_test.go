package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/smartstudy/platform-api/internal/models"
)

func rbacRouter(claims *models.JWTClaims, roles ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
	})
	r.GET("/guarded", RequireRoles(roles...), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRBACAllowsMatchingRole(t *testing.T) {
	r := rbacRouter(&models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}, models.RoleTeacher)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/guarded", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRBACRejectsOtherRole(t *testing.T) {
	r := rbacRouter(&models.JWTClaims{UserID: "s1", Role: models.RoleStudent}, models.RoleTeacher)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/guarded", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACRejectsMissingClaims(t *testing.T) {
	r := rbacRouter(nil, models.RoleTeacher)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/guarded", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
