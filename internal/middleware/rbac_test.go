package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/labelforge/labelforge-api/internal/models"
)

func performWithRole(t *testing.T, role models.UserRole, allowed ...models.UserRole) int {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/guarded", func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: role})
		c.Next()
	}, RequireRoles(allowed...), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/guarded", nil)
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireRolesAllowsListedRole(t *testing.T) {
	code := performWithRole(t, models.RoleHODPrepress, models.RoleHODPrepress, models.RoleAdmin)
	require.Equal(t, http.StatusOK, code)
}

func TestRequireRolesBlocksOtherRoles(t *testing.T) {
	code := performWithRole(t, models.RoleDesigner, models.RoleHODPrepress, models.RoleAdmin)
	require.Equal(t, http.StatusForbidden, code)
}

func TestRequireRolesBlocksMissingClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/guarded", RequireRoles(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/guarded", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
