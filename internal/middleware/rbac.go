package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/prepgen-backend/internal/model"
	"github.com/stemsi/prepgen-backend/internal/response"
)

// RequirePermission lets the request through when the admin token grants permission.
func RequirePermission(permission model.Permission) gin.HandlerFunc {
	return requirePermissions(permission)
}

// RequireAnyPermission needs at least one of permissions.
func RequireAnyPermission(permissions ...model.Permission) gin.HandlerFunc {
	return requirePermissions(permissions...)
}

// RequireAllPermissions needs every one of permissions, e.g. for views that
// join students with their attempts.
func RequireAllPermissions(permissions ...model.Permission) gin.HandlerFunc {
	checks := make([]gin.HandlerFunc, len(permissions))
	for i, p := range permissions {
		checks[i] = requirePermissions(p)
	}
	return func(c *gin.Context) {
		for _, check := range checks {
			if check(c); c.IsAborted() {
				return
			}
		}
	}
}

func requirePermissions(accepted ...model.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		if slices.ContainsFunc(accepted, func(p model.Permission) bool {
			return slices.Contains(claims.Permissions, string(p))
		}) {
			return
		}
		response.AbortFail(c, http.StatusForbidden, response.ErrPermissionDenied)
	}
}
