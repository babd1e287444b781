package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campusconnect-api/internal/models"
	appErrors "github.com/noah-isme/campusconnect-api/pkg/errors"
	"github.com/noah-isme/campusconnect-api/pkg/response"
)

// SelfParam lets a principal through when the named route parameter equals its user id.
type SelfParam string

// RBAC enforces role-based access control for routes. Allowed entries are roles, plus an
// optional SelfParam naming the route parameter that identifies the resource owner.
func RBAC(allowed ...interface{}) gin.HandlerFunc {
	roles := make(map[models.UserRole]struct{})
	var selfParam SelfParam
	for _, a := range allowed {
		switch v := a.(type) {
		case models.UserRole:
			roles[v] = struct{}{}
		case SelfParam:
			selfParam = v
		}
	}

	return func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := roles[claims.Role]; ok {
			c.Next()
			return
		}

		if selfParam != "" {
			if target := c.Param(string(selfParam)); target != "" && target == claims.UserID {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireRoles is a helper that accepts a list of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]interface{}, len(roles))
	for i, r := range roles {
		allowed[i] = r
	}
	return RBAC(allowed...)
}
