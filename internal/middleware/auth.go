package middleware

import (
	"strings"

	"clinic-management-server/internal/apperr"
	"clinic-management-server/internal/config"
	"clinic-management-server/internal/domain"
	"clinic-management-server/internal/utils"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// AuthMiddleware creates a middleware for JWT authentication. The principal
// is stored on the gin context and on the request context, where the store
// reads it for tenant filtering.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.Fail(c, apperr.Unauthorized(apperr.CodeMissingToken, "authorization header required"))
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			utils.Fail(c, apperr.Unauthorized(apperr.CodeMissingToken, "invalid authorization header format"))
			return
		}

		claims, err := utils.ValidateToken(parts[1], cfg.JWTSecret)
		if err != nil {
			utils.Fail(c, apperr.Unauthorized(apperr.CodeTokenInvalid, "invalid or expired access token"))
			return
		}
		p, err := claims.Principal()
		if err != nil {
			utils.Fail(c, apperr.Unauthorized(apperr.CodeTokenInvalid, "invalid or expired access token"))
			return
		}

		c.Set(principalKey, p)
		c.Request = c.Request.WithContext(domain.WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

// RoleAuthMiddleware creates a middleware for role-based authorization.
// It should be used *after* AuthMiddleware.
func RoleAuthMiddleware(allowedRoles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := Principal(c)
		if !ok {
			utils.Fail(c, apperr.Unauthorized(apperr.CodeMissingToken, "authentication required"))
			return
		}
		if !p.HasRole(allowedRoles...) {
			utils.Fail(c, apperr.Forbidden("you do not have permission to access this resource"))
			return
		}
		c.Next()
	}
}

// Principal returns the authenticated caller set by AuthMiddleware.
func Principal(c *gin.Context) (domain.Principal, bool) {
	v, exists := c.Get(principalKey)
	if !exists {
		return domain.Principal{}, false
	}
	p, ok := v.(domain.Principal)
	return p, ok
}
