package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"classtrack/internal/model"
)

const identityKey = "identity"

// Bearer enforces HS256 bearer tokens and stores the caller identity on
// the request context.
func Bearer(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "errorKind": "Forbidden", "message": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "errorKind": "Forbidden", "message": "invalid token"})
			return
		}
		c.Set(identityKey, claims.Identity())
		c.Next()
	}
}

// RequireRole rejects callers whose token carries a different role.
func RequireRole(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if Caller(c).Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "errorKind": "Forbidden", "message": "requires " + string(role) + " role"})
			return
		}
		c.Next()
	}
}

// Caller returns the identity stored by Bearer; zero value if absent.
func Caller(c *gin.Context) model.Identity {
	v, _ := c.Get(identityKey)
	id, _ := v.(model.Identity)
	return id
}
