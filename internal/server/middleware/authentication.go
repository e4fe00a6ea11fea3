package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// The upstream auth proxy verifies the session and forwards the user id in this header.
const (
	userIDHeader                   = "X-User-ID"
	adminTokenHeader               = "X-Admin-Token"
	UserIDContextKey               = "authenticatedUserID"
	IsAuthenticatedContextValueKey = "isUserAuthenticated"
)

func AuthenticationMiddleware(c *gin.Context) {
	userID := strings.TrimSpace(c.GetHeader(userIDHeader))
	if userID == "" {
		c.Next()
		return
	}

	c.Set(UserIDContextKey, userID)
	c.Set(IsAuthenticatedContextValueKey, true)
	c.Next()
}

func UserID(c *gin.Context) (string, bool) {
	if !c.GetBool(IsAuthenticatedContextValueKey) {
		return "", false
	}
	return c.GetString(UserIDContextKey), true
}

func RequireUser(c *gin.Context) {
	if _, ok := UserID(c); !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	c.Next()
}

func RequireAdmin(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		given := c.GetHeader(adminTokenHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin token required"})
			return
		}
		c.Next()
	}
}
