package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// UserIDKey is the gin context key carrying the authenticated user id.
const UserIDKey = "user_id"

// Authenticator checks static credentials loaded from configuration.
type Authenticator struct {
	users map[string]string
}

// NewAuthenticator creates an authenticator over a username -> password map.
func NewAuthenticator(users map[string]string) *Authenticator {
	return &Authenticator{users: users}
}

// CheckCredentials validates a username/password pair with a constant-time
// comparison.
func (a *Authenticator) CheckCredentials(username, password string) bool {
	expected, ok := a.users[username]
	if !ok {
		// Burn comparable time so missing users are not distinguishable.
		subtle.ConstantTimeCompare([]byte(password), []byte(password))
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(expected)) == 1
}

// Middleware returns a gin handler that validates the Bearer token and stores
// the user id in the request context.
func Middleware(tokens *TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization token is missing"})
			return
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")
		if tokenStr == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header must use the Bearer scheme"})
			return
		}

		claims, err := tokens.ValidateToken(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Next()
	}
}

// UserID extracts the authenticated user id set by Middleware.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
