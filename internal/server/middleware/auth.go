package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blameazu/minesweeper/internal/auth"
)

// UserContextKey is where RequireAuth stores the resolved *auth.User.
const UserContextKey = "user"

// RequireAuth validates the bearer token in Authorization and sets the
// resolved caller identity in context, adapted from the teacher's
// handlers.AuthMiddleware.
func RequireAuth(identity *auth.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		token := authHeader[7:]
		user, err := identity.Resolve(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(UserContextKey, user)
		c.Next()
	}
}

// CallerUser extracts the *auth.User set by RequireAuth.
func CallerUser(c *gin.Context) *auth.User {
	v, ok := c.Get(UserContextKey)
	if !ok {
		return nil
	}
	u, _ := v.(*auth.User)
	return u
}
