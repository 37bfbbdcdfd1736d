package middleware

import (
	"crypto/subtle"
	"strings"

	"engagement-controlplane/pkg/errutil"

	"github.com/gin-gonic/gin"
)

// BearerToken rejects requests whose Authorization header does not carry token.
// An empty token disables the check.
func BearerToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			_ = c.Error(errutil.Unauthorized("invalid gateway token", nil))
			c.Abort()
			return
		}
		c.Next()
	}
}
