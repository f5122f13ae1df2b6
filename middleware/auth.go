package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/duynhne/learning-platform/internal/core/domain"
)

// AdminKeyHeader carries the admin shared secret.
const AdminKeyHeader = "X-ADMIN-KEY"

// AdminKeyMiddleware guards the admin surface with a shared secret.
// An empty configured key rejects every request with SERVER_MISCONFIG;
// a missing or mismatched header is rejected with UNAUTHORIZED. Both are
// reported through ErrorTranslator.
func AdminKeyMiddleware(configuredKey string) gin.HandlerFunc {
	want := []byte(configuredKey)

	return func(c *gin.Context) {
		if len(want) == 0 {
			_ = c.Error(domain.AdminKeyNotConfigured())
			c.Abort()
			return
		}

		got := c.GetHeader(AdminKeyHeader)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			_ = c.Error(domain.AdminKeyInvalid())
			c.Abort()
			return
		}

		c.Next()
	}
}
