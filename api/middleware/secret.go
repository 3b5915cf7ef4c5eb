package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SecretQueryParam is the query parameter carrying the shared secret.
const SecretQueryParam = "secret"

// RequireSecret guards an endpoint with a shared secret passed as the
// "secret" query parameter.
//
//   - 500 when no secret is configured, so operators can tell a missing
//     configuration from a wrong credential
//   - 400 when the parameter is missing
//   - 401 when it does not match
//
// Mismatches are reported to limiter (may be nil).
func RequireSecret(secret string, limiter *FailureLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Revalidation secret is not configured"})
			return
		}
		given := c.Query(SecretQueryParam)
		if given == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Missing secret parameter"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(given), []byte(secret)) != 1 {
			if limiter != nil {
				limiter.RecordFailure(c.ClientIP())
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid secret"})
			return
		}
		if limiter != nil {
			limiter.RecordSuccess(c.ClientIP())
		}
		c.Next()
	}
}
