package mw

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OfficerHeader carries the authenticated officer id, set by the upstream
// auth proxy. The service itself does no authentication.
const OfficerHeader = "X-CPO-ID"

// OfficerID returns the requesting officer's id, or "".
func OfficerID(c *gin.Context) string {
	return c.GetHeader(OfficerHeader)
}

// RequireOfficer rejects requests without an officer id.
func RequireOfficer() gin.HandlerFunc {
	return func(c *gin.Context) {
		if OfficerID(c) == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": OfficerHeader + " header is required"})
			return
		}
		c.Next()
	}
}
