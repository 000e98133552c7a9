package api

import (
	"net/http"
	"strconv"
	"time"

	"rental-service/internal/models"
	"rental-service/internal/service"
	"rental-service/internal/util"

	"github.com/gin-gonic/gin"
)

const callerKey = "caller"

// identityMiddleware extracts the caller identity placed on the request by
// the upstream identity provider. The core trusts these values as already
// authenticated.
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		idStr := c.GetHeader("X-User-ID")
		userID, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing or invalid user identity",
			})
			return
		}

		role := c.GetHeader("X-User-Role")
		switch role {
		case models.RoleGuest, models.RoleHost, models.RoleAdmin:
		case "":
			role = models.RoleGuest
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unrecognized role",
			})
			return
		}

		c.Set(callerKey, service.Caller{UserID: userID, Role: role})
		c.Next()
	}
}

// callerFrom returns the caller stored by identityMiddleware.
func callerFrom(c *gin.Context) service.Caller {
	v, _ := c.Get(callerKey)
	caller, _ := v.(service.Caller)
	return caller
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
