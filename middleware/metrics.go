package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cppla/radiocms/metrics"
)

// RequestMetrics counts requests by method, matched route template and status.
func RequestMetrics() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Next()
		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(ctx.Request.Method, route, strconv.Itoa(ctx.Writer.Status())).Inc()
	}
}
