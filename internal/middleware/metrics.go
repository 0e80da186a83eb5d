package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Chethan77667/Result-BBHC/internal/service"
)

// Metrics returns middleware that times every request, including the
// multipart workbook uploads, labelled by route template so stored
// filenames never become label values.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		// Unregistered paths fall back to the raw URL path.
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
