package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yuanshang000/ds2api/internal/utils/log"
)

// Logger records one line per request. Only wired in debug mode.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Debugf("%3d | %13v | %-7s %s",
			c.Writer.Status(),
			time.Since(start),
			c.Request.Method,
			path,
		)
	}
}
