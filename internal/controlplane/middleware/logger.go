package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	slogGin "github.com/samber/slog-gin"
)

// AccessLog logs every request under the "http" group. Successful requests go to debug
// so that a busy editor does not flood the log.
func AccessLog() gin.HandlerFunc {
	return slogGin.NewWithConfig(slog.Default().WithGroup("http"), slogGin.Config{
		DefaultLevel:     slog.LevelDebug,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
		WithRequestID:    true,
	})
}

// ErrorLog reports handler errors attached with c.Error.
func ErrorLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Errors != nil {
			slog.Warn("control plane request failed",
				"method", c.Request.Method,
				"status", c.Writer.Status(),
				"path", c.Request.URL.Path,
				"errors", c.Errors.String(),
			)
		}
	}
}
