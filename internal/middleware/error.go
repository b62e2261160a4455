package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/healthtrack-api/internal/handler"
	apperrors "github.com/jwalitptl/healthtrack-api/pkg/errors"
)

// ErrorHandler renders the last error a handler attached with c.Error.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only handle errors if they exist
		if len(c.Errors) == 0 {
			return
		}

		lastErr := c.Errors.Last().Err
		status := apperrors.HTTPStatus(lastErr)

		event := log.Warn()
		if status >= 500 {
			event = log.Error()
		}
		event.
			Err(lastErr).
			Str("request_id", c.GetString(ContextRequestID)).
			Str("path", c.Request.URL.Path).
			Str("method", c.Request.Method).
			Int("status", status).
			Msg("Request error")

		if c.Writer.Written() {
			return
		}
		c.JSON(status, handler.NewAppErrorResponse(lastErr))
	}
}
