package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/healthtrack-api/internal/handler"
	apperrors "github.com/jwalitptl/healthtrack-api/pkg/errors"
)

// Recovery turns a handler panic into a 500 with the usual error body. The
// panic is logged through the request logger so it carries the request id.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if p := recover(); p != nil {
				zerolog.Ctx(c.Request.Context()).Error().
					Interface("panic", p).
					Str("stack", string(debug.Stack())).
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Msg("Request panic recovered")

				err := apperrors.Internal(fmt.Errorf("panic: %v", p))
				c.AbortWithStatusJSON(http.StatusInternalServerError, handler.NewAppErrorResponse(err))
			}
		}()
		c.Next()
	}
}
