package apperrors

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Recovery recovers from panics in proxy handlers and reports them as a
// 5000 internal error instead of crashing the callback process.
func Recovery(log *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("recovered from panic in proxy handler")
				c.JSON(http.StatusOK, gin.H{"error": Internal("internal error", nil).ToProxyResponse()})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// RespondProxy writes the broker's `{result: ...}` / `{error: ...}` envelope.
// HTTP status is always 200 for proxy callbacks; the broker reads the body.
func RespondProxy(c *gin.Context, result interface{}, err error) {
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"result": result})
		return
	}
	if appErr, ok := err.(*AppError); ok {
		c.JSON(http.StatusOK, gin.H{"error": appErr.ToProxyResponse()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"error": Internal("internal error", err).ToProxyResponse()})
}

// RespondHTTP writes a plain-HTTP-status error body, used by /auth/login
// and /auth/logout which do not follow the proxy-code envelope.
func RespondHTTP(c *gin.Context, err error) {
	if appErr, ok := err.(*AppError); ok {
		c.JSON(appErr.StatusCode, appErr.ToHTTPBody())
		return
	}
	c.JSON(http.StatusInternalServerError, HTTPBody{Error: err.Error()})
}
