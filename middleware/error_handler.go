package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/brokerjobs/common"
)

// ErrorHandler renders the last error a handler recorded. Only the client
// message is sent; server failures are logged with their cause.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		apiErr, _ := common.AsAPIError(c.Errors.Last().Err)
		if apiErr.Status >= 500 && apiErr.Cause != nil {
			slog.Error("http.error",
				"method", c.Request.Method,
				"path", c.FullPath(),
				"status", apiErr.Status,
				"error", apiErr.Cause,
			)
		}

		response := gin.H{"error": apiErr.Message}
		if apiErr.Fields != nil {
			response["fields"] = apiErr.Fields
		}
		c.JSON(apiErr.Status, response)
	}
}
