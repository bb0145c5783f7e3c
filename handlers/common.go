package handlers

import (
	"strconv"

	"ctp/internal/apierr"

	"github.com/gin-gonic/gin"
)

// ParsePositiveID parses a string ID path parameter, writing a validation
// error response and returning false if it isn't a positive integer.
func ParsePositiveID(c *gin.Context, idStr, fieldName string) (int, bool) {
	id, err := strconv.Atoi(idStr)
	if err != nil || id <= 0 {
		status, resp := apierr.Render(apierr.Validation(apierr.FieldError{Field: fieldName, Message: "must be a positive integer"}), c.GetString("request_id"), false)
		c.JSON(status, resp)
		return 0, false
	}
	return id, true
}

// RenderError writes a consistent apierr-shaped response and aborts the chain.
func RenderError(c *gin.Context, devMode bool, err *apierr.Error) {
	status, resp := apierr.Render(err, c.GetString("request_id"), devMode)
	c.JSON(status, resp)
	c.Abort()
}
