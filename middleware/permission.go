package middleware

import (
	"strconv"

	"ctp/consts"
	"ctp/internal/apierr"
	"ctp/internal/permission"

	"github.com/gin-gonic/gin"
)

// courseIDParam pulls an optional course scope off the URL; most non-CRUD
// routes that need a permission check outside the generic dispatcher carry
// it as :course_id.
func courseIDParam(c *gin.Context) *int {
	raw := c.Param("course_id")
	if raw == "" {
		return nil
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &id
}

// RequirePermission builds a middleware that denies the request unless the
// authenticated principal is permitted action on resource, scoped to the
// URL's :course_id when present. It is for routes outside the generic CRUD
// dispatcher, which already runs this same check per verb.
func RequirePermission(engine *permission.Engine, resource consts.ResourceName, action consts.ActionName) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if !ok {
			status, resp := apierr.Render(apierr.New(apierr.AuthMissingCredential, nil), c.GetString("request_id"), false)
			c.JSON(status, resp)
			c.Abort()
			return
		}

		if !engine.Permitted(c.Request.Context(), p, resource, action, courseIDParam(c)) {
			status, resp := apierr.Render(apierr.New(apierr.AuthzForbidden, nil), c.GetString("request_id"), false)
			c.JSON(status, resp)
			c.Abort()
			return
		}

		c.Next()
	}
}
