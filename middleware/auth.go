package middleware

import (
	"ctp/database"
	"ctp/internal/apierr"
	"ctp/internal/auth"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// Authenticate runs the provider chain and stamps the resulting Principal
// onto both the gin context and the request context's actor slot, so every
// downstream gorm call and audit hook sees who is making the request.
func Authenticate(registry *auth.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := registry.Authenticate(c.Request.Context(), c.Request)
		if err != nil || principal == nil {
			status, resp := apierr.Render(apierr.New(apierr.AuthMissingCredential, err), c.GetString("request_id"), false)
			c.JSON(status, resp)
			c.Abort()
			return
		}

		c.Set(principalKey, principal)
		ctx := database.WithActor(c.Request.Context(), principal.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// OptionalAuthenticate behaves like Authenticate but lets the request
// through unauthenticated when no provider claims the credential; handlers
// behind it must check CurrentPrincipal themselves.
func OptionalAuthenticate(registry *auth.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := registry.Authenticate(c.Request.Context(), c.Request)
		if err == nil && principal != nil {
			c.Set(principalKey, principal)
			ctx := database.WithActor(c.Request.Context(), principal.UserID)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

// CurrentPrincipal returns the authenticated Principal stored by Authenticate.
func CurrentPrincipal(c *gin.Context) (*auth.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*auth.Principal)
	return p, ok
}

// RequireAdmin aborts with 403 unless the current principal is an admin.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if !ok || !p.IsAdmin {
			status, resp := apierr.Render(apierr.New(apierr.AuthzForbidden, nil), c.GetString("request_id"), false)
			c.JSON(status, resp)
			c.Abort()
			return
		}
		c.Next()
	}
}
