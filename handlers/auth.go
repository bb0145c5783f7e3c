package handlers

import (
	"errors"
	"net/http"
	"time"

	"ctp/consts"
	"ctp/database"
	"ctp/internal/apierr"
	"ctp/internal/auth"
	"ctp/internal/session"
	"ctp/middleware"
	"ctp/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	accessTokenTTL  = 2 * time.Hour
	refreshTokenTTL = 30 * 24 * time.Hour
)

type AuthHandlers struct {
	DB       *gorm.DB
	Local    *auth.LocalPasswordProvider
	DevMode  bool
}

func NewAuthHandlers(db *gorm.DB, devMode bool) *AuthHandlers {
	return &AuthHandlers{DB: db, Local: &auth.LocalPasswordProvider{DB: db}, DevMode: devMode}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	UserID           int       `json:"user_id"`
}

// Login verifies a username/password pair and opens a new device session.
func (h *AuthHandlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RenderError(c, h.DevMode, apierr.Validation(apierr.FieldError{Field: "body", Message: err.Error()}))
		return
	}

	principal, needsRehash, err := h.Local.Verify(c.Request.Context(), req.Username, req.Password)
	if errors.Is(err, consts.ErrAuthenticationFailed) {
		RenderError(c, h.DevMode, apierr.New(apierr.AuthInvalidCredential, nil))
		return
	}
	if err != nil {
		RenderError(c, h.DevMode, apierr.New(apierr.ServerFault, err))
		return
	}
	if needsRehash {
		if upgraded, herr := utils.HashPassword(req.Password); herr == nil {
			h.DB.WithContext(c.Request.Context()).Model(&database.User{}).Where("id = ?", principal.UserID).Update("password_hash", upgraded)
		}
	}

	now := time.Now()
	issued, err := session.Create(c.Request.Context(), h.DB, principal.UserID, c.ClientIP(), c.GetHeader("User-Agent"), now.Add(accessTokenTTL), now.Add(refreshTokenTTL))
	if err != nil {
		RenderError(c, h.DevMode, apierr.New(apierr.ServerFault, err))
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		AccessToken:      issued.AccessToken,
		RefreshToken:     issued.RefreshToken,
		ExpiresAt:        issued.ExpiresAt,
		RefreshExpiresAt: issued.RefreshExpiresAt,
		UserID:           principal.UserID,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh rotates a session's token pair.
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RenderError(c, h.DevMode, apierr.Validation(apierr.FieldError{Field: "body", Message: err.Error()}))
		return
	}

	issued, err := session.Refresh(c.Request.Context(), h.DB, auth.HashAPIToken(req.RefreshToken), c.ClientIP())
	if err != nil {
		switch {
		case errors.Is(err, consts.ErrNotFound), errors.Is(err, consts.ErrSessionExpired), errors.Is(err, consts.ErrTokenRevoked):
			RenderError(c, h.DevMode, apierr.New(apierr.AuthExpiredCredential, err))
		default:
			RenderError(c, h.DevMode, apierr.New(apierr.ServerFault, err))
		}
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		AccessToken:      issued.AccessToken,
		RefreshToken:     issued.RefreshToken,
		ExpiresAt:        issued.ExpiresAt,
		RefreshExpiresAt: issued.RefreshExpiresAt,
	})
}

// Logout ends the calling device's own session.
func (h *AuthHandlers) Logout(c *gin.Context) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		RenderError(c, h.DevMode, apierr.New(apierr.AuthMissingCredential, nil))
		return
	}
	sid := c.GetHeader("X-Session-ID")
	if sid != "" {
		if err := session.End(c.Request.Context(), h.DB, sid); err != nil {
			RenderError(c, h.DevMode, apierr.New(apierr.ServerFault, err))
			return
		}
	}
	_ = p
	c.Status(http.StatusNoContent)
}

// Me returns the authenticated principal's own user record.
func (h *AuthHandlers) Me(c *gin.Context) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		RenderError(c, h.DevMode, apierr.New(apierr.AuthMissingCredential, nil))
		return
	}
	var user database.User
	if err := h.DB.First(&user, p.UserID).Error; err != nil {
		RenderError(c, h.DevMode, apierr.New(apierr.NotFound, err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":        user.ID,
		"username":  user.Username,
		"email":     user.Email,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"is_admin":  p.IsAdmin,
		"is_service": p.IsService,
	})
}
