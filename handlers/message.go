package handlers

import (
	"net/http"
	"strconv"

	"ctp/database"
	"ctp/internal/apierr"
	"ctp/internal/message"
	"ctp/middleware"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type MessageHandlers struct {
	DB      *gorm.DB
	DevMode bool
}

func NewMessageHandlers(db *gorm.DB, devMode bool) *MessageHandlers {
	return &MessageHandlers{DB: db, DevMode: devMode}
}

type createMessageRequest struct {
	Title             string `json:"title" binding:"required"`
	Content           string `json:"content" binding:"required"`
	ParentID          *int   `json:"parent_id"`
	UserID            *int   `json:"user_id"`
	CourseMemberID    *int   `json:"course_member_id"`
	SubmissionGroupID *int   `json:"submission_group_id"`
	CourseGroupID     *int   `json:"course_group_id"`
	CourseContentID   *int   `json:"course_content_id"`
	CourseID          *int   `json:"course_id"`
}

func (h *MessageHandlers) Create(c *gin.Context) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		RenderError(c, h.DevMode, apierr.New(apierr.AuthMissingCredential, nil))
		return
	}
	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RenderError(c, h.DevMode, apierr.Validation(apierr.FieldError{Field: "body", Message: err.Error()}))
		return
	}

	target := message.Target{
		ParentID:          req.ParentID,
		UserID:            req.UserID,
		CourseMemberID:    req.CourseMemberID,
		SubmissionGroupID: req.SubmissionGroupID,
		CourseGroupID:     req.CourseGroupID,
		CourseContentID:   req.CourseContentID,
		CourseID:          req.CourseID,
	}

	msg, err := message.Create(c.Request.Context(), h.DB, p, p.UserID, req.Title, req.Content, target)
	if err != nil {
		writeMessageErr(c, h.DevMode, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

type updateMessageRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

func (h *MessageHandlers) Update(c *gin.Context) {
	id, ok := ParsePositiveID(c, c.Param("id"), "id")
	if !ok {
		return
	}
	var req updateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RenderError(c, h.DevMode, apierr.Validation(apierr.FieldError{Field: "body", Message: err.Error()}))
		return
	}
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		RenderError(c, h.DevMode, apierr.New(apierr.AuthMissingCredential, nil))
		return
	}
	msg, err := message.Update(c.Request.Context(), h.DB, p.UserID, id, req.Title, req.Content)
	if err != nil {
		writeMessageErr(c, h.DevMode, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

type deleteMessageRequest struct {
	Reason string `json:"reason"`
}

func (h *MessageHandlers) Delete(c *gin.Context) {
	id, ok := ParsePositiveID(c, c.Param("id"), "id")
	if !ok {
		return
	}
	var req deleteMessageRequest
	_ = c.ShouldBindJSON(&req)
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		RenderError(c, h.DevMode, apierr.New(apierr.AuthMissingCredential, nil))
		return
	}
	if err := message.SoftDelete(c.Request.Context(), h.DB, p.UserID, id, req.Reason, p.IsAdmin); err != nil {
		writeMessageErr(c, h.DevMode, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *MessageHandlers) MarkRead(c *gin.Context) {
	id, ok := ParsePositiveID(c, c.Param("id"), "id")
	if !ok {
		return
	}
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		RenderError(c, h.DevMode, apierr.New(apierr.AuthMissingCredential, nil))
		return
	}
	if err := message.MarkRead(c.Request.Context(), h.DB, p.UserID, id); err != nil {
		RenderError(c, h.DevMode, apierr.New(apierr.ServerFault, err))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *MessageHandlers) IsRead(c *gin.Context) {
	id, ok := ParsePositiveID(c, c.Param("id"), "id")
	if !ok {
		return
	}
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		RenderError(c, h.DevMode, apierr.New(apierr.AuthMissingCredential, nil))
		return
	}
	read, err := message.IsRead(c.Request.Context(), h.DB, p.UserID, id)
	if err != nil {
		RenderError(c, h.DevMode, apierr.New(apierr.ServerFault, err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"read": read})
}

// List returns the discussion thread for one scope, optionally filtered by
// `#scope::value` tag tokens in the `tags` query parameter.
func (h *MessageHandlers) List(c *gin.Context) {
	scope := message.Scope(c.Query("scope"))
	targetIDStr := c.Query("target_id")
	db := h.DB.WithContext(c.Request.Context())

	if scope != "" && targetIDStr != "" {
		targetID, err := strconv.Atoi(targetIDStr)
		if err != nil {
			RenderError(c, h.DevMode, apierr.Validation(apierr.FieldError{Field: "target_id", Message: "must be an integer"}))
			return
		}
		db = db.Where(scopeColumn(scope)+" = ?", targetID)
	}

	var filters []message.TagFilter
	for _, tok := range c.QueryArray("tags") {
		if f, ok := message.ParseTag(tok); ok {
			filters = append(filters, f)
		}
	}
	db = message.ApplyTagFilters(db, filters, c.Query("match") == "all")

	var messages []database.Message
	if err := db.Model(&database.Message{}).Order("created_at asc").Find(&messages).Error; err != nil {
		RenderError(c, h.DevMode, apierr.New(apierr.ServerFault, err))
		return
	}
	c.JSON(http.StatusOK, messages)
}

func scopeColumn(scope message.Scope) string {
	switch scope {
	case message.ScopeUser:
		return "user_id"
	case message.ScopeCourseMember:
		return "course_member_id"
	case message.ScopeSubmissionGroup:
		return "submission_group_id"
	case message.ScopeCourseGroup:
		return "course_group_id"
	case message.ScopeCourseContent:
		return "course_content_id"
	case message.ScopeCourse:
		return "course_id"
	default:
		return "course_id"
	}
}

func writeMessageErr(c *gin.Context, devMode bool, err error) {
	if apiErr, ok := err.(*apierr.Error); ok {
		RenderError(c, devMode, apiErr)
		return
	}
	RenderError(c, devMode, apierr.New(apierr.ServerFault, err))
}
