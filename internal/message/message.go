// Package message implements the message core (C7): target-polymorphic
// discussion entries with scope derivation, soft delete, and an append-only
// content audit trail, independent of the generic HTTP audit log.
package message

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ctp/consts"
	"ctp/database"
	"ctp/internal/apierr"
	"ctp/internal/auth"

	"gorm.io/gorm"
)

// Scope names the six polymorphic targets a Message can resolve to, plus
// the "global", "organization" and "course_family" scopes used by channel
// naming and query filters.
type Scope string

const (
	ScopeGlobal          Scope = "global"
	ScopeOrganization    Scope = "organization"
	ScopeCourseFamily    Scope = "course_family"
	ScopeCourse          Scope = "course"
	ScopeCourseContent   Scope = "course_content"
	ScopeCourseGroup     Scope = "course_group"
	ScopeSubmissionGroup Scope = "submission_group"
	ScopeCourseMember    Scope = "course_member"
	ScopeUser            Scope = "user"
)

// Target is the caller-supplied payload naming at most one of six possible
// targets; Create resolves it into exactly one Scope.
type Target struct {
	ParentID          *int
	UserID            *int
	CourseMemberID    *int
	SubmissionGroupID *int
	CourseGroupID     *int
	CourseContentID   *int
	CourseID          *int
}

// Scope derives the single target field set on t, defaulting to ScopeUser
// (author posting to themselves) when none is set. More than one set field
// is a validation error, matching the "exactly one target" sum-type rule.
func (t Target) Scope() (Scope, error) {
	set := 0
	var scope Scope
	check := func(isSet bool, s Scope) {
		if isSet {
			set++
			scope = s
		}
	}
	check(t.UserID != nil, ScopeUser)
	check(t.CourseMemberID != nil, ScopeCourseMember)
	check(t.SubmissionGroupID != nil, ScopeSubmissionGroup)
	check(t.CourseGroupID != nil, ScopeCourseGroup)
	check(t.CourseContentID != nil, ScopeCourseContent)
	check(t.CourseID != nil, ScopeCourse)

	switch set {
	case 0:
		return ScopeUser, nil
	case 1:
		return scope, nil
	default:
		return "", apierr.Validation(apierr.FieldError{Field: "target", Message: "exactly one target field may be set", Type: "conflict"})
	}
}

// resolveTarget applies the per-scope write rules: not-implemented scopes,
// read-only scopes, membership/role-gated scopes, and parent inheritance.
func resolveTarget(ctx context.Context, db *gorm.DB, p *auth.Principal, authorID int, in Target) (Target, error) {
	if in.ParentID != nil {
		var parent database.Message
		if err := db.WithContext(ctx).First(&parent, *in.ParentID).Error; err != nil {
			return Target{}, apierr.New(apierr.NotFound, err)
		}
		inherited := Target{
			ParentID:          in.ParentID,
			UserID:            parent.UserID,
			CourseMemberID:    parent.CourseMemberID,
			SubmissionGroupID: parent.SubmissionGroupID,
			CourseGroupID:     parent.CourseGroupID,
			CourseContentID:   parent.CourseContentID,
			CourseID:          parent.CourseID,
		}
		if conflictsWithParent(in, inherited) {
			return Target{}, apierr.Validation(apierr.FieldError{Field: "target", Message: "target fields must match parent message", Type: "conflict"})
		}
		in = inherited
	}

	scope, err := in.Scope()
	if err != nil {
		return Target{}, err
	}

	switch scope {
	case ScopeUser, ScopeCourseMember:
		if scope == ScopeCourseMember {
			return Target{}, apierr.New(apierr.NotImplemented, nil)
		}
		if in.UserID == nil {
			in.UserID = &authorID
		}
		return in, nil

	case ScopeCourseGroup:
		return Target{}, apierr.New(apierr.AuthzForbidden, fmt.Errorf("course_group is read-only"))

	case ScopeSubmissionGroup:
		ok, err := groupMembershipOrRole(ctx, db, p, *in.SubmissionGroupID)
		if err != nil {
			return Target{}, apierr.New(apierr.ServerFault, err)
		}
		if !ok {
			return Target{}, apierr.New(apierr.AuthzForbidden, nil)
		}
		return in, nil

	case ScopeCourseContent, ScopeCourse:
		courseID := in.CourseID
		if scope == ScopeCourseContent {
			var content database.CourseContent
			if err := db.WithContext(ctx).Select("course_id").First(&content, *in.CourseContentID).Error; err != nil {
				return Target{}, apierr.New(apierr.NotFound, err)
			}
			courseID = &content.CourseID
		}
		if !p.Permitted(consts.ResourceCourseContent, consts.ActionWrite, courseID) {
			return Target{}, apierr.New(apierr.AuthzForbidden, nil)
		}
		return in, nil

	default:
		return Target{}, apierr.New(apierr.NotImplemented, nil)
	}
}

func conflictsWithParent(explicit, inherited Target) bool {
	mismatch := func(a, b *int) bool { return a != nil && b != nil && *a != *b }
	return mismatch(explicit.UserID, inherited.UserID) ||
		mismatch(explicit.CourseMemberID, inherited.CourseMemberID) ||
		mismatch(explicit.SubmissionGroupID, inherited.SubmissionGroupID) ||
		mismatch(explicit.CourseGroupID, inherited.CourseGroupID) ||
		mismatch(explicit.CourseContentID, inherited.CourseContentID) ||
		mismatch(explicit.CourseID, inherited.CourseID)
}

// groupMembershipOrRole reports whether p is a member of the submission
// group itself, or holds at least _tutor in the group's course.
func groupMembershipOrRole(ctx context.Context, db *gorm.DB, p *auth.Principal, submissionGroupID int) (bool, error) {
	var courseID int
	err := db.WithContext(ctx).
		Table("submission_groups").
		Select("course_contents.course_id").
		Joins("JOIN course_contents ON course_contents.id = submission_groups.course_content_id").
		Where("submission_groups.id = ?", submissionGroupID).
		Scan(&courseID).Error
	if err != nil {
		return false, err
	}

	role, hasRole := p.GetHighestCourseRole(courseID)
	if hasRole && consts.CourseRoleLevel[role] >= consts.CourseRoleLevel[consts.CourseRoleTutor] {
		return true, nil
	}

	var count int64
	err = db.WithContext(ctx).
		Table("submission_group_members").
		Joins("JOIN course_members ON course_members.id = submission_group_members.course_member_id").
		Where("submission_group_members.submission_group_id = ? AND course_members.user_id = ?", submissionGroupID, p.UserID).
		Count(&count).Error
	return count > 0, err
}

// Create inserts a new Message after deriving and authorizing its target.
func Create(ctx context.Context, db *gorm.DB, p *auth.Principal, authorID int, title, content string, in Target) (*database.Message, error) {
	target, err := resolveTarget(ctx, db, p, authorID, in)
	if err != nil {
		return nil, err
	}

	msg := &database.Message{
		AuthorID:          authorID,
		ParentID:          target.ParentID,
		Title:             title,
		Content:           content,
		UserID:            target.UserID,
		CourseMemberID:    target.CourseMemberID,
		SubmissionGroupID: target.SubmissionGroupID,
		CourseGroupID:     target.CourseGroupID,
		CourseContentID:   target.CourseContentID,
		CourseID:          target.CourseID,
	}
	if msg.ParentID != nil {
		var parent database.Message
		if err := db.WithContext(ctx).Select("level").First(&parent, *msg.ParentID).Error; err == nil {
			msg.Level = parent.Level + 1
		}
	}

	if err := db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, apierr.New(apierr.ServerFault, err)
	}

	audit := &database.MessageAuditLog{MessageID: msg.ID, UserID: authorID, Action: consts.MessageActionCreated, NewTitle: title, NewContent: content}
	if err := db.WithContext(ctx).Create(audit).Error; err != nil {
		return nil, apierr.New(apierr.ServerFault, err)
	}

	return msg, nil
}

// Update applies a title/content edit; only the author may update, and a
// deleted message can never be updated again.
func Update(ctx context.Context, db *gorm.DB, actorID int, messageID int, title, content *string) (*database.Message, error) {
	var msg database.Message
	if err := db.WithContext(ctx).First(&msg, messageID).Error; err != nil {
		return nil, apierr.New(apierr.NotFound, err)
	}
	if msg.AuthorID != actorID {
		return nil, apierr.New(apierr.AuthzForbidden, nil)
	}
	if msg.ArchivedAt != nil {
		return nil, apierr.New(apierr.AuthzForbidden, fmt.Errorf("message is deleted"))
	}

	audit := &database.MessageAuditLog{MessageID: msg.ID, UserID: actorID, Action: consts.MessageActionUpdated, OldTitle: msg.Title, OldContent: msg.Content}
	changed := false
	if title != nil && *title != msg.Title {
		msg.Title = *title
		audit.NewTitle = *title
		changed = true
	}
	if content != nil && *content != msg.Content {
		msg.Content = *content
		audit.NewContent = *content
		changed = true
	}
	if !changed {
		return &msg, nil
	}

	if err := db.WithContext(ctx).Save(&msg).Error; err != nil {
		return nil, apierr.New(apierr.ServerFault, err)
	}
	if err := db.WithContext(ctx).Create(audit).Error; err != nil {
		return nil, apierr.New(apierr.ServerFault, err)
	}
	return &msg, nil
}

const tombstoneTitle = "[deleted]"
const tombstoneContent = "This message has been deleted."

// SoftDelete replaces title/content with tombstone text, stamps properties
// with deletion metadata, and writes the MessageAuditLog entry the original
// content is preserved in.
func SoftDelete(ctx context.Context, db *gorm.DB, actorID int, messageID int, reason string, deleterIsAdmin bool) error {
	var msg database.Message
	if err := db.WithContext(ctx).First(&msg, messageID).Error; err != nil {
		return apierr.New(apierr.NotFound, err)
	}
	if msg.ArchivedAt != nil {
		return nil
	}
	if msg.AuthorID != actorID && !deleterIsAdmin {
		return apierr.New(apierr.AuthzForbidden, nil)
	}

	deleterKind := "author"
	if deleterIsAdmin && msg.AuthorID != actorID {
		deleterKind = "admin"
	}

	audit := &database.MessageAuditLog{
		MessageID: msg.ID, UserID: actorID, Action: consts.MessageActionDeleted,
		OldTitle: msg.Title, OldContent: msg.Content,
	}

	now := time.Now()
	props := database.Properties{
		"deletion_reason":  reason,
		"deleter_kind":     deleterKind,
		"deleted_at":       now.Format(time.RFC3339),
	}

	updates := map[string]any{
		"title":       tombstoneTitle,
		"content":     tombstoneContent,
		"properties":  props,
		"archived_at": now,
		"updated_by":  actorID,
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&database.Message{}).Where("id = ?", messageID).Updates(updates).Error; err != nil {
			return apierr.New(apierr.ServerFault, err)
		}
		if err := tx.Create(audit).Error; err != nil {
			return apierr.New(apierr.ServerFault, err)
		}
		return nil
	})
}

// MarkRead upserts a per-reader read receipt; idempotent on repeat calls.
func MarkRead(ctx context.Context, db *gorm.DB, readerUserID, messageID int) error {
	read := &database.MessageRead{MessageID: messageID, ReaderUserID: readerUserID}
	return db.WithContext(ctx).
		Where("message_id = ? AND reader_user_id = ?", messageID, readerUserID).
		FirstOrCreate(read).Error
}

// IsRead reports whether readerUserID has a receipt for messageID.
func IsRead(ctx context.Context, db *gorm.DB, readerUserID, messageID int) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&database.MessageRead{}).
		Where("message_id = ? AND reader_user_id = ?", messageID, readerUserID).
		Count(&count).Error
	return count > 0, err
}

// TagFilter parses a `#scope::value` search token into its scope and value
// halves, used to build SQL LIKE predicates over Title.
type TagFilter struct {
	Scope Scope
	Value string
}

// ParseTag splits "#scope::value" into a TagFilter; ok is false for any
// token not matching that shape.
func ParseTag(token string) (TagFilter, bool) {
	if !strings.HasPrefix(token, "#") {
		return TagFilter{}, false
	}
	rest := strings.TrimPrefix(token, "#")
	parts := strings.SplitN(rest, "::", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return TagFilter{}, false
	}
	return TagFilter{Scope: Scope(parts[0]), Value: parts[1]}, true
}

// ApplyTagFilters ANDs (matchAll) or ORs (matchAll=false) a set of tag
// filters into db as Title LIKE predicates; "*" as a value is a
// scope-wildcard matching any value under that scope.
func ApplyTagFilters(db *gorm.DB, filters []TagFilter, matchAll bool) *gorm.DB {
	if len(filters) == 0 {
		return db
	}

	clauses := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, f := range filters {
		if f.Value == "*" {
			clauses = append(clauses, "title LIKE ?")
			args = append(args, fmt.Sprintf("%%#%s::%%", f.Scope))
			continue
		}
		clauses = append(clauses, "title LIKE ?")
		args = append(args, fmt.Sprintf("%%#%s::%s%%", f.Scope, f.Value))
	}

	joiner := " OR "
	if matchAll {
		joiner = " AND "
	}
	return db.Where(strings.Join(clauses, joiner), args...)
}
