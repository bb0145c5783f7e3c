package database

import (
	"fmt"
	"time"

	"ctp/consts"

	"gorm.io/gorm"
)

// =====================================================================
// Ambient audit columns
// =====================================================================

// Audited is embedded by every persistent entity. It generalizes the
// repeated CreatedAt/UpdatedAt/Status trio the original model duplicated
// per table into a single hook-bearing struct: the BeforeCreate/BeforeUpdate
// methods are promoted onto the embedding struct, so gorm picks them up
// without each entity redeclaring them.
type Audited struct {
	Version    int               `gorm:"not null;default:1"`
	Status     consts.StatusType `gorm:"not null;default:1;index"`
	CreatedAt  time.Time         `gorm:"autoCreateTime;index"`
	UpdatedAt  time.Time         `gorm:"autoUpdateTime"`
	ArchivedAt *time.Time        `gorm:"index"`
	CreatedBy  *int              `gorm:"index"`
	UpdatedBy  *int              `gorm:"index"`
}

func (a *Audited) BeforeCreate(tx *gorm.DB) error {
	if a.Version == 0 {
		a.Version = 1
	}
	if a.Status == 0 {
		a.Status = consts.StatusEnabled
	}
	if uid, ok := actorFromContext(tx.Statement.Context); ok {
		a.CreatedBy = &uid
		a.UpdatedBy = &uid
	}
	return nil
}

func (a *Audited) BeforeUpdate(tx *gorm.DB) error {
	a.Version++
	if uid, ok := actorFromContext(tx.Statement.Context); ok {
		a.UpdatedBy = &uid
	}
	return nil
}

// =====================================================================
// Subjects
// =====================================================================

type User struct {
	ID           int     `gorm:"primaryKey;autoIncrement"`
	Username     string  `gorm:"not null;index;size:64"`
	Email        string  `gorm:"not null;index;size:128"`
	FirstName    string  `gorm:"size:128"`
	LastName     string  `gorm:"size:128"`
	PasswordHash *string `gorm:"size:255"` // nil for pure-SSO/service accounts

	IsService             bool `gorm:"not null;default:false;index"`
	PasswordResetRequired bool `gorm:"not null;default:false"`
	IsActive              bool `gorm:"not null;default:true;index"`

	Audited

	ActiveUsername string `gorm:"type:varchar(64) GENERATED ALWAYS AS (CASE WHEN status >= 0 THEN username ELSE NULL END) STORED;uniqueIndex:idx_active_username"`
	ActiveEmail    string `gorm:"type:varchar(128) GENERATED ALWAYS AS (CASE WHEN status >= 0 THEN email ELSE NULL END) STORED;uniqueIndex:idx_active_email"`
}

// Account links an external identity provider's account to a User (SSO).
type Account struct {
	ID                int    `gorm:"primaryKey;autoIncrement"`
	UserID            int    `gorm:"not null;index"`
	Provider          string `gorm:"not null;size:64;uniqueIndex:idx_account_provider_identity"`
	ProviderAccountID string `gorm:"not null;size:255;uniqueIndex:idx_account_provider_identity"`

	Audited

	User *User `gorm:"foreignKey:UserID"`
}

// Service describes a machine principal: exactly one User with IsService
// true owns at most one Service row.
type Service struct {
	ID         int        `gorm:"primaryKey;autoIncrement"`
	UserID     int        `gorm:"not null;uniqueIndex"`
	Slug       string     `gorm:"not null;size:64;uniqueIndex"`
	ServiceType string    `gorm:"not null;size:64;index"`
	Config     Properties `gorm:"type:longtext"`
	Enabled    bool       `gorm:"not null;default:true;index"`
	LastSeenAt *time.Time

	Audited

	User *User `gorm:"foreignKey:UserID"`
}

// ApiToken is a long-lived bearer credential. Only the hash and a
// non-secret prefix are stored; the cleartext is returned once at issuance.
type ApiToken struct {
	ID          int    `gorm:"primaryKey;autoIncrement"`
	UserID      int    `gorm:"not null;index"`
	TokenHash   string `gorm:"not null;size:64;uniqueIndex"`
	TokenPrefix string `gorm:"not null;size:12;index"`
	Scopes      string `gorm:"type:text"` // comma-separated scope names
	ExpiresAt   *time.Time
	RevokedAt   *time.Time

	Audited

	User *User `gorm:"foreignKey:UserID"`
}

// IsUsable reports whether the token may still authenticate a request.
func (t *ApiToken) IsUsable(now time.Time) bool {
	if t.RevokedAt != nil {
		return false
	}
	if t.ExpiresAt != nil && !t.ExpiresAt.After(now) {
		return false
	}
	return true
}

// Session is an opaque, refresh-rotating login session tied to one device.
type Session struct {
	ID                int    `gorm:"primaryKey;autoIncrement"`
	UserID            int    `gorm:"not null;index"`
	Sid               string `gorm:"not null;size:64;index"` // per-device identifier
	SessionIDHash     string `gorm:"not null;size:64;uniqueIndex"`
	RefreshTokenHash  *string `gorm:"size:64;uniqueIndex"`
	IPAddress         string `gorm:"size:64"`
	UserAgent         string `gorm:"type:text"`
	LastSeenAt        time.Time
	ExpiresAt         *time.Time
	RefreshExpiresAt  *time.Time
	RefreshCounter    int `gorm:"not null;default:0"`
	RevokedAt         *time.Time
	EndedAt           *time.Time

	Audited

	User *User `gorm:"foreignKey:UserID"`
}

// IsActive reports whether the session is neither expired, ended, nor revoked.
func (s *Session) IsActive(now time.Time) bool {
	if s.RevokedAt != nil || s.EndedAt != nil {
		return false
	}
	if s.ExpiresAt != nil && !s.ExpiresAt.After(now) {
		return false
	}
	return true
}

// =====================================================================
// Authorization catalog
// =====================================================================

// Resource is the catalog of nameable objects the permission engine and
// admin UI reason about.
type Resource struct {
	ID          int                 `gorm:"primaryKey;autoIncrement"`
	Name        consts.ResourceName `gorm:"not null;uniqueIndex;size:64"`
	DisplayName string              `gorm:"not null"`
	Description string              `gorm:"type:text"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Permission is a human-readable (resource, action) catalog entry.
// Enforcement does not consult this table directly; RoleClaim does, via
// PermissionID, so renaming or re-describing a permission never touches
// the enforcement path.
type Permission struct {
	ID          int               `gorm:"primaryKey;autoIncrement"`
	Name        string            `gorm:"not null;index;size:160"`
	DisplayName string            `gorm:"not null"`
	Description string            `gorm:"type:text"`
	Action      consts.ActionName `gorm:"not null;index;size:32"`
	ResourceID  int               `gorm:"not null;index"`
	IsSystem    bool              `gorm:"not null;default:false;index"`

	Audited

	ActiveName string `gorm:"type:varchar(160) GENERATED ALWAYS AS (CASE WHEN status >= 0 THEN name ELSE NULL END) STORED;uniqueIndex:idx_active_permission_name"`

	Resource *Resource `gorm:"foreignKey:ResourceID"`
}

// Role is the catalog of system (course-independent) roles.
type Role struct {
	ID          int          `gorm:"primaryKey;autoIncrement"`
	Name        consts.RoleName `gorm:"not null;index;size:64"`
	DisplayName string       `gorm:"not null"`
	Description string       `gorm:"type:text"`
	IsSystem    bool         `gorm:"not null;default:false;index"`

	Audited

	ActiveName string `gorm:"type:varchar(64) GENERATED ALWAYS AS (CASE WHEN status >= 0 THEN name ELSE NULL END) STORED;uniqueIndex:idx_active_role_name"`
}

// UserRole is the many-to-many join between User and the system Role
// catalog; holding any row grants that role's claims globally.
type UserRole struct {
	ID     int `gorm:"primaryKey;autoIncrement"`
	UserID int `gorm:"not null;uniqueIndex:idx_user_role_unique"`
	RoleID int `gorm:"not null;uniqueIndex:idx_user_role_unique"`

	Audited

	User *User `gorm:"foreignKey:UserID"`
	Role *Role `gorm:"foreignKey:RoleID"`
}

// RoleClaim grants or denies a Permission to a Role. Allowed defaults to
// true; an explicit false row lets an admin carve out an exception without
// deleting the grant (kept for audit history).
type RoleClaim struct {
	ID           int  `gorm:"primaryKey;autoIncrement"`
	RoleID       int  `gorm:"not null;uniqueIndex:idx_role_claim_unique"`
	PermissionID int  `gorm:"not null;uniqueIndex:idx_role_claim_unique"`
	Allowed      bool `gorm:"not null;default:true"`

	Audited

	Role       *Role       `gorm:"foreignKey:RoleID"`
	Permission *Permission `gorm:"foreignKey:PermissionID"`
}

// CourseRole is the strictly-ordered per-course role catalog. The ordering
// lives in consts.CourseRoleLevel; this table only persists display metadata
// and gives other tables (CourseMember) a stable foreign key.
type CourseRole struct {
	ID          int                   `gorm:"primaryKey;autoIncrement"`
	Name        consts.CourseRoleName `gorm:"not null;uniqueIndex;size:32"`
	Level       int                   `gorm:"not null;uniqueIndex"`
	DisplayName string                `gorm:"not null"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// =====================================================================
// Hierarchy
// =====================================================================

type Organization struct {
	ID         int        `gorm:"primaryKey;autoIncrement"`
	Name       string     `gorm:"not null;index;size:128"`
	Path       string     `gorm:"not null;size:255"`
	Properties Properties `gorm:"type:longtext"`

	Audited

	ActiveName string `gorm:"type:varchar(128) GENERATED ALWAYS AS (CASE WHEN status >= 0 THEN name ELSE NULL END) STORED;uniqueIndex:idx_active_org_name"`
}

type CourseFamily struct {
	ID             int        `gorm:"primaryKey;autoIncrement"`
	OrganizationID int        `gorm:"not null;index"`
	Name           string     `gorm:"not null;index;size:128"`
	Path           string     `gorm:"not null;size:255"`
	Properties     Properties `gorm:"type:longtext"`

	Audited

	ActiveKey string `gorm:"type:varchar(200) GENERATED ALWAYS AS (CASE WHEN status >= 0 THEN CONCAT(organization_id, ':', name) ELSE NULL END) STORED;uniqueIndex:idx_active_course_family"`

	Organization *Organization `gorm:"foreignKey:OrganizationID"`
}

type Course struct {
	ID             int        `gorm:"primaryKey;autoIncrement"`
	CourseFamilyID int        `gorm:"not null;index"`
	Name           string     `gorm:"not null;index;size:128"`
	Path           string     `gorm:"not null;size:255"`
	Properties     Properties `gorm:"type:longtext"`

	Audited

	ActiveKey string `gorm:"type:varchar(200) GENERATED ALWAYS AS (CASE WHEN status >= 0 THEN CONCAT(course_family_id, ':', name) ELSE NULL END) STORED;uniqueIndex:idx_active_course"`

	CourseFamily *CourseFamily `gorm:"foreignKey:CourseFamilyID"`
}

// CourseContent is a node in a course's assignment/unit tree, addressed by
// a dot-separated ltree-style path (e.g. "week1.exercise2").
type CourseContent struct {
	ID           int        `gorm:"primaryKey;autoIncrement"`
	CourseID     int        `gorm:"not null;index"`
	ParentID     *int       `gorm:"index"`
	Path         string     `gorm:"not null;size:512;index"`
	Title        string     `gorm:"not null;size:255"`
	Kind         string     `gorm:"not null;size:32;index"` // e.g. "unit", "assignment"
	ContentType  string     `gorm:"size:64"`
	MaxGroupSize int        `gorm:"not null;default:1"`
	Properties   Properties `gorm:"type:longtext"`

	Audited

	ActiveKey string `gorm:"type:varchar(550) GENERATED ALWAYS AS (CASE WHEN status >= 0 THEN CONCAT(course_id, ':', path) ELSE NULL END) STORED;uniqueIndex:idx_active_course_content"`

	Course *Course        `gorm:"foreignKey:CourseID"`
	Parent *CourseContent `gorm:"foreignKey:ParentID"`
}

// CourseGroup is a lightweight cohort/section within a course, distinct
// from a SubmissionGroup (which is scoped to one assignment).
type CourseGroup struct {
	ID       int    `gorm:"primaryKey;autoIncrement"`
	CourseID int    `gorm:"not null;index"`
	Name     string `gorm:"not null;size:128"`

	Audited

	Course *Course `gorm:"foreignKey:CourseID"`
}

// CourseMember binds a User to a Course with a course-scoped role, and
// optionally to a CourseGroup (cohort).
type CourseMember struct {
	ID            int  `gorm:"primaryKey;autoIncrement"`
	UserID        int  `gorm:"not null;uniqueIndex:idx_course_member_unique"`
	CourseID      int  `gorm:"not null;uniqueIndex:idx_course_member_unique;index"`
	CourseRoleID  int  `gorm:"not null;index"`
	CourseGroupID *int `gorm:"index"`

	Audited

	User        *User        `gorm:"foreignKey:UserID"`
	Course      *Course      `gorm:"foreignKey:CourseID"`
	CourseRole  *CourseRole  `gorm:"foreignKey:CourseRoleID"`
	CourseGroup *CourseGroup `gorm:"foreignKey:CourseGroupID"`
}

// SubmissionGroup bundles 1..MaxGroupSize course members against one
// CourseContent (assignment).
type SubmissionGroup struct {
	ID              int `gorm:"primaryKey;autoIncrement"`
	CourseContentID int `gorm:"not null;index"`
	MaxGroupSize    int `gorm:"not null;default:1"`
	MaxSubmissions  int `gorm:"not null;default:0"` // 0 = unlimited
	MaxTestRuns     int `gorm:"not null;default:0"`

	Audited

	CourseContent *CourseContent `gorm:"foreignKey:CourseContentID"`
}

// SubmissionGroupMember enforces "a member belongs to at most one group per
// assignment" via the unique index on (CourseContentID, CourseMemberID);
// CourseContentID is denormalized from the group at creation time.
type SubmissionGroupMember struct {
	ID                int `gorm:"primaryKey;autoIncrement"`
	SubmissionGroupID int `gorm:"not null;index"`
	CourseMemberID    int `gorm:"not null;uniqueIndex:idx_group_member_unique"`
	CourseContentID   int `gorm:"not null;uniqueIndex:idx_group_member_unique"`

	Audited

	SubmissionGroup *SubmissionGroup `gorm:"foreignKey:SubmissionGroupID"`
	CourseMember    *CourseMember    `gorm:"foreignKey:CourseMemberID"`
}

func (m *SubmissionGroupMember) BeforeCreate(tx *gorm.DB) error {
	if m.CourseContentID == 0 {
		var group SubmissionGroup
		if err := tx.Select("course_content_id").First(&group, m.SubmissionGroupID).Error; err != nil {
			return fmt.Errorf("resolve submission group content: %w", err)
		}
		m.CourseContentID = group.CourseContentID
	}
	return m.Audited.BeforeCreate(tx)
}

// =====================================================================
// Submissions
// =====================================================================

type SubmissionArtifact struct {
	ID                int        `gorm:"primaryKey;autoIncrement"`
	SubmissionGroupID int        `gorm:"not null;index"`
	BucketName        string     `gorm:"not null;size:128"`
	ObjectKey         string     `gorm:"not null;size:512"`
	Submit            bool       `gorm:"not null;default:false;index"`
	Properties        Properties `gorm:"type:longtext"`

	Audited

	SubmissionGroup *SubmissionGroup `gorm:"foreignKey:SubmissionGroupID"`
}

// Result is a single test-execution outcome against a SubmissionArtifact.
// VersionIdentifier is unique within a submission group unless the status
// is a terminal failure (ResultFailed).
type Result struct {
	ID                   int                 `gorm:"primaryKey;autoIncrement"`
	SubmissionArtifactID int                 `gorm:"not null;index"`
	SubmissionGroupID    int                 `gorm:"not null;index"`
	CourseMemberID       int                 `gorm:"not null;index"`
	ExecutionBackend     string              `gorm:"not null;size:64"`
	Status               consts.ResultStatus `gorm:"not null;default:0;index"`
	Score                float64             `gorm:"not null;default:0"`
	ResultJSON           Properties          `gorm:"type:longtext"`
	VersionIdentifier    string              `gorm:"not null;size:128"`

	Audited

	ActiveVersionKey string `gorm:"type:varchar(150) GENERATED ALWAYS AS (CASE WHEN status != 3 THEN CONCAT(submission_group_id, ':', version_identifier) ELSE NULL END) STORED;uniqueIndex:idx_active_result_version"`

	SubmissionArtifact *SubmissionArtifact `gorm:"foreignKey:SubmissionArtifactID"`
	CourseMember       *CourseMember       `gorm:"foreignKey:CourseMemberID"`
}

func (r *Result) BeforeCreate(tx *gorm.DB) error {
	if r.SubmissionGroupID == 0 {
		var artifact SubmissionArtifact
		if err := tx.Select("submission_group_id").First(&artifact, r.SubmissionArtifactID).Error; err != nil {
			return fmt.Errorf("resolve submission group for result: %w", err)
		}
		r.SubmissionGroupID = artifact.SubmissionGroupID
	}
	return r.Audited.BeforeCreate(tx)
}

type SubmissionGrade struct {
	ID                   int                `gorm:"primaryKey;autoIncrement"`
	SubmissionArtifactID int                `gorm:"not null;uniqueIndex"`
	GraderID             int                `gorm:"not null;index"`
	Score                float64            `gorm:"not null"` // 0..1
	Status               consts.GradeStatus `gorm:"not null;default:'draft';size:16;index"`

	Audited

	SubmissionArtifact *SubmissionArtifact `gorm:"foreignKey:SubmissionArtifactID"`
	Grader             *User               `gorm:"foreignKey:GraderID"`
}

type SubmissionReview struct {
	ID                   int    `gorm:"primaryKey;autoIncrement"`
	SubmissionArtifactID int    `gorm:"not null;index"`
	ReviewerID           int    `gorm:"not null;index"`
	Content              string `gorm:"type:text"`

	Audited

	SubmissionArtifact *SubmissionArtifact `gorm:"foreignKey:SubmissionArtifactID"`
	Reviewer           *User               `gorm:"foreignKey:ReviewerID"`
}

// =====================================================================
// Discussion
// =====================================================================

// Message is target-polymorphic: exactly one of the *ID fields below is
// set, and it determines the message's scope (see internal/message).
type Message struct {
	ID         int        `gorm:"primaryKey;autoIncrement"`
	AuthorID   int        `gorm:"not null;index"`
	ParentID   *int       `gorm:"index"`
	Level      int        `gorm:"not null;default:0"`
	Title      string     `gorm:"size:255"`
	Content    string     `gorm:"type:text"`
	Properties Properties `gorm:"type:longtext"`

	UserID            *int `gorm:"index"`
	CourseMemberID    *int `gorm:"index"`
	SubmissionGroupID *int `gorm:"index"`
	CourseGroupID     *int `gorm:"index"`
	CourseContentID   *int `gorm:"index"`
	CourseID          *int `gorm:"index"`

	Audited

	Author            *User              `gorm:"foreignKey:AuthorID"`
	Parent            *Message           `gorm:"foreignKey:ParentID"`
	TargetUser        *User              `gorm:"foreignKey:UserID"`
	TargetMember      *CourseMember      `gorm:"foreignKey:CourseMemberID"`
	TargetGroup       *SubmissionGroup   `gorm:"foreignKey:SubmissionGroupID"`
	TargetCourseGroup *CourseGroup       `gorm:"foreignKey:CourseGroupID"`
	TargetContent     *CourseContent     `gorm:"foreignKey:CourseContentID"`
	TargetCourse      *Course            `gorm:"foreignKey:CourseID"`
}

type MessageRead struct {
	ID           int       `gorm:"primaryKey;autoIncrement"`
	MessageID    int       `gorm:"not null;uniqueIndex:idx_message_read_unique"`
	ReaderUserID int       `gorm:"not null;uniqueIndex:idx_message_read_unique"`
	ReadAt       time.Time `gorm:"autoCreateTime"`

	Message *Message `gorm:"foreignKey:MessageID"`
	Reader  *User    `gorm:"foreignKey:ReaderUserID"`
}

// MessageAuditLog is an append-only trail of content-changing actions on a
// Message, independent of the generic AuditLog (which tracks HTTP actions).
type MessageAuditLog struct {
	ID         int                 `gorm:"primaryKey;autoIncrement"`
	MessageID  int                 `gorm:"not null;index"`
	UserID     int                 `gorm:"not null;index"`
	Action     consts.MessageAction `gorm:"not null;size:16;index"`
	OldTitle   string              `gorm:"size:255"`
	NewTitle   string              `gorm:"size:255"`
	OldContent string              `gorm:"type:text"`
	NewContent string              `gorm:"type:text"`

	CreatedAt time.Time `gorm:"autoCreateTime;index"`

	Message *Message `gorm:"foreignKey:MessageID"`
	User    *User    `gorm:"foreignKey:UserID"`
}

// =====================================================================
// Audit & workflow
// =====================================================================

// AuditLog records HTTP-boundary actions (C12), independent of the
// domain-specific MessageAuditLog above.
type AuditLog struct {
	ID         int                  `gorm:"primaryKey;autoIncrement"`
	IPAddress  string               `gorm:"not null;default:'127.0.0.1';index"`
	UserAgent  string               `gorm:"type:text"`
	DurationMs int                  `gorm:"column:duration_ms"`
	Action     string               `gorm:"not null;index"`
	Details    string               `gorm:"type:text"`
	ErrorMsg   string               `gorm:"type:text"`
	UserID     int                  `gorm:"not null;index"`
	Resource   consts.ResourceName  `gorm:"not null;index;size:64"`
	ResourceID *int                 `gorm:"index"`

	State     consts.AuditLogState `gorm:"not null;default:0;index"`
	CreatedAt time.Time            `gorm:"autoCreateTime;index"`

	User *User `gorm:"foreignKey:UserID"`
}

// Task is the durable-workflow gateway's own bookkeeping row (the
// SQLGateway implementation in internal/workflow). It does not replace
// TaskTrackerEntry, which lives in Redis only (internal/tasktracker) and
// tags entries with permission metadata rather than execution state.
type Task struct {
	ID          string          `gorm:"primaryKey;size:64"`
	Type        consts.TaskType `gorm:"not null;index:idx_task_type_state;size:32"`
	SubmittedBy int             `gorm:"not null;index"`
	Immediate   bool            `gorm:"not null;default:true"`
	ExecuteAt   *time.Time      `gorm:"index"`
	CronExpr    string          `gorm:"size:128"`
	Payload     string          `gorm:"type:text"`
	Result      string          `gorm:"type:text"`
	ErrorMsg    string          `gorm:"type:text"`
	TraceID     string          `gorm:"index;size:64"`
	GroupID     string          `gorm:"index;size:64"`
	CourseID    *int            `gorm:"index"`

	State consts.TaskState `gorm:"not null;default:'pending';size:16;index:idx_task_type_state"`

	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	Submitter *User   `gorm:"foreignKey:SubmittedBy"`
	Course    *Course `gorm:"foreignKey:CourseID"`
}
