package dto

import (
	"time"

	"ctp/consts"
	"ctp/database"
)

// The request/response shapes below are the Create/Update/Out type
// parameters internal/crud.Register needs per entity. They stay thin
// wire structs; field-level validation beyond struct tags belongs to the
// handler or the entity's own invariants, not here.

// --- Organization ---

type CreateOrganizationReq struct {
	Name       string              `json:"name" binding:"required"`
	Path       string              `json:"path" binding:"required"`
	Properties database.Properties `json:"properties"`
}

type UpdateOrganizationReq struct {
	Name       *string             `json:"name"`
	Properties database.Properties `json:"properties"`
}

type OrganizationOut struct {
	ID        int                 `json:"id"`
	Name      string              `json:"name"`
	Path      string              `json:"path"`
	Properties database.Properties `json:"properties"`
	CreatedAt time.Time           `json:"created_at"`
}

func OrganizationToModel(req CreateOrganizationReq) *database.Organization {
	return &database.Organization{Name: req.Name, Path: req.Path, Properties: req.Properties}
}

func OrganizationApplyUpdate(o *database.Organization, req UpdateOrganizationReq) {
	if req.Name != nil {
		o.Name = *req.Name
	}
	if req.Properties != nil {
		o.Properties = req.Properties
	}
}

func OrganizationToOut(o *database.Organization) OrganizationOut {
	return OrganizationOut{ID: o.ID, Name: o.Name, Path: o.Path, Properties: o.Properties, CreatedAt: o.CreatedAt}
}

// --- CourseFamily ---

type CreateCourseFamilyReq struct {
	OrganizationID int                 `json:"organization_id" binding:"required"`
	Name           string              `json:"name" binding:"required"`
	Path           string              `json:"path" binding:"required"`
	Properties     database.Properties `json:"properties"`
}

type UpdateCourseFamilyReq struct {
	Name       *string             `json:"name"`
	Properties database.Properties `json:"properties"`
}

type CourseFamilyOut struct {
	ID             int                 `json:"id"`
	OrganizationID int                 `json:"organization_id"`
	Name           string              `json:"name"`
	Path           string              `json:"path"`
	Properties     database.Properties `json:"properties"`
	CreatedAt      time.Time           `json:"created_at"`
}

func CourseFamilyToModel(req CreateCourseFamilyReq) *database.CourseFamily {
	return &database.CourseFamily{OrganizationID: req.OrganizationID, Name: req.Name, Path: req.Path, Properties: req.Properties}
}

func CourseFamilyApplyUpdate(cf *database.CourseFamily, req UpdateCourseFamilyReq) {
	if req.Name != nil {
		cf.Name = *req.Name
	}
	if req.Properties != nil {
		cf.Properties = req.Properties
	}
}

func CourseFamilyToOut(cf *database.CourseFamily) CourseFamilyOut {
	return CourseFamilyOut{ID: cf.ID, OrganizationID: cf.OrganizationID, Name: cf.Name, Path: cf.Path, Properties: cf.Properties, CreatedAt: cf.CreatedAt}
}

// --- Course ---

type CreateCourseReq struct {
	CourseFamilyID int                 `json:"course_family_id" binding:"required"`
	Name           string              `json:"name" binding:"required"`
	Path           string              `json:"path" binding:"required"`
	Properties     database.Properties `json:"properties"`
}

type UpdateCourseReq struct {
	Name       *string             `json:"name"`
	Properties database.Properties `json:"properties"`
}

type CourseOut struct {
	ID             int                 `json:"id"`
	CourseFamilyID int                 `json:"course_family_id"`
	Name           string              `json:"name"`
	Path           string              `json:"path"`
	Properties     database.Properties `json:"properties"`
	CreatedAt      time.Time           `json:"created_at"`
}

func CourseToModel(req CreateCourseReq) *database.Course {
	return &database.Course{CourseFamilyID: req.CourseFamilyID, Name: req.Name, Path: req.Path, Properties: req.Properties}
}

func CourseApplyUpdate(course *database.Course, req UpdateCourseReq) {
	if req.Name != nil {
		course.Name = *req.Name
	}
	if req.Properties != nil {
		course.Properties = req.Properties
	}
}

func CourseToOut(course *database.Course) CourseOut {
	return CourseOut{ID: course.ID, CourseFamilyID: course.CourseFamilyID, Name: course.Name, Path: course.Path, Properties: course.Properties, CreatedAt: course.CreatedAt}
}

func CourseOfCourse(course *database.Course) *int {
	return &course.ID
}

// --- CourseContent ---

type CreateCourseContentReq struct {
	CourseID     int                 `json:"course_id" binding:"required"`
	ParentID     *int                `json:"parent_id"`
	Path         string              `json:"path" binding:"required"`
	Title        string              `json:"title" binding:"required"`
	Kind         string              `json:"kind" binding:"required"`
	ContentType  string              `json:"content_type"`
	MaxGroupSize int                 `json:"max_group_size"`
	Properties   database.Properties `json:"properties"`
}

type UpdateCourseContentReq struct {
	Title        *string             `json:"title"`
	MaxGroupSize *int                `json:"max_group_size"`
	Properties   database.Properties `json:"properties"`
}

type CourseContentOut struct {
	ID           int                 `json:"id"`
	CourseID     int                 `json:"course_id"`
	ParentID     *int                `json:"parent_id"`
	Path         string              `json:"path"`
	Title        string              `json:"title"`
	Kind         string              `json:"kind"`
	ContentType  string              `json:"content_type"`
	MaxGroupSize int                 `json:"max_group_size"`
	Properties   database.Properties `json:"properties"`
	CreatedAt    time.Time           `json:"created_at"`
}

func CourseContentToModel(req CreateCourseContentReq) *database.CourseContent {
	maxGroupSize := req.MaxGroupSize
	if maxGroupSize <= 0 {
		maxGroupSize = 1
	}
	return &database.CourseContent{
		CourseID: req.CourseID, ParentID: req.ParentID, Path: req.Path, Title: req.Title,
		Kind: req.Kind, ContentType: req.ContentType, MaxGroupSize: maxGroupSize, Properties: req.Properties,
	}
}

func CourseContentApplyUpdate(cc *database.CourseContent, req UpdateCourseContentReq) {
	if req.Title != nil {
		cc.Title = *req.Title
	}
	if req.MaxGroupSize != nil {
		cc.MaxGroupSize = *req.MaxGroupSize
	}
	if req.Properties != nil {
		cc.Properties = req.Properties
	}
}

func CourseContentToOut(cc *database.CourseContent) CourseContentOut {
	return CourseContentOut{
		ID: cc.ID, CourseID: cc.CourseID, ParentID: cc.ParentID, Path: cc.Path, Title: cc.Title,
		Kind: cc.Kind, ContentType: cc.ContentType, MaxGroupSize: cc.MaxGroupSize, Properties: cc.Properties, CreatedAt: cc.CreatedAt,
	}
}

func CourseContentCourseID(cc *database.CourseContent) *int {
	id := cc.CourseID
	return &id
}

// --- CourseMember ---

type CreateCourseMemberReq struct {
	UserID        int  `json:"user_id" binding:"required"`
	CourseID      int  `json:"course_id" binding:"required"`
	CourseRoleID  int  `json:"course_role_id" binding:"required"`
	CourseGroupID *int `json:"course_group_id"`
}

type UpdateCourseMemberReq struct {
	CourseRoleID  *int `json:"course_role_id"`
	CourseGroupID *int `json:"course_group_id"`
}

type CourseMemberOut struct {
	ID            int       `json:"id"`
	UserID        int       `json:"user_id"`
	CourseID      int       `json:"course_id"`
	CourseRoleID  int       `json:"course_role_id"`
	CourseGroupID *int      `json:"course_group_id"`
	CreatedAt     time.Time `json:"created_at"`
}

func CourseMemberToModel(req CreateCourseMemberReq) *database.CourseMember {
	return &database.CourseMember{UserID: req.UserID, CourseID: req.CourseID, CourseRoleID: req.CourseRoleID, CourseGroupID: req.CourseGroupID}
}

func CourseMemberApplyUpdate(cm *database.CourseMember, req UpdateCourseMemberReq) {
	if req.CourseRoleID != nil {
		cm.CourseRoleID = *req.CourseRoleID
	}
	if req.CourseGroupID != nil {
		cm.CourseGroupID = req.CourseGroupID
	}
}

func CourseMemberToOut(cm *database.CourseMember) CourseMemberOut {
	return CourseMemberOut{ID: cm.ID, UserID: cm.UserID, CourseID: cm.CourseID, CourseRoleID: cm.CourseRoleID, CourseGroupID: cm.CourseGroupID, CreatedAt: cm.CreatedAt}
}

func CourseMemberCourseID(cm *database.CourseMember) *int {
	id := cm.CourseID
	return &id
}

// --- User ---

type CreateUserReq struct {
	Username  string `json:"username" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type UpdateUserReq struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	IsActive  *bool   `json:"is_active"`
}

type UserOut struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	IsActive  bool      `json:"is_active"`
	IsService bool      `json:"is_service"`
	CreatedAt time.Time `json:"created_at"`
}

func UserToModel(req CreateUserReq) *database.User {
	return &database.User{Username: req.Username, Email: req.Email, FirstName: req.FirstName, LastName: req.LastName, IsActive: true}
}

func UserApplyUpdate(u *database.User, req UpdateUserReq) {
	if req.FirstName != nil {
		u.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		u.LastName = *req.LastName
	}
	if req.IsActive != nil {
		u.IsActive = *req.IsActive
	}
}

func UserToOut(u *database.User) UserOut {
	return UserOut{ID: u.ID, Username: u.Username, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName, IsActive: u.IsActive, IsService: u.IsService, CreatedAt: u.CreatedAt}
}

// --- Role ---

type CreateRoleReq struct {
	Name        consts.RoleName `json:"name" binding:"required"`
	DisplayName string          `json:"display_name" binding:"required"`
	Description string          `json:"description"`
}

type UpdateRoleReq struct {
	DisplayName *string `json:"display_name"`
	Description *string `json:"description"`
}

type RoleOut struct {
	ID          int             `json:"id"`
	Name        consts.RoleName `json:"name"`
	DisplayName string          `json:"display_name"`
	Description string          `json:"description"`
	IsSystem    bool            `json:"is_system"`
}

func RoleToModel(req CreateRoleReq) *database.Role {
	return &database.Role{Name: req.Name, DisplayName: req.DisplayName, Description: req.Description}
}

func RoleApplyUpdate(r *database.Role, req UpdateRoleReq) {
	if req.DisplayName != nil {
		r.DisplayName = *req.DisplayName
	}
	if req.Description != nil {
		r.Description = *req.Description
	}
}

func RoleToOut(r *database.Role) RoleOut {
	return RoleOut{ID: r.ID, Name: r.Name, DisplayName: r.DisplayName, Description: r.Description, IsSystem: r.IsSystem}
}

// --- Permission (catalog, read-mostly) ---

type CreatePermissionReq struct {
	Name        string             `json:"name" binding:"required"`
	DisplayName string             `json:"display_name" binding:"required"`
	Description string             `json:"description"`
	Action      consts.ActionName  `json:"action" binding:"required"`
	ResourceID  int                `json:"resource_id" binding:"required"`
}

type UpdatePermissionReq struct {
	DisplayName *string `json:"display_name"`
	Description *string `json:"description"`
}

type PermissionOut struct {
	ID          int               `json:"id"`
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Description string            `json:"description"`
	Action      consts.ActionName `json:"action"`
	ResourceID  int               `json:"resource_id"`
	IsSystem    bool              `json:"is_system"`
}

func PermissionToModel(req CreatePermissionReq) *database.Permission {
	return &database.Permission{Name: req.Name, DisplayName: req.DisplayName, Description: req.Description, Action: req.Action, ResourceID: req.ResourceID}
}

func PermissionApplyUpdate(p *database.Permission, req UpdatePermissionReq) {
	if req.DisplayName != nil {
		p.DisplayName = *req.DisplayName
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
}

func PermissionToOut(p *database.Permission) PermissionOut {
	return PermissionOut{ID: p.ID, Name: p.Name, DisplayName: p.DisplayName, Description: p.Description, Action: p.Action, ResourceID: p.ResourceID, IsSystem: p.IsSystem}
}

// --- CourseGroup ---

type CreateCourseGroupReq struct {
	CourseID int    `json:"course_id" binding:"required"`
	Name     string `json:"name" binding:"required"`
}

type UpdateCourseGroupReq struct {
	Name *string `json:"name"`
}

type CourseGroupOut struct {
	ID        int       `json:"id"`
	CourseID  int       `json:"course_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func CourseGroupToModel(req CreateCourseGroupReq) *database.CourseGroup {
	return &database.CourseGroup{CourseID: req.CourseID, Name: req.Name}
}

func CourseGroupApplyUpdate(g *database.CourseGroup, req UpdateCourseGroupReq) {
	if req.Name != nil {
		g.Name = *req.Name
	}
}

func CourseGroupToOut(g *database.CourseGroup) CourseGroupOut {
	return CourseGroupOut{ID: g.ID, CourseID: g.CourseID, Name: g.Name, CreatedAt: g.CreatedAt}
}

func CourseGroupCourseID(g *database.CourseGroup) *int {
	id := g.CourseID
	return &id
}

// --- SubmissionGroup ---
//
// Course scope is indirect (via CourseContentID), so these rely on the
// dispatcher's resource-level check rather than a course-scoped one; a
// course-scoped variant would need a CourseContent join the CourseID hook
// can't perform against a bare model pointer.

type CreateSubmissionGroupReq struct {
	CourseContentID int `json:"course_content_id" binding:"required"`
	MaxGroupSize    int `json:"max_group_size"`
	MaxSubmissions  int `json:"max_submissions"`
	MaxTestRuns     int `json:"max_test_runs"`
}

type UpdateSubmissionGroupReq struct {
	MaxSubmissions *int `json:"max_submissions"`
	MaxTestRuns    *int `json:"max_test_runs"`
}

type SubmissionGroupOut struct {
	ID              int       `json:"id"`
	CourseContentID int       `json:"course_content_id"`
	MaxGroupSize    int       `json:"max_group_size"`
	MaxSubmissions  int       `json:"max_submissions"`
	MaxTestRuns     int       `json:"max_test_runs"`
	CreatedAt       time.Time `json:"created_at"`
}

func SubmissionGroupToModel(req CreateSubmissionGroupReq) *database.SubmissionGroup {
	maxGroupSize := req.MaxGroupSize
	if maxGroupSize <= 0 {
		maxGroupSize = 1
	}
	return &database.SubmissionGroup{
		CourseContentID: req.CourseContentID, MaxGroupSize: maxGroupSize,
		MaxSubmissions: req.MaxSubmissions, MaxTestRuns: req.MaxTestRuns,
	}
}

func SubmissionGroupApplyUpdate(g *database.SubmissionGroup, req UpdateSubmissionGroupReq) {
	if req.MaxSubmissions != nil {
		g.MaxSubmissions = *req.MaxSubmissions
	}
	if req.MaxTestRuns != nil {
		g.MaxTestRuns = *req.MaxTestRuns
	}
}

func SubmissionGroupToOut(g *database.SubmissionGroup) SubmissionGroupOut {
	return SubmissionGroupOut{
		ID: g.ID, CourseContentID: g.CourseContentID, MaxGroupSize: g.MaxGroupSize,
		MaxSubmissions: g.MaxSubmissions, MaxTestRuns: g.MaxTestRuns, CreatedAt: g.CreatedAt,
	}
}

// --- SubmissionArtifact ---

type CreateSubmissionArtifactReq struct {
	SubmissionGroupID int                 `json:"submission_group_id" binding:"required"`
	BucketName        string              `json:"bucket_name" binding:"required"`
	ObjectKey         string              `json:"object_key" binding:"required"`
	Submit            bool                `json:"submit"`
	Properties        database.Properties `json:"properties"`
}

type UpdateSubmissionArtifactReq struct {
	Submit *bool `json:"submit"`
}

type SubmissionArtifactOut struct {
	ID                int                 `json:"id"`
	SubmissionGroupID int                 `json:"submission_group_id"`
	BucketName        string              `json:"bucket_name"`
	ObjectKey         string              `json:"object_key"`
	Submit            bool                `json:"submit"`
	Properties        database.Properties `json:"properties"`
	CreatedAt         time.Time           `json:"created_at"`
}

func SubmissionArtifactToModel(req CreateSubmissionArtifactReq) *database.SubmissionArtifact {
	return &database.SubmissionArtifact{
		SubmissionGroupID: req.SubmissionGroupID, BucketName: req.BucketName,
		ObjectKey: req.ObjectKey, Submit: req.Submit, Properties: req.Properties,
	}
}

func SubmissionArtifactApplyUpdate(a *database.SubmissionArtifact, req UpdateSubmissionArtifactReq) {
	if req.Submit != nil {
		a.Submit = *req.Submit
	}
}

func SubmissionArtifactToOut(a *database.SubmissionArtifact) SubmissionArtifactOut {
	return SubmissionArtifactOut{
		ID: a.ID, SubmissionGroupID: a.SubmissionGroupID, BucketName: a.BucketName,
		ObjectKey: a.ObjectKey, Submit: a.Submit, Properties: a.Properties, CreatedAt: a.CreatedAt,
	}
}

// --- Result ---

type CreateResultReq struct {
	SubmissionArtifactID int                 `json:"submission_artifact_id" binding:"required"`
	CourseMemberID       int                 `json:"course_member_id" binding:"required"`
	ExecutionBackend     string              `json:"execution_backend" binding:"required"`
	VersionIdentifier    string              `json:"version_identifier" binding:"required"`
	ResultJSON           database.Properties `json:"result_json"`
}

type UpdateResultReq struct {
	Status *consts.ResultStatus `json:"status"`
	Score  *float64             `json:"score"`
}

type ResultOut struct {
	ID                   int                 `json:"id"`
	SubmissionArtifactID int                 `json:"submission_artifact_id"`
	SubmissionGroupID    int                 `json:"submission_group_id"`
	CourseMemberID       int                 `json:"course_member_id"`
	ExecutionBackend     string              `json:"execution_backend"`
	Status               consts.ResultStatus `json:"status"`
	Score                float64             `json:"score"`
	VersionIdentifier    string              `json:"version_identifier"`
	CreatedAt            time.Time           `json:"created_at"`
}

func ResultToModel(req CreateResultReq) *database.Result {
	return &database.Result{
		SubmissionArtifactID: req.SubmissionArtifactID, CourseMemberID: req.CourseMemberID,
		ExecutionBackend: req.ExecutionBackend, VersionIdentifier: req.VersionIdentifier, ResultJSON: req.ResultJSON,
	}
}

func ResultApplyUpdate(r *database.Result, req UpdateResultReq) {
	if req.Status != nil {
		r.Status = *req.Status
	}
	if req.Score != nil {
		r.Score = *req.Score
	}
}

func ResultToOut(r *database.Result) ResultOut {
	return ResultOut{
		ID: r.ID, SubmissionArtifactID: r.SubmissionArtifactID, SubmissionGroupID: r.SubmissionGroupID,
		CourseMemberID: r.CourseMemberID, ExecutionBackend: r.ExecutionBackend, Status: r.Status,
		Score: r.Score, VersionIdentifier: r.VersionIdentifier, CreatedAt: r.CreatedAt,
	}
}

// --- SubmissionGrade ---

type CreateSubmissionGradeReq struct {
	SubmissionArtifactID int     `json:"submission_artifact_id" binding:"required"`
	GraderID             int     `json:"grader_id" binding:"required"`
	Score                float64 `json:"score" binding:"required,min=0,max=1"`
}

type UpdateSubmissionGradeReq struct {
	Score  *float64             `json:"score"`
	Status *consts.GradeStatus  `json:"status"`
}

type SubmissionGradeOut struct {
	ID                   int                `json:"id"`
	SubmissionArtifactID int                `json:"submission_artifact_id"`
	GraderID             int                `json:"grader_id"`
	Score                float64            `json:"score"`
	Status               consts.GradeStatus `json:"status"`
	CreatedAt            time.Time          `json:"created_at"`
}

func SubmissionGradeToModel(req CreateSubmissionGradeReq) *database.SubmissionGrade {
	return &database.SubmissionGrade{SubmissionArtifactID: req.SubmissionArtifactID, GraderID: req.GraderID, Score: req.Score}
}

func SubmissionGradeApplyUpdate(g *database.SubmissionGrade, req UpdateSubmissionGradeReq) {
	if req.Score != nil {
		g.Score = *req.Score
	}
	if req.Status != nil {
		g.Status = *req.Status
	}
}

func SubmissionGradeToOut(g *database.SubmissionGrade) SubmissionGradeOut {
	return SubmissionGradeOut{ID: g.ID, SubmissionArtifactID: g.SubmissionArtifactID, GraderID: g.GraderID, Score: g.Score, Status: g.Status, CreatedAt: g.CreatedAt}
}

// --- SubmissionReview ---

type CreateSubmissionReviewReq struct {
	SubmissionArtifactID int    `json:"submission_artifact_id" binding:"required"`
	ReviewerID           int    `json:"reviewer_id" binding:"required"`
	Content              string `json:"content" binding:"required"`
}

type UpdateSubmissionReviewReq struct {
	Content *string `json:"content"`
}

type SubmissionReviewOut struct {
	ID                   int       `json:"id"`
	SubmissionArtifactID int       `json:"submission_artifact_id"`
	ReviewerID           int       `json:"reviewer_id"`
	Content              string    `json:"content"`
	CreatedAt            time.Time `json:"created_at"`
}

func SubmissionReviewToModel(req CreateSubmissionReviewReq) *database.SubmissionReview {
	return &database.SubmissionReview{SubmissionArtifactID: req.SubmissionArtifactID, ReviewerID: req.ReviewerID, Content: req.Content}
}

func SubmissionReviewApplyUpdate(r *database.SubmissionReview, req UpdateSubmissionReviewReq) {
	if req.Content != nil {
		r.Content = *req.Content
	}
}

func SubmissionReviewToOut(r *database.SubmissionReview) SubmissionReviewOut {
	return SubmissionReviewOut{ID: r.ID, SubmissionArtifactID: r.SubmissionArtifactID, ReviewerID: r.ReviewerID, Content: r.Content, CreatedAt: r.CreatedAt}
}
