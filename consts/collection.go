package consts

// SystemRoleDisplayNames maps the system role catalog to human-readable
// labels, used when seeding the Role table at startup.
var SystemRoleDisplayNames = map[RoleName]string{
	RoleAdmin:         "Administrator",
	RoleUserManager:   "User Manager",
	RoleCourseCreator: "Course Creator",
}

// SystemRoleClaims defines the default general claims granted to each
// system role, seeded into RoleClaim at startup. RoleAdmin is intentionally
// absent: the permission engine short-circuits admins before consulting
// claims at all.
var SystemRoleClaims = map[RoleName][]struct {
	Resource ResourceName
	Action   ActionName
}{
	RoleUserManager: {
		{ResourceUser, ActionRead},
		{ResourceUser, ActionWrite},
		{ResourceUser, ActionManage},
		{ResourceRole, ActionRead},
	},
	RoleCourseCreator: {
		{ResourceOrganization, ActionRead},
		{ResourceCourseFamily, ActionRead},
		{ResourceCourseFamily, ActionWrite},
		{ResourceCourse, ActionWrite},
	},
}

// CourseRoleDisplayNames maps the ordered course-role catalog to labels.
var CourseRoleDisplayNames = map[CourseRoleName]string{
	CourseRoleStudent:    "Student",
	CourseRoleTutor:      "Tutor",
	CourseRoleLecturer:   "Lecturer",
	CourseRoleMaintainer: "Maintainer",
	CourseRoleOwner:      "Owner",
}

// CourseRoleMinimum pins the minimum course role required to perform
// (resource, action) against a course-scoped entity. The permission engine
// (internal/permission) consults this table after general claims fail and
// before falling through to "forbidden".
var CourseRoleMinimum = map[ResourceName]map[ActionName]CourseRoleName{
	ResourceCourseContent: {
		ActionRead:   CourseRoleStudent,
		ActionWrite:  CourseRoleLecturer,
		ActionDelete: CourseRoleMaintainer,
	},
	ResourceCourseMember: {
		ActionRead:   CourseRoleTutor,
		ActionWrite:  CourseRoleLecturer,
		ActionManage: CourseRoleMaintainer,
	},
	ResourceSubmissionGroup: {
		ActionRead:  CourseRoleStudent,
		ActionWrite: CourseRoleStudent,
	},
	ResourceSubmissionArtifact: {
		ActionRead:  CourseRoleStudent,
		ActionWrite: CourseRoleStudent,
	},
	ResourceResult: {
		ActionRead:  CourseRoleStudent,
		ActionWrite: CourseRoleTutor,
	},
	ResourceSubmissionGrade: {
		ActionRead:  CourseRoleStudent,
		ActionWrite: CourseRoleTutor,
	},
	ResourceSubmissionReview: {
		ActionRead:  CourseRoleTutor,
		ActionWrite: CourseRoleTutor,
	},
	ResourceMessage: {
		ActionRead:  CourseRoleStudent,
		ActionWrite: CourseRoleStudent,
	},
	ResourceTask: {
		ActionRead: CourseRoleLecturer,
	},
	ResourceCourseFamily: {
		ActionRead:  CourseRoleStudent,
		ActionWrite: CourseRoleLecturer,
	},
}
