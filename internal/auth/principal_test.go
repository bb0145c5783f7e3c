package auth

import (
	"testing"

	"ctp/consts"

	"github.com/stretchr/testify/assert"
)

func TestPrincipalAdminBypassesEverything(t *testing.T) {
	p := NewPrincipal(1, true, false, nil, nil)
	assert.True(t, p.Permitted(consts.ResourceCourseMember, consts.ActionDelete, nil))
}

func TestPrincipalGeneralClaimGrantsGlobally(t *testing.T) {
	p := NewPrincipal(2, false, false, []Claim{{Resource: consts.ResourceUser, Action: consts.ActionWrite}}, nil)
	assert.True(t, p.Permitted(consts.ResourceUser, consts.ActionWrite, nil))
	assert.False(t, p.Permitted(consts.ResourceUser, consts.ActionDelete, nil))
}

func TestPrincipalCourseScopedPermission(t *testing.T) {
	courseID := 42
	p := NewPrincipal(3, false, false, nil, map[int]consts.CourseRoleName{42: consts.CourseRoleLecturer})

	assert.True(t, p.Permitted(consts.ResourceCourseContent, consts.ActionWrite, &courseID))
	assert.False(t, p.Permitted(consts.ResourceCourseContent, consts.ActionDelete, &courseID))

	otherCourse := 99
	assert.False(t, p.Permitted(consts.ResourceCourseContent, consts.ActionRead, &otherCourse))
}

func TestPrincipalPermittedRequiresCourseIDForCourseScopedResource(t *testing.T) {
	p := NewPrincipal(4, false, false, nil, map[int]consts.CourseRoleName{1: consts.CourseRoleOwner})
	assert.False(t, p.Permitted(consts.ResourceCourseContent, consts.ActionRead, nil))
}

func TestPrincipalPermittedNonCourseScopedResourceWithoutClaimIsForbidden(t *testing.T) {
	p := NewPrincipal(5, false, false, nil, nil)
	assert.False(t, p.Permitted(consts.ResourceSystem, consts.ActionManage, nil))
}

func TestAllowedCourseRolesExpandsHierarchy(t *testing.T) {
	roles := AllowedCourseRoles(consts.CourseRoleLecturer)
	assert.Contains(t, roles, consts.CourseRoleLecturer)
	assert.Contains(t, roles, consts.CourseRoleMaintainer)
	assert.Contains(t, roles, consts.CourseRoleOwner)
	assert.NotContains(t, roles, consts.CourseRoleStudent)
	assert.NotContains(t, roles, consts.CourseRoleTutor)
}

func TestCanAssignRole(t *testing.T) {
	// A lecturer may promote a student to tutor.
	assert.True(t, CanAssignRole(consts.CourseRoleLecturer, consts.CourseRoleTutor, consts.CourseRoleStudent))
	// A lecturer may not assign a role at or above their own level.
	assert.False(t, CanAssignRole(consts.CourseRoleLecturer, consts.CourseRoleLecturer, consts.CourseRoleStudent))
	// A lecturer may not touch a member who already outranks them.
	assert.False(t, CanAssignRole(consts.CourseRoleLecturer, consts.CourseRoleTutor, consts.CourseRoleOwner))
}
