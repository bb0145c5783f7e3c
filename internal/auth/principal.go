// Package auth holds the in-memory authorization subject (Principal),
// the authentication provider chain that produces one, and the
// credential/token mechanics each provider verifies against.
package auth

import "ctp/consts"

// Claim is a bare (resource, action) pair granted by a system role.
type Claim struct {
	Resource consts.ResourceName
	Action   consts.ActionName
}

// Principal is the immutable authorization subject attached to a request
// once a Provider has verified its credentials.
type Principal struct {
	UserID        int
	IsAdmin       bool
	IsService     bool
	GeneralClaims map[Claim]struct{}
	CourseRoles   map[int]consts.CourseRoleName // course_id -> highest held role
}

// NewPrincipal builds a Principal from a resolved claim/role set.
func NewPrincipal(userID int, isAdmin, isService bool, claims []Claim, courseRoles map[int]consts.CourseRoleName) *Principal {
	claimSet := make(map[Claim]struct{}, len(claims))
	for _, c := range claims {
		claimSet[c] = struct{}{}
	}
	if courseRoles == nil {
		courseRoles = map[int]consts.CourseRoleName{}
	}
	return &Principal{
		UserID:        userID,
		IsAdmin:       isAdmin,
		IsService:     isService,
		GeneralClaims: claimSet,
		CourseRoles:   courseRoles,
	}
}

// HasGeneralClaim reports whether a system role granted this exact claim.
func (p *Principal) HasGeneralClaim(resource consts.ResourceName, action consts.ActionName) bool {
	_, ok := p.GeneralClaims[Claim{Resource: resource, Action: action}]
	return ok
}

// GetHighestCourseRole returns the role the principal holds in courseID, if any.
func (p *Principal) GetHighestCourseRole(courseID int) (consts.CourseRoleName, bool) {
	role, ok := p.CourseRoles[courseID]
	return role, ok
}

// Permitted answers the scalar question: may this principal perform action
// on resource (optionally scoped to one course)? Admins always pass; for
// course-scoped resources the per-course role is compared against the
// minimum role required for the (resource, action) pair.
func (p *Principal) Permitted(resource consts.ResourceName, action consts.ActionName, courseID *int) bool {
	if p.IsAdmin {
		return true
	}
	if p.HasGeneralClaim(resource, action) {
		return true
	}

	minimums, courseScoped := consts.CourseRoleMinimum[resource]
	if !courseScoped {
		return false
	}
	minimum, ok := minimums[action]
	if !ok || courseID == nil {
		return false
	}

	held, ok := p.GetHighestCourseRole(*courseID)
	if !ok {
		return false
	}
	return consts.CourseRoleLevel[held] >= consts.CourseRoleLevel[minimum]
}

// AllowedCourseRoles expands the hierarchy to every role at or above minimum.
func AllowedCourseRoles(minimum consts.CourseRoleName) []consts.CourseRoleName {
	minLevel := consts.CourseRoleLevel[minimum]
	var roles []consts.CourseRoleName
	for role, level := range consts.CourseRoleLevel {
		if level >= minLevel {
			roles = append(roles, role)
		}
	}
	return roles
}

// CanAssignRole reports whether an actor holding actorRole may assign
// targetRole to a member currently holding targetCurrentRole: the actor must
// out-level the role being assigned, and out-level the member's current role.
func CanAssignRole(actorRole, targetRole, targetCurrentRole consts.CourseRoleName) bool {
	actorLevel := consts.CourseRoleLevel[actorRole]
	return actorLevel >= consts.CourseRoleLevel[targetRole] && consts.CourseRoleLevel[targetCurrentRole] < actorLevel
}
