// Package permission implements the dual permission engine (C4): a scalar
// yes/no check and a query-shaping predicate that list/get endpoints AND
// into their own filters so they never leak rows a caller cannot see.
package permission

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"ctp/consts"
	"ctp/internal/auth"
	"ctp/internal/cache"

	"gorm.io/gorm"
)

// ScopeKind discriminates a QueryScope's three possible shapes.
type ScopeKind int

const (
	Unrestricted ScopeKind = iota // admin: no predicate needed
	Forbidden                    // nothing matches; short-circuit to empty/404
	Constrained                  // apply Apply to the query
)

// QueryScope is the sum type Filter returns: either side steps the
// predicate entirely (admin, or no access at all) or supplies a function
// that ANDs a constraint into the caller's own *gorm.DB query.
type QueryScope struct {
	Kind  ScopeKind
	Apply func(db *gorm.DB) *gorm.DB
}

// reachability describes how one resource joins back to a course, used to
// build the Constrained predicate for course-scoped resources.
type reachability int

const (
	reachDirectCourseID reachability = iota
	reachViaCourseContent
	reachViaCourseMember
	reachIsCourse
	reachViaOrganization
	reachIsCourseFamily
)

var resourceReachability = map[consts.ResourceName]reachability{
	consts.ResourceCourse:             reachIsCourse,
	consts.ResourceCourseContent:      reachDirectCourseID,
	consts.ResourceCourseMember:       reachDirectCourseID,
	consts.ResourceSubmissionGroup:    reachViaCourseContent,
	consts.ResourceSubmissionArtifact: reachViaCourseContent,
	consts.ResourceResult:             reachViaCourseContent,
	consts.ResourceSubmissionGrade:    reachViaCourseContent,
	consts.ResourceSubmissionReview:   reachViaCourseContent,
	consts.ResourceMessage:            reachViaCourseMember,
	consts.ResourceTask:               reachDirectCourseID,
	consts.ResourceOrganization:       reachViaOrganization,
	consts.ResourceCourseFamily:       reachIsCourseFamily,
}

// Engine evaluates permissions with a Redis-backed read-through cache for
// both scalar and course-id-set lookups.
type Engine struct {
	DB    *gorm.DB
	Cache *cache.Cache
	TTL   time.Duration
}

func New(db *gorm.DB, c *cache.Cache) *Engine {
	return &Engine{DB: db, Cache: c, TTL: 5 * time.Minute}
}

// Permitted answers the scalar question for one (principal, resource,
// action) pair, optionally scoped to a resource instance's course.
func (e *Engine) Permitted(ctx context.Context, p *auth.Principal, resource consts.ResourceName, action consts.ActionName, courseID *int) bool {
	if p.IsAdmin {
		return true
	}

	courseKey := "<nil>"
	if courseID != nil {
		courseKey = strconv.Itoa(*courseID)
	}
	cacheKey := fmt.Sprintf("perm:scalar:%d:%s:%s:%s", p.UserID, resource, action, courseKey)
	var cached bool
	if hit, err := e.Cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return cached
	}

	result := p.Permitted(resource, action, courseID)
	_ = e.Cache.Set(ctx, cacheKey, result, e.TTL, fmt.Sprintf("perm:user:%d", p.UserID))
	return result
}

// Filter computes the query-shaping predicate for (principal, resource,
// action): Unrestricted for admins, Forbidden when the resource is not
// course-scoped and the principal lacks the general claim, or Constrained
// with a function restricting the query to reachable course ids.
func (e *Engine) Filter(ctx context.Context, p *auth.Principal, resource consts.ResourceName, action consts.ActionName) QueryScope {
	if p.IsAdmin {
		return QueryScope{Kind: Unrestricted}
	}
	if p.HasGeneralClaim(resource, action) {
		return QueryScope{Kind: Unrestricted}
	}

	minimums, courseScoped := consts.CourseRoleMinimum[resource]
	if !courseScoped {
		return QueryScope{Kind: Forbidden}
	}
	minimum, ok := minimums[action]
	if !ok {
		return QueryScope{Kind: Forbidden}
	}

	courseIDs, err := e.AllowedCourseIDs(ctx, p, minimum)
	if err != nil || len(courseIDs) == 0 {
		return QueryScope{Kind: Forbidden}
	}

	reach, ok := resourceReachability[resource]
	if !ok {
		reach = reachDirectCourseID
	}

	return QueryScope{
		Kind: Constrained,
		Apply: func(db *gorm.DB) *gorm.DB {
			switch reach {
			case reachIsCourse:
				return db.Where("id IN ?", courseIDs)
			case reachViaCourseContent:
				return db.Where("course_content_id IN (SELECT id FROM course_contents WHERE course_id IN ?)", courseIDs)
			case reachViaCourseMember:
				return db.Where("course_member_id IN (SELECT id FROM course_members WHERE course_id IN ?) OR course_id IN ?", courseIDs, courseIDs)
			case reachViaOrganization:
				return db.Where("id IN (SELECT organization_id FROM courses JOIN course_families ON course_families.id = courses.course_family_id WHERE courses.id IN ?)", courseIDs)
			case reachIsCourseFamily:
				return db.Where("id IN (SELECT course_family_id FROM courses WHERE courses.id IN ?)", courseIDs)
			default:
				return db.Where("course_id IN ?", courseIDs)
			}
		},
	}
}

// AllowedCourseIDs returns every course id in which p holds at least
// minimum, cached per (user, minimum) with the engine's TTL.
func (e *Engine) AllowedCourseIDs(ctx context.Context, p *auth.Principal, minimum consts.CourseRoleName) ([]int, error) {
	if p.IsAdmin {
		var ids []int
		err := e.DB.WithContext(ctx).Model(&struct{ ID int }{}).Table("courses").Pluck("id", &ids).Error
		return ids, err
	}

	cacheKey := fmt.Sprintf("perm:courses:%d:%s", p.UserID, minimum)
	var cached []int
	if hit, err := e.Cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	minLevel := consts.CourseRoleLevel[minimum]
	var ids []int
	for courseID, role := range p.CourseRoles {
		if consts.CourseRoleLevel[role] >= minLevel {
			ids = append(ids, courseID)
		}
	}

	_ = e.Cache.Set(ctx, cacheKey, ids, e.TTL, fmt.Sprintf("perm:user:%d", p.UserID))
	return ids, nil
}

// InvalidatePrincipal must be called after any mutation to a user's roles or
// course memberships, so subsequent permission checks observe the change
// within the cache TTL rather than up to it.
func (e *Engine) InvalidatePrincipal(ctx context.Context, userID int) error {
	return e.Cache.InvalidateTag(ctx, fmt.Sprintf("perm:user:%d", userID))
}
