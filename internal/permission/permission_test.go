package permission

import (
	"context"
	"testing"

	"ctp/consts"
	"ctp/internal/auth"
	"ctp/internal/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newDryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{DryRun: true})
	require.NoError(t, err)
	return db
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(nil, cache.New(rdb))
}

func TestEnginePermittedAdminAlwaysTrue(t *testing.T) {
	e := newTestEngine(t)
	p := auth.NewPrincipal(1, true, false, nil, nil)
	require.True(t, e.Permitted(context.Background(), p, consts.ResourceUser, consts.ActionDelete, nil))
}

func TestEnginePermittedCoursesScoped(t *testing.T) {
	e := newTestEngine(t)
	courseID := 7
	p := auth.NewPrincipal(2, false, false, nil, map[int]consts.CourseRoleName{7: consts.CourseRoleLecturer})

	require.True(t, e.Permitted(context.Background(), p, consts.ResourceCourseContent, consts.ActionWrite, &courseID))
	require.False(t, e.Permitted(context.Background(), p, consts.ResourceCourseContent, consts.ActionDelete, &courseID))
}

func TestEnginePermittedCachesResult(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	p := auth.NewPrincipal(3, false, false, []auth.Claim{{Resource: consts.ResourceUser, Action: consts.ActionRead}}, nil)

	first := e.Permitted(ctx, p, consts.ResourceUser, consts.ActionRead, nil)
	require.True(t, first)

	var cached bool
	hit, err := e.Cache.Get(ctx, "perm:scalar:3:user:read:<nil>", &cached)
	require.NoError(t, err)
	require.True(t, hit)
	require.True(t, cached)
}

func TestEngineFilterCourseFamilyConstrainedJoinsOneHop(t *testing.T) {
	e := newTestEngine(t)
	p := auth.NewPrincipal(5, false, false, nil, map[int]consts.CourseRoleName{7: consts.CourseRoleStudent})

	scope := e.Filter(context.Background(), p, consts.ResourceCourseFamily, consts.ActionRead)
	require.Equal(t, Constrained, scope.Kind)

	var families []struct{ ID int }
	db := scope.Apply(newDryRunDB(t).Table("course_families")).Find(&families)
	require.NoError(t, db.Error)

	sql := db.Statement.SQL.String()
	require.Contains(t, sql, "course_family_id FROM courses")
	require.NotContains(t, sql, "organization_id")
}

func TestEngineFilterOrganizationForbiddenWithoutClaim(t *testing.T) {
	e := newTestEngine(t)
	p := auth.NewPrincipal(6, false, false, nil, map[int]consts.CourseRoleName{7: consts.CourseRoleStudent})

	scope := e.Filter(context.Background(), p, consts.ResourceOrganization, consts.ActionRead)
	require.Equal(t, Forbidden, scope.Kind)
}

func TestEngineInvalidatePrincipalClearsCache(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	p := auth.NewPrincipal(4, false, false, []auth.Claim{{Resource: consts.ResourceUser, Action: consts.ActionRead}}, nil)

	require.True(t, e.Permitted(ctx, p, consts.ResourceUser, consts.ActionRead, nil))
	require.NoError(t, e.InvalidatePrincipal(ctx, 4))

	var cached bool
	hit, err := e.Cache.Get(ctx, "perm:scalar:4:user:read:<nil>", &cached)
	require.NoError(t, err)
	require.False(t, hit)
}
