package tasktracker

import (
	"context"
	"testing"
	"time"

	"ctp/consts"
	"ctp/internal/auth"
	"ctp/internal/workflow"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb, workflow.NewInMemoryGateway())
}

func intPtr(i int) *int { return &i }

func TestSubmitAndTrackWritesRetrievableEntry(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	workflowID, err := tr.SubmitAndTrack(ctx, consts.TaskTypeRunTestExecution, map[string]any{"k": "v"}, "default", 1, intPtr(5), nil, []string{"#course::5"})
	require.NoError(t, err)
	require.NotEmpty(t, workflowID)

	entry, err := tr.Get(ctx, workflowID)
	require.NoError(t, err)
	require.Equal(t, 1, entry.UserID)
	require.Equal(t, 5, *entry.CourseID)
}

func TestGetUnknownWorkflowReturnsNotFound(t *testing.T) {
	tr := newTestTracker(t)
	_, err := tr.Get(context.Background(), "does-not-exist")
	require.ErrorIs(t, err, consts.ErrNotFound)
}

func TestCanAccessAdminAlwaysAllowed(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.Track(ctx, Entry{WorkflowID: "w1", UserID: 2, CreatedAt: time.Now()}))

	admin := auth.NewPrincipal(99, true, false, nil, nil)
	ok, err := tr.CanAccess(ctx, "w1", admin)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCanAccessSubmittingUserAllowed(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.Track(ctx, Entry{WorkflowID: "w1", UserID: 2, CreatedAt: time.Now()}))

	submitter := auth.NewPrincipal(2, false, false, nil, nil)
	ok, err := tr.CanAccess(ctx, "w1", submitter)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCanAccessRequiresLecturerRoleInCourse(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	courseID := 7
	require.NoError(t, tr.Track(ctx, Entry{WorkflowID: "w1", UserID: 2, CourseID: &courseID, CreatedAt: time.Now()}))

	tutor := auth.NewPrincipal(3, false, false, nil, map[int]consts.CourseRoleName{7: consts.CourseRoleTutor})
	ok, err := tr.CanAccess(ctx, "w1", tutor)
	require.NoError(t, err)
	require.False(t, ok)

	lecturer := auth.NewPrincipal(4, false, false, nil, map[int]consts.CourseRoleName{7: consts.CourseRoleLecturer})
	ok, err = tr.CanAccess(ctx, "w1", lecturer)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCanAccessDeniedWithoutCourseOrOwnership(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	require.NoError(t, tr.Track(ctx, Entry{WorkflowID: "w1", UserID: 2, CreatedAt: time.Now()}))

	stranger := auth.NewPrincipal(5, false, false, nil, nil)
	ok, err := tr.CanAccess(ctx, "w1", stranger)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestListAccessibleAdminSeesEverything(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	require.NoError(t, tr.Track(ctx, Entry{WorkflowID: "w1", UserID: 1, CreatedAt: time.Now()}))
	require.NoError(t, tr.Track(ctx, Entry{WorkflowID: "w2", UserID: 2, CreatedAt: time.Now().Add(time.Second)}))

	admin := auth.NewPrincipal(99, true, false, nil, nil)
	entries, total, err := tr.ListAccessible(ctx, admin, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, entries, 2)
	// Sorted by CreatedAt descending.
	require.Equal(t, "w2", entries[0].WorkflowID)
}

func TestListAccessibleNonAdminSeesOwnAndCourseEntries(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	courseID := 7
	require.NoError(t, tr.Track(ctx, Entry{WorkflowID: "own", UserID: 3, CreatedAt: time.Now()}))
	require.NoError(t, tr.Track(ctx, Entry{WorkflowID: "course", UserID: 4, CourseID: &courseID, CreatedAt: time.Now()}))
	require.NoError(t, tr.Track(ctx, Entry{WorkflowID: "other", UserID: 5, CreatedAt: time.Now()}))

	lecturer := auth.NewPrincipal(3, false, false, nil, map[int]consts.CourseRoleName{7: consts.CourseRoleLecturer})
	entries, total, err := tr.ListAccessible(ctx, lecturer, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 2, total)

	ids := map[string]bool{}
	for _, e := range entries {
		ids[e.WorkflowID] = true
	}
	require.True(t, ids["own"])
	require.True(t, ids["course"])
	require.False(t, ids["other"])
}

func TestListAccessiblePaginates(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	admin := auth.NewPrincipal(1, true, false, nil, nil)

	base := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, tr.Track(ctx, Entry{WorkflowID: string(rune('a' + i)), UserID: 1, CreatedAt: base.Add(time.Duration(i) * time.Second)}))
	}

	page, total, err := tr.ListAccessible(ctx, admin, 2, 0)
	require.NoError(t, err)
	require.Equal(t, 5, total)
	require.Len(t, page, 2)

	page2, total2, err := tr.ListAccessible(ctx, admin, 2, 4)
	require.NoError(t, err)
	require.Equal(t, 5, total2)
	require.Len(t, page2, 1)
}
