package workflow

import (
	"context"
	"testing"

	"ctp/consts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryGatewaySubmitAndStatus(t *testing.T) {
	g := NewInMemoryGateway()
	ctx := context.Background()

	id, err := g.Submit(ctx, consts.TaskTypeRunTestExecution, map[string]any{"a": 1}, "default", "")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	info, err := g.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, consts.TaskStatePending, info.State)
	assert.Equal(t, "default", info.Meta["queue"])
}

func TestInMemoryGatewaySubmitRejectsDuplicateID(t *testing.T) {
	g := NewInMemoryGateway()
	ctx := context.Background()

	id, err := g.Submit(ctx, consts.TaskTypeRunTestExecution, nil, "q", "fixed-id")
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", id)

	_, err = g.Submit(ctx, consts.TaskTypeRunTestExecution, nil, "q", "fixed-id")
	assert.Error(t, err)
}

func TestInMemoryGatewayGetStatusUnknownID(t *testing.T) {
	g := NewInMemoryGateway()
	_, err := g.GetStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, consts.ErrNotFound)
}

func TestInMemoryGatewayCancel(t *testing.T) {
	g := NewInMemoryGateway()
	ctx := context.Background()

	id, err := g.Submit(ctx, consts.TaskTypeArchiveCourse, nil, "q", "")
	require.NoError(t, err)

	ok, err := g.Cancel(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	info, err := g.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, consts.TaskStateCancelled, info.State)

	// Already cancelled: a second cancel is a no-op.
	ok, err = g.Cancel(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInMemoryGatewayAdvanceAndGetResult(t *testing.T) {
	g := NewInMemoryGateway()
	ctx := context.Background()

	id, err := g.Submit(ctx, consts.TaskTypeCollectResult, nil, "q", "")
	require.NoError(t, err)

	g.Advance(id, consts.TaskStateCompleted, TaskResult{Output: map[string]any{"score": 0.9}})

	info, err := g.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, consts.TaskStateCompleted, info.State)
	require.NotNil(t, info.CompletedAt)

	result, err := g.GetResult(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"score": 0.9}, result.Output)
}

func TestInMemoryGatewayListFiltersAndPaginates(t *testing.T) {
	g := NewInMemoryGateway()
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := g.Submit(ctx, consts.TaskTypeRunTestExecution, nil, "q", "")
		require.NoError(t, err)
		ids = append(ids, id)
	}
	g.Advance(ids[0], consts.TaskStateCompleted, TaskResult{})

	completed := consts.TaskStateCompleted
	items, total, err := g.List(ctx, 10, 0, &completed)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, items, 1)

	allItems, total, err := g.List(ctx, 1, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, allItems, 1)
}
