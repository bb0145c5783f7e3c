// Package workflow implements the durable-execution gateway (C8): a narrow,
// opaque-handle interface in front of whatever actually runs a submission,
// the Temporal-engine internals of which are explicitly out of scope.
package workflow

import (
	"context"
	"fmt"
	"time"

	"ctp/consts"
)

// TaskInfo is the status snapshot returned by GetStatus.
type TaskInfo struct {
	WorkflowID  string
	State       consts.TaskState
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Meta        map[string]any
}

// TaskResult is the terminal outcome returned by GetResult: exactly one of
// Output or Err is populated once the workflow has finished.
type TaskResult struct {
	Output any
	Err    string
}

// Gateway is the single narrow surface the rest of the system uses to drive
// submissions through a durable execution engine; its implementation is
// opaque, and callers treat workflow ids as string handles.
type Gateway interface {
	Submit(ctx context.Context, taskType consts.TaskType, parameters map[string]any, queue string, workflowID string) (string, error)
	GetStatus(ctx context.Context, workflowID string) (TaskInfo, error)
	GetResult(ctx context.Context, workflowID string) (TaskResult, error)
	Cancel(ctx context.Context, workflowID string) (bool, error)
	List(ctx context.Context, limit, offset int, state *consts.TaskState) ([]TaskInfo, int64, error)
}

// cronNextTime resolves a cron expression to its next run time, used by
// SQLGateway's poller to decide when a scheduled task is due.
func cronNextTime(expr string) (time.Time, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	return schedule.Next(time.Now()), nil
}
