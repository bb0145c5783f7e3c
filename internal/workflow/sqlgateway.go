package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ctp/consts"
	"ctp/database"
	"ctp/internal/metrics"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// SQLGateway stands in for a real Temporal engine: submissions are rows in
// the Task table, and a poller promotes due scheduled rows from pending to
// running. It is good enough to drive the rest of the system end to end
// without a real workflow engine dependency.
type SQLGateway struct {
	DB *gorm.DB
}

func NewSQLGateway(db *gorm.DB) *SQLGateway {
	return &SQLGateway{DB: db}
}

func (g *SQLGateway) Submit(ctx context.Context, taskType consts.TaskType, parameters map[string]any, queue string, workflowID string) (string, error) {
	if workflowID == "" {
		workflowID = uuid.NewString()
	}

	payload, err := json.Marshal(parameters)
	if err != nil {
		return "", fmt.Errorf("marshal task parameters: %w", err)
	}

	submittedBy, _ := database.CurrentActor(ctx)

	task := &database.Task{
		ID:          workflowID,
		Type:        taskType,
		SubmittedBy: submittedBy,
		Immediate:   true,
		Payload:     string(payload),
		GroupID:     queue,
		TraceID:     uuid.NewString(),
		State:       consts.TaskStatePending,
	}

	if err := g.DB.WithContext(ctx).Create(task).Error; err != nil {
		return "", fmt.Errorf("submit task: %w", err)
	}
	return workflowID, nil
}

// SubmitScheduled submits a cron-driven task; the poller decides when it
// next becomes due rather than running it immediately.
func (g *SQLGateway) SubmitScheduled(ctx context.Context, taskType consts.TaskType, parameters map[string]any, queue, cronExpr string) (string, error) {
	next, err := cronNextTime(cronExpr)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(parameters)
	if err != nil {
		return "", fmt.Errorf("marshal task parameters: %w", err)
	}

	submittedBy, _ := database.CurrentActor(ctx)
	workflowID := uuid.NewString()

	task := &database.Task{
		ID:          workflowID,
		Type:        taskType,
		SubmittedBy: submittedBy,
		Immediate:   false,
		ExecuteAt:   &next,
		CronExpr:    cronExpr,
		Payload:     string(payload),
		GroupID:     queue,
		TraceID:     uuid.NewString(),
		State:       consts.TaskStatePending,
	}
	if err := g.DB.WithContext(ctx).Create(task).Error; err != nil {
		return "", fmt.Errorf("submit scheduled task: %w", err)
	}
	return workflowID, nil
}

func (g *SQLGateway) GetStatus(ctx context.Context, workflowID string) (TaskInfo, error) {
	var task database.Task
	if err := g.DB.WithContext(ctx).First(&task, "id = ?", workflowID).Error; err != nil {
		return TaskInfo{}, fmt.Errorf("get task status: %w", err)
	}
	return toTaskInfo(task), nil
}

func (g *SQLGateway) GetResult(ctx context.Context, workflowID string) (TaskResult, error) {
	var task database.Task
	if err := g.DB.WithContext(ctx).First(&task, "id = ?", workflowID).Error; err != nil {
		return TaskResult{}, fmt.Errorf("get task result: %w", err)
	}
	if task.State == consts.TaskStateFailed {
		return TaskResult{Err: task.ErrorMsg}, nil
	}

	var output any
	if task.Result != "" {
		if err := json.Unmarshal([]byte(task.Result), &output); err != nil {
			return TaskResult{}, fmt.Errorf("decode task result: %w", err)
		}
	}
	return TaskResult{Output: output}, nil
}

func (g *SQLGateway) Cancel(ctx context.Context, workflowID string) (bool, error) {
	var task database.Task
	if err := g.DB.WithContext(ctx).Select("type").First(&task, "id = ?", workflowID).Error; err != nil {
		return false, fmt.Errorf("cancel task: %w", err)
	}

	result := g.DB.WithContext(ctx).Model(&database.Task{}).
		Where("id = ? AND state IN ?", workflowID, []consts.TaskState{consts.TaskStatePending, consts.TaskStateRunning}).
		Update("state", consts.TaskStateCancelled)
	if result.Error != nil {
		return false, fmt.Errorf("cancel task: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		metrics.TasksProcessed.WithLabelValues(string(task.Type), string(consts.TaskStateCancelled)).Inc()
	}
	return result.RowsAffected > 0, nil
}

func (g *SQLGateway) List(ctx context.Context, limit, offset int, state *consts.TaskState) ([]TaskInfo, int64, error) {
	q := g.DB.WithContext(ctx).Model(&database.Task{})
	if state != nil {
		q = q.Where("state = ?", *state)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	var tasks []database.Task
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&tasks).Error; err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}

	infos := make([]TaskInfo, len(tasks))
	for i, t := range tasks {
		infos[i] = toTaskInfo(t)
	}
	return infos, total, nil
}

// PollDue promotes scheduled tasks whose execute_at has arrived from pending
// to running, and advances their next occurrence when they carry a cron
// expression; the worker command registers it on a robfig/cron scheduler.
func (g *SQLGateway) PollDue(ctx context.Context) error {
	start := time.Now()
	defer func() { metrics.TaskPollDuration.Observe(time.Since(start).Seconds()) }()

	now := time.Now()
	var due []database.Task
	err := g.DB.WithContext(ctx).
		Where("state = ? AND immediate = ? AND execute_at <= ?", consts.TaskStatePending, false, now).
		Find(&due).Error
	if err != nil {
		return fmt.Errorf("poll due tasks: %w", err)
	}

	for _, t := range due {
		updates := map[string]any{"state": consts.TaskStateRunning}
		if err := g.DB.WithContext(ctx).Model(&database.Task{}).Where("id = ?", t.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("promote due task %s: %w", t.ID, err)
		}
		if t.CronExpr != "" {
			next, err := cronNextTime(t.CronExpr)
			if err != nil {
				continue
			}
			rescheduled := t
			rescheduled.ID = uuid.NewString()
			rescheduled.State = consts.TaskStatePending
			rescheduled.ExecuteAt = &next
			if err := g.DB.WithContext(ctx).Create(&rescheduled).Error; err != nil {
				return fmt.Errorf("reschedule cron task %s: %w", t.ID, err)
			}
		}
	}
	return nil
}

func toTaskInfo(t database.Task) TaskInfo {
	info := TaskInfo{
		WorkflowID: t.ID,
		State:      t.State,
		CreatedAt:  t.CreatedAt,
		Meta:       map[string]any{"queue": t.GroupID, "trace_id": t.TraceID},
	}
	if t.State == consts.TaskStateRunning || t.State == consts.TaskStateCompleted || t.State == consts.TaskStateFailed {
		started := t.UpdatedAt
		info.StartedAt = &started
	}
	if t.State == consts.TaskStateCompleted || t.State == consts.TaskStateFailed {
		completed := t.UpdatedAt
		info.CompletedAt = &completed
	}
	return info
}
