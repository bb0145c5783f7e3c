package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ctp/consts"

	"github.com/google/uuid"
)

type inMemoryEntry struct {
	info   TaskInfo
	result TaskResult
}

// InMemoryGateway is a process-local stand-in for Gateway, grounded on the
// teacher's debug status-registry pattern; it never touches the database
// and is meant for unit tests exercising callers of Gateway.
type InMemoryGateway struct {
	mu      sync.Mutex
	entries map[string]*inMemoryEntry
}

func NewInMemoryGateway() *InMemoryGateway {
	return &InMemoryGateway{entries: map[string]*inMemoryEntry{}}
}

func (g *InMemoryGateway) Submit(ctx context.Context, taskType consts.TaskType, parameters map[string]any, queue string, workflowID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if workflowID == "" {
		workflowID = uuid.NewString()
	}
	if _, exists := g.entries[workflowID]; exists {
		return "", fmt.Errorf("workflow id %s already submitted", workflowID)
	}

	g.entries[workflowID] = &inMemoryEntry{info: TaskInfo{
		WorkflowID: workflowID,
		State:      consts.TaskStatePending,
		CreatedAt:  time.Now(),
		Meta:       map[string]any{"queue": queue, "type": string(taskType), "parameters": parameters},
	}}
	return workflowID, nil
}

func (g *InMemoryGateway) GetStatus(ctx context.Context, workflowID string) (TaskInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[workflowID]
	if !ok {
		return TaskInfo{}, consts.ErrNotFound
	}
	return e.info, nil
}

func (g *InMemoryGateway) GetResult(ctx context.Context, workflowID string) (TaskResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[workflowID]
	if !ok {
		return TaskResult{}, consts.ErrNotFound
	}
	return e.result, nil
}

func (g *InMemoryGateway) Cancel(ctx context.Context, workflowID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[workflowID]
	if !ok || (e.info.State != consts.TaskStatePending && e.info.State != consts.TaskStateRunning) {
		return false, nil
	}
	e.info.State = consts.TaskStateCancelled
	return true, nil
}

func (g *InMemoryGateway) List(ctx context.Context, limit, offset int, state *consts.TaskState) ([]TaskInfo, int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var matched []TaskInfo
	for _, e := range g.entries {
		if state != nil && e.info.State != *state {
			continue
		}
		matched = append(matched, e.info)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(matched) || limit <= 0 {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

// Advance is a test helper that transitions workflowID to a terminal state
// with the given result, simulating a completed execution.
func (g *InMemoryGateway) Advance(workflowID string, state consts.TaskState, result TaskResult) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[workflowID]
	if !ok {
		return
	}
	now := time.Now()
	e.info.State = state
	e.info.CompletedAt = &now
	e.result = result
}
