// Package tasktracker implements the task tracker (C9): a Redis-backed
// index over workflow submissions, separate from the durable-execution
// gateway's own state, that answers "which tasks can this principal see."
package tasktracker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"ctp/consts"
	"ctp/internal/auth"
	"ctp/internal/workflow"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 24 * time.Hour

const (
	taskKeyPrefix     = "task:"
	userIdxPrefix     = "task_idx:user:"
	courseIdxPrefix   = "task_idx:course:"
	orgIdxPrefix      = "task_idx:org:"
	allIdxKey         = "task_idx:all"
)

// Entry is the JSON document stored under task:{workflow_id}; it carries
// just enough permission metadata to answer CanAccess without touching the
// gateway or the database.
type Entry struct {
	WorkflowID string    `json:"workflow_id"`
	UserID     int       `json:"user_id"`
	CourseID   *int      `json:"course_id,omitempty"`
	OrgID      *int      `json:"org_id,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Tracker wraps a redis.Cmdable and a Gateway so SubmitAndTrack can do both
// in one call.
type Tracker struct {
	Redis   redis.Cmdable
	Gateway workflow.Gateway
	TTL     time.Duration
}

func New(rdb redis.Cmdable, gateway workflow.Gateway) *Tracker {
	return &Tracker{Redis: rdb, Gateway: gateway, TTL: defaultTTL}
}

// Track writes entry under task:{id} plus every applicable index, as a
// single pipelined batch so the multi-index write is atomic.
func (t *Tracker) Track(ctx context.Context, entry Entry) error {
	encoded, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal task tracker entry: %w", err)
	}

	ttl := t.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	_, err = t.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, taskKeyPrefix+entry.WorkflowID, encoded, ttl)
		pipe.SAdd(ctx, allIdxKey, entry.WorkflowID)
		pipe.Expire(ctx, allIdxKey, ttl)
		pipe.SAdd(ctx, fmt.Sprintf("%s%d", userIdxPrefix, entry.UserID), entry.WorkflowID)
		pipe.Expire(ctx, fmt.Sprintf("%s%d", userIdxPrefix, entry.UserID), ttl)
		if entry.CourseID != nil {
			key := fmt.Sprintf("%s%d", courseIdxPrefix, *entry.CourseID)
			pipe.SAdd(ctx, key, entry.WorkflowID)
			pipe.Expire(ctx, key, ttl)
		}
		if entry.OrgID != nil {
			key := fmt.Sprintf("%s%d", orgIdxPrefix, *entry.OrgID)
			pipe.SAdd(ctx, key, entry.WorkflowID)
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("track task: %w", err)
	}
	return nil
}

// SubmitAndTrack submits a task through the workflow gateway and writes the
// tracker indices for it in one pipelined batch.
func (t *Tracker) SubmitAndTrack(ctx context.Context, taskType consts.TaskType, parameters map[string]any, queue string, createdBy int, courseID, orgID *int, tags []string) (string, error) {
	workflowID, err := t.Gateway.Submit(ctx, taskType, parameters, queue, "")
	if err != nil {
		return "", fmt.Errorf("submit task: %w", err)
	}

	entry := Entry{
		WorkflowID: workflowID,
		UserID:     createdBy,
		CourseID:   courseID,
		OrgID:      orgID,
		Tags:       tags,
		CreatedAt:  time.Now(),
	}
	if err := t.Track(ctx, entry); err != nil {
		return workflowID, err
	}
	return workflowID, nil
}

// Get fetches the tracker entry for workflowID.
func (t *Tracker) Get(ctx context.Context, workflowID string) (*Entry, error) {
	val, err := t.Redis.Get(ctx, taskKeyPrefix+workflowID).Result()
	if err == redis.Nil {
		return nil, consts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task tracker entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return nil, fmt.Errorf("decode task tracker entry: %w", err)
	}
	return &entry, nil
}

// CanAccess reports whether p may view workflowID's status/result: admins
// and the submitting user always pass; otherwise the principal must hold at
// least _lecturer in the entry's course.
func (t *Tracker) CanAccess(ctx context.Context, workflowID string, p *auth.Principal) (bool, error) {
	if p.IsAdmin {
		return true, nil
	}

	entry, err := t.Get(ctx, workflowID)
	if err != nil {
		return false, err
	}
	if entry.UserID == p.UserID {
		return true, nil
	}
	if entry.CourseID == nil {
		return false, nil
	}

	role, ok := p.GetHighestCourseRole(*entry.CourseID)
	if !ok {
		return false, nil
	}
	return consts.CourseRoleLevel[role] >= consts.CourseRoleLevel[consts.CourseRoleLecturer], nil
}

// ListAccessible returns the page of entries visible to p: admins see
// task_idx:all, everyone else sees the union of their own user index and
// every course index they hold at least _lecturer in. Results are sorted by
// CreatedAt descending, then paged.
func (t *Tracker) ListAccessible(ctx context.Context, p *auth.Principal, limit, offset int) ([]Entry, int, error) {
	var ids []string
	var err error

	if p.IsAdmin {
		ids, err = t.Redis.SMembers(ctx, allIdxKey).Result()
	} else {
		idSet := map[string]struct{}{}

		own, uerr := t.Redis.SMembers(ctx, fmt.Sprintf("%s%d", userIdxPrefix, p.UserID)).Result()
		if uerr != nil {
			return nil, 0, fmt.Errorf("list user task index: %w", uerr)
		}
		for _, id := range own {
			idSet[id] = struct{}{}
		}

		for courseID, role := range p.CourseRoles {
			if consts.CourseRoleLevel[role] < consts.CourseRoleLevel[consts.CourseRoleLecturer] {
				continue
			}
			courseIDs, cerr := t.Redis.SMembers(ctx, fmt.Sprintf("%s%d", courseIdxPrefix, courseID)).Result()
			if cerr != nil {
				return nil, 0, fmt.Errorf("list course task index: %w", cerr)
			}
			for _, id := range courseIDs {
				idSet[id] = struct{}{}
			}
		}

		ids = make([]string, 0, len(idSet))
		for id := range idSet {
			ids = append(ids, id)
		}
	}
	if err != nil {
		return nil, 0, fmt.Errorf("list accessible tasks: %w", err)
	}

	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		entry, err := t.Get(ctx, id)
		if err != nil {
			continue // index entry outlived its TTL'd document
		}
		entries = append(entries, *entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })

	total := len(entries)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total || limit <= 0 {
		end = total
	}
	return entries[offset:end], total, nil
}
