// Package repository persists task states in Redis under task_status:{task_id}
// so job progress survives process restarts and is visible across instances.
package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/firmvet/firmvet/internal/dispatch"
	apperrors "github.com/firmvet/firmvet/internal/errors"
)

const taskKeyPrefix = "task_status:"

// TaskKey returns the Redis key for one task state.
func TaskKey(taskID string) string {
	return taskKeyPrefix + taskID
}

// TaskState is the persisted view of one dispatched job.
type TaskState struct {
	TaskID      string          `json:"task_id"`
	Kind        string          `json:"kind"`
	Status      dispatch.Status `json:"status"`
	ReferenceID string          `json:"reference_id,omitempty"`
	Result      any             `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// RedisTaskRepository mirrors dispatcher job states into Redis. It implements
// dispatch.Recorder; recording is best effort and must never fail a job, so
// write errors are logged and swallowed.
type RedisTaskRepository struct {
	client    *redis.Client
	retention time.Duration
	logger    *slog.Logger
}

// NewRedisTaskRepository creates a new RedisTaskRepository.
func NewRedisTaskRepository(client *redis.Client, retention time.Duration, logger *slog.Logger) *RedisTaskRepository {
	return &RedisTaskRepository{client: client, retention: retention, logger: logger}
}

// Record implements dispatch.Recorder.
func (r *RedisTaskRepository) Record(
	ctx context.Context,
	job dispatch.Job,
	status dispatch.Status,
	result any,
	jobErr error,
) {
	state := TaskState{
		TaskID:      job.ID,
		Kind:        string(job.Kind),
		Status:      status,
		ReferenceID: referenceIDFromPayload(job.Payload),
		Result:      result,
		UpdatedAt:   time.Now().UTC(),
	}
	if jobErr != nil {
		state.Error = jobErr.Error()
	}

	raw, err := json.Marshal(state)
	if err != nil {
		r.logger.Error("marshaling task state", slog.String("task_id", job.ID), slog.Any("error", err))
		return
	}
	if err := r.client.Set(ctx, TaskKey(job.ID), raw, r.retention).Err(); err != nil {
		r.logger.Error("persisting task state", slog.String("task_id", job.ID), slog.Any("error", err))
	}
}

// Get returns the persisted state for one task id.
func (r *RedisTaskRepository) Get(ctx context.Context, taskID string) (*TaskState, error) {
	raw, err := r.client.Get(ctx, TaskKey(taskID)).Bytes()
	if err == redis.Nil {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "task state not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "reading task state")
	}

	var state TaskState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, apperrors.Wrap(err, "unmarshaling task state")
	}
	return &state, nil
}

// referenceIDFromPayload pulls reference_id out of a job payload without
// knowing its full shape. Claim payloads nest it under the claim object,
// webhook payloads carry it at the top level.
func referenceIDFromPayload(payload json.RawMessage) string {
	var probe struct {
		ReferenceID string `json:"reference_id"`
		Claim       struct {
			ReferenceID string `json:"reference_id"`
		} `json:"claim"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	if probe.ReferenceID != "" {
		return probe.ReferenceID
	}
	return probe.Claim.ReferenceID
}
