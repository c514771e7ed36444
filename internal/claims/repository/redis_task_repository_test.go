package repository

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firmvet/firmvet/internal/dispatch"
	apperrors "github.com/firmvet/firmvet/internal/errors"
)

func setupTaskRepository(t *testing.T) (*RedisTaskRepository, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRedisTaskRepository(client, time.Hour, logger), mr
}

func TestRedisTaskRepository_RecordAndGet(t *testing.T) {
	t.Run("Success_RecordClaimJob", func(t *testing.T) {
		repo, mr := setupTaskRepository(t)

		payload, err := json.Marshal(map[string]any{
			"claim": map[string]any{"reference_id": "claim-1"},
			"mode":  "basic",
		})
		require.NoError(t, err)

		job := dispatch.Job{ID: "task-1", Kind: dispatch.KindClaimProcessing, Payload: payload}
		repo.Record(context.Background(), job, dispatch.StatusCompleted, map[string]any{"ok": true}, nil)

		state, err := repo.Get(context.Background(), "task-1")
		require.NoError(t, err)
		assert.Equal(t, "task-1", state.TaskID)
		assert.Equal(t, string(dispatch.KindClaimProcessing), state.Kind)
		assert.Equal(t, dispatch.StatusCompleted, state.Status)
		assert.Equal(t, "claim-1", state.ReferenceID)
		assert.Empty(t, state.Error)

		ttl := mr.TTL(TaskKey("task-1"))
		assert.Greater(t, ttl, time.Duration(0))
		assert.LessOrEqual(t, ttl, time.Hour)
	})

	t.Run("Success_RecordWebhookJobWithError", func(t *testing.T) {
		repo, _ := setupTaskRepository(t)

		payload, err := json.Marshal(map[string]any{"reference_id": "claim-2", "webhook_url": "https://example.com"})
		require.NoError(t, err)

		job := dispatch.Job{ID: "task-2", Kind: dispatch.KindWebhookDelivery, Payload: payload}
		repo.Record(context.Background(), job, dispatch.StatusFailed, nil, apperrors.New("delivery exploded"))

		state, err := repo.Get(context.Background(), "task-2")
		require.NoError(t, err)
		assert.Equal(t, dispatch.StatusFailed, state.Status)
		assert.Equal(t, "claim-2", state.ReferenceID)
		assert.Equal(t, "delivery exploded", state.Error)
	})

	t.Run("Success_LatestRecordWins", func(t *testing.T) {
		repo, _ := setupTaskRepository(t)

		job := dispatch.Job{ID: "task-3", Kind: dispatch.KindClaimProcessing, Payload: json.RawMessage(`{}`)}
		repo.Record(context.Background(), job, dispatch.StatusProcessing, nil, nil)
		repo.Record(context.Background(), job, dispatch.StatusRetrying, nil, apperrors.New("transient"))
		repo.Record(context.Background(), job, dispatch.StatusCompleted, "done", nil)

		state, err := repo.Get(context.Background(), "task-3")
		require.NoError(t, err)
		assert.Equal(t, dispatch.StatusCompleted, state.Status)
		assert.Equal(t, "done", state.Result)
		assert.Empty(t, state.Error)
	})

	t.Run("Error_UnknownTaskID", func(t *testing.T) {
		repo, _ := setupTaskRepository(t)

		_, err := repo.Get(context.Background(), "task-missing")

		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}
