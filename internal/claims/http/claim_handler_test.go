package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firmvet/firmvet/internal/breaker"
	claimsDomain "github.com/firmvet/firmvet/internal/claims/domain"
	"github.com/firmvet/firmvet/internal/claims/evaluation"
	"github.com/firmvet/firmvet/internal/claims/http/dto"
	"github.com/firmvet/firmvet/internal/claims/repository"
	"github.com/firmvet/firmvet/internal/claims/usecase"
	"github.com/firmvet/firmvet/internal/dispatch"
	apperrors "github.com/firmvet/firmvet/internal/errors"
)

type stubHealth struct {
	err error
}

func (s *stubHealth) Ping(ctx context.Context) error {
	return s.err
}

type stubEnqueuer struct {
	taskID string
	err    error
	kinds  []dispatch.Kind
}

func (s *stubEnqueuer) Enqueue(ctx context.Context, kind dispatch.Kind, payload any) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.kinds = append(s.kinds, kind)
	return s.taskID, nil
}

type stubTaskStates struct {
	states map[string]*repository.TaskState
}

func (s *stubTaskStates) Get(ctx context.Context, taskID string) (*repository.TaskState, error) {
	state, ok := s.states[taskID]
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "task state not found")
	}
	return state, nil
}

type handlerFixture struct {
	router     *gin.Engine
	health     *stubHealth
	enqueuer   *stubEnqueuer
	taskStates *stubTaskStates
}

func setupTestHandler(t *testing.T) *handlerFixture {
	t.Helper()

	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	health := &stubHealth{}
	enqueuer := &stubEnqueuer{taskID: "task-1"}
	taskStates := &stubTaskStates{states: map[string]*repository.TaskState{}}

	claimUseCase := usecase.NewClaimUseCase(
		usecase.ClaimConfig{MaxAttempts: 3, Backoff: dispatch.Backoff{Base: time.Millisecond, Max: time.Millisecond}},
		evaluation.NewRuleEvaluator(logger),
		breaker.New("evaluation", 5, time.Minute, logger),
		health,
		enqueuer,
		nil,
		logger,
	)

	handler := NewClaimHandler(claimUseCase, taskStates, logger)

	router := gin.New()
	router.POST("/process-claim", handler.ProcessClaimHandler)
	router.GET("/task-status/:task_id", handler.TaskStatusHandler)

	return &handlerFixture{router: router, health: health, enqueuer: enqueuer, taskStates: taskStates}
}

func (f *handlerFixture) post(t *testing.T, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/process-claim", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestClaimHandler_ProcessClaimHandler(t *testing.T) {
	t.Run("Success_SynchronousEvaluation", func(t *testing.T) {
		f := setupTestHandler(t)

		w := f.post(t, map[string]any{
			"reference_id":     "claim-1",
			"business_name":    "Acme Advisors",
			"organization_crd": "123456",
			"mode":             "basic",
		})

		assert.Equal(t, http.StatusOK, w.Code)

		var report claimsDomain.Report
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
		assert.Equal(t, "claim-1", report.ReferenceID)
		assert.True(t, report.OverallCompliance)
		assert.Empty(t, f.enqueuer.kinds)
	})

	t.Run("Success_QueuedWithWebhookURL", func(t *testing.T) {
		f := setupTestHandler(t)

		w := f.post(t, map[string]any{
			"reference_id":     "claim-2",
			"organization_crd": "123456",
			"mode":             "complete",
			"webhook_url":      "https://example.com/hook",
		})

		assert.Equal(t, http.StatusAccepted, w.Code)

		var response dto.QueuedClaimResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "processing_queued", response.Status)
		assert.Equal(t, "claim-2", response.ReferenceID)
		assert.Equal(t, "task-1", response.TaskID)
		assert.Equal(t, []dispatch.Kind{dispatch.KindClaimProcessing}, f.enqueuer.kinds)
	})

	t.Run("Success_PassthroughFieldsReachEvaluation", func(t *testing.T) {
		f := setupTestHandler(t)

		w := f.post(t, map[string]any{
			"reference_id":        "claim-3",
			"organization_crd":    "123456",
			"mode":                "basic",
			"registration_status": "terminated",
		})

		assert.Equal(t, http.StatusOK, w.Code)

		var report claimsDomain.Report
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
		assert.False(t, report.OverallCompliance)
		assert.Equal(t, claimsDomain.RiskHigh, report.OverallRiskLevel)
	})

	t.Run("Error_NoIdentifyingFieldsNoJobCreated", func(t *testing.T) {
		f := setupTestHandler(t)

		w := f.post(t, map[string]any{
			"reference_id":  "claim-4",
			"business_name": "Acme Advisors",
			"mode":          "basic",
		})

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Empty(t, f.enqueuer.kinds)
	})

	t.Run("Error_UnknownMode", func(t *testing.T) {
		f := setupTestHandler(t)

		w := f.post(t, map[string]any{
			"reference_id":     "claim-5",
			"organization_crd": "123456",
			"mode":             "turbo",
		})

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Error_DependencyUnavailable", func(t *testing.T) {
		f := setupTestHandler(t)
		f.health.err = apperrors.ErrDependencyUnavailable

		w := f.post(t, map[string]any{
			"reference_id":     "claim-6",
			"organization_crd": "123456",
			"mode":             "basic",
		})

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("Error_QueueFull", func(t *testing.T) {
		f := setupTestHandler(t)
		f.enqueuer.err = apperrors.ErrQueueFull

		w := f.post(t, map[string]any{
			"reference_id":     "claim-7",
			"organization_crd": "123456",
			"mode":             "basic",
			"webhook_url":      "https://example.com/hook",
		})

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestClaimHandler_TaskStatusHandler(t *testing.T) {
	t.Run("Success_KnownTask", func(t *testing.T) {
		f := setupTestHandler(t)
		f.taskStates.states["task-9"] = &repository.TaskState{
			TaskID:      "task-9",
			Kind:        string(dispatch.KindClaimProcessing),
			Status:      dispatch.StatusCompleted,
			ReferenceID: "claim-9",
			Result:      map[string]any{"overall_compliance": true},
			UpdatedAt:   time.Now().UTC(),
		}

		req := httptest.NewRequest(http.MethodGet, "/task-status/task-9", nil)
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response dto.TaskStatusResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "COMPLETED", response.Status)
		assert.Equal(t, "claim-9", response.ReferenceID)
	})

	t.Run("Error_UnknownTask", func(t *testing.T) {
		f := setupTestHandler(t)

		req := httptest.NewRequest(http.MethodGet, "/task-status/task-missing", nil)
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
