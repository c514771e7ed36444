package httputil_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/firmvet/firmvet/internal/errors"
	"github.com/firmvet/firmvet/internal/httputil"
)

func TestHandleErrorGin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "not found",
			err:            apperrors.ErrNotFound,
			expectedStatus: http.StatusNotFound,
			expectedError:  "not_found",
		},
		{
			name:           "invalid input",
			err:            apperrors.Wrap(apperrors.ErrInvalidInput, "no identifying field"),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedError:  apperrors.TypeValidation,
		},
		{
			name:           "dependency unavailable",
			err:            apperrors.ErrDependencyUnavailable,
			expectedStatus: http.StatusServiceUnavailable,
			expectedError:  apperrors.TypeDependencyUnhealthy,
		},
		{
			name:           "queue full",
			err:            apperrors.ErrQueueFull,
			expectedStatus: http.StatusServiceUnavailable,
			expectedError:  "queue_full",
		},
		{
			name:           "conflict",
			err:            apperrors.ErrConflict,
			expectedStatus: http.StatusConflict,
			expectedError:  "conflict",
		},
		{
			name:           "unknown error hides details",
			err:            apperrors.New("secret internal detail"),
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(recorder)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			httputil.HandleErrorGin(c, tt.err, nil)

			assert.Equal(t, tt.expectedStatus, recorder.Code)

			var response httputil.ErrorResponse
			require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
			assert.Equal(t, tt.expectedError, response.Error)

			if tt.expectedError == "internal_error" {
				assert.NotContains(t, response.Message, "secret internal detail")
			}
		})
	}
}
