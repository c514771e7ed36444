package httputil_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/firmvet/firmvet/internal/httputil"
)

func TestParsePagination(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name         string
		url          string
		expectedPage int
		expectedSize int
		expectError  bool
	}{
		{
			name:         "default values",
			url:          "/",
			expectedPage: 1,
			expectedSize: 20,
		},
		{
			name:         "valid custom values",
			url:          "/?page=3&page_size=50",
			expectedPage: 3,
			expectedSize: 50,
		},
		{
			name:         "max page size",
			url:          "/?page_size=100",
			expectedPage: 1,
			expectedSize: 100,
		},
		{
			name:        "page zero",
			url:         "/?page=0",
			expectError: true,
		},
		{
			name:        "page not an integer",
			url:         "/?page=abc",
			expectError: true,
		},
		{
			name:        "page size zero",
			url:         "/?page_size=0",
			expectError: true,
		},
		{
			name:        "page size over max",
			url:         "/?page_size=101",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, tt.url, nil)

			page, pageSize, err := httputil.ParsePagination(c)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expectedPage, page)
			assert.Equal(t, tt.expectedSize, pageSize)
		})
	}
}
