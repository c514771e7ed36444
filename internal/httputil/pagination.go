package httputil

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ParsePagination safely parses and validates page and page_size query parameters.
// It uses default values of 1 for page and 20 for page_size.
// The page_size cannot exceed 100.
func ParsePagination(c *gin.Context) (page, pageSize int, err error) {
	// Parse page query parameter (default: 1)
	pageStr := c.DefaultQuery("page", "1")
	page, err = strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		return 0, 0, fmt.Errorf("invalid page parameter: must be a positive integer")
	}

	// Parse page_size query parameter (default: 20, max: 100)
	pageSizeStr := c.DefaultQuery("page_size", "20")
	pageSize, err = strconv.Atoi(pageSizeStr)
	if err != nil || pageSize < 1 || pageSize > 100 {
		return 0, 0, fmt.Errorf("invalid page_size parameter: must be between 1 and 100")
	}

	return page, pageSize, nil
}
