package admin

import (
	"strconv"
	"time"

	"github.com/panierscan/authcore/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

func readPagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return shared.NormalizePagination(page, pageSize)
}

func parseTimeNullable(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// parseCreatedRange 解析 created_from / created_to 查询参数
func parseCreatedRange(c *gin.Context) (*time.Time, *time.Time, error) {
	createdFrom, err := parseTimeNullable(c.Query("created_from"))
	if err != nil {
		return nil, nil, err
	}
	createdTo, err := parseTimeNullable(c.Query("created_to"))
	if err != nil {
		return nil, nil, err
	}
	return createdFrom, createdTo, nil
}
