package admin

import (
	"strings"

	"github.com/panierscan/authcore/internal/http/response"
	"github.com/panierscan/authcore/internal/repository"

	"github.com/gin-gonic/gin"
)

// GetVerificationSessions 获取网关验证会话列表（验证码哈希不返回）
func (h *Handler) GetVerificationSessions(c *gin.Context) {
	page, pageSize := readPagination(c)
	createdFrom, createdTo, err := parseCreatedRange(c)
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	sessions, total, err := h.OperatorService.ListVerificationSessions(repository.VerificationSessionListFilter{
		Page:        page,
		PageSize:    pageSize,
		PhoneNumber: strings.TrimSpace(c.Query("phone")),
		Status:      strings.TrimSpace(c.Query("status")),
		Purpose:     strings.TrimSpace(c.Query("purpose")),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.query_failed", err)
		return
	}

	response.SuccessWithPage(c, sessions, response.BuildPagination(page, pageSize, total))
}
