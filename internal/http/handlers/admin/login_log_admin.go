package admin

import (
	"strings"

	"github.com/panierscan/authcore/internal/http/response"
	"github.com/panierscan/authcore/internal/repository"

	"github.com/gin-gonic/gin"
)

// GetPhoneLoginLogs 获取手机号登录日志列表
func (h *Handler) GetPhoneLoginLogs(c *gin.Context) {
	page, pageSize := readPagination(c)
	createdFrom, createdTo, err := parseCreatedRange(c)
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	logs, total, err := h.PhoneLoginLogService.ListForAdmin(repository.PhoneLoginLogListFilter{
		Page:           page,
		PageSize:       pageSize,
		PhoneNumber:    strings.TrimSpace(c.Query("phone")),
		Status:         strings.TrimSpace(c.Query("status")),
		FailReason:     strings.TrimSpace(c.Query("fail_reason")),
		ClientIP:       strings.TrimSpace(c.Query("client_ip")),
		InstallationID: strings.TrimSpace(c.Query("installation_id")),
		CreatedFrom:    createdFrom,
		CreatedTo:      createdTo,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.query_failed", err)
		return
	}

	response.SuccessWithPage(c, logs, response.BuildPagination(page, pageSize, total))
}
