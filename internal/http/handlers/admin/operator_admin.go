package admin

import (
	"strconv"
	"strings"

	"github.com/panierscan/authcore/internal/http/response"
	"github.com/panierscan/authcore/internal/repository"

	"github.com/gin-gonic/gin"
)

// GetCurrentOperator 当前操作员身份与生效策略
func (h *Handler) GetCurrentOperator(c *gin.Context) {
	operator, ok := getOperator(c)
	if !ok {
		return
	}
	policies, err := h.AuthzService.GetOperatorPolicies(operator.ID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.query_failed", err)
		return
	}
	response.Success(c, gin.H{
		"id":       operator.ID,
		"name":     operator.Name,
		"roles":    operator.Roles,
		"policies": policies,
	})
}

// GetOperators 操作员列表
func (h *Handler) GetOperators(c *gin.Context) {
	operators, err := h.OperatorService.ListOperators()
	if err != nil {
		respondError(c, response.CodeInternal, "error.query_failed", err)
		return
	}
	response.Success(c, operators)
}

// GetAuthzRoles 角色及其策略
func (h *Handler) GetAuthzRoles(c *gin.Context) {
	roles, err := h.AuthzService.ListRoles()
	if err != nil {
		respondError(c, response.CodeInternal, "error.query_failed", err)
		return
	}
	items := make([]gin.H, 0, len(roles))
	for _, role := range roles {
		policies, err := h.AuthzService.GetRolePolicies(role)
		if err != nil {
			respondError(c, response.CodeInternal, "error.query_failed", err)
			return
		}
		items = append(items, gin.H{"role": role, "policies": policies})
	}
	response.Success(c, items)
}

// GetOperatorAuditLogs 操作员审计日志
func (h *Handler) GetOperatorAuditLogs(c *gin.Context) {
	page, pageSize := readPagination(c)
	createdFrom, createdTo, err := parseCreatedRange(c)
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	var operatorID uint
	if raw := strings.TrimSpace(c.Query("operator_id")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			respondError(c, response.CodeBadRequest, "error.bad_request", err)
			return
		}
		operatorID = uint(parsed)
	}

	logs, total, err := h.OperatorService.ListAuditLogs(repository.OperatorAuditLogListFilter{
		Page:        page,
		PageSize:    pageSize,
		OperatorID:  operatorID,
		Action:      strings.TrimSpace(c.Query("action")),
		Target:      strings.TrimSpace(c.Query("target")),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.query_failed", err)
		return
	}
	response.SuccessWithPage(c, logs, response.BuildPagination(page, pageSize, total))
}
