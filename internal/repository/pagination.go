package repository

import "gorm.io/gorm"

// maxListPageSize 后台列表单页上限，登录日志与网关会话表增长很快
const maxListPageSize = 200

// applyPagination 应用分页参数，页码从 1 开始，单页数量不超过 maxListPageSize
func applyPagination(query *gorm.DB, page, pageSize int) *gorm.DB {
	if query == nil || pageSize <= 0 {
		return query
	}
	if pageSize > maxListPageSize {
		pageSize = maxListPageSize
	}
	if page < 1 {
		page = 1
	}
	return query.Limit(pageSize).Offset((page - 1) * pageSize)
}
