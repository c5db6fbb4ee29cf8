// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"adcraft-api/internal/domain/entity"
)

// PlanFilter 计划过滤条件
type PlanFilter struct {
	Status entity.PlanStatus
}

// PlanRepository 内容计划仓储接口
type PlanRepository interface {
	// Create 创建计划
	Create(ctx context.Context, plan *entity.Plan) error

	// GetByID 根据 ID 获取计划，不存在返回 nil
	GetByID(ctx context.Context, id string) (*entity.Plan, error)

	// Update 更新计划
	Update(ctx context.Context, plan *entity.Plan) error

	// Delete 删除计划
	Delete(ctx context.Context, id string) error

	// ListByTenant 获取租户计划列表
	ListByTenant(ctx context.Context, tenantID string, filter *PlanFilter, pagination Pagination) (*PagedResult[*entity.Plan], error)

	// UpdateStatus 更新计划状态
	UpdateStatus(ctx context.Context, id string, status entity.PlanStatus) error
}
