package repository

import (
	"context"

	"adcraft-api/internal/domain/entity"
)

// RunFilter 渲染执行过滤条件
type RunFilter struct {
	State entity.RunState
	Tier  entity.RenderTier
}

// RunRepository 渲染执行仓储接口
type RunRepository interface {
	// Create 创建渲染执行
	Create(ctx context.Context, run *entity.Run) error

	// GetByID 根据 ID 获取执行，不存在返回 nil
	GetByID(ctx context.Context, id string) (*entity.Run, error)

	// GetByProviderJobID 根据供应商作业句柄获取执行
	GetByProviderJobID(ctx context.Context, jobID string) (*entity.Run, error)

	// Update 更新执行
	Update(ctx context.Context, run *entity.Run) error

	// ListByPlan 获取计划的执行历史（按创建时间倒序）
	ListByPlan(ctx context.Context, planID string, filter *RunFilter, pagination Pagination) (*PagedResult[*entity.Run], error)

	// GetActiveByPlan 获取计划当前未完结的执行
	GetActiveByPlan(ctx context.Context, planID string) ([]*entity.Run, error)

	// GetStaleRunning 获取超过指定秒数仍在 running 状态的执行，供恢复扫描使用
	GetStaleRunning(ctx context.Context, olderThanSec int, limit int) ([]*entity.Run, error)

	// CountActiveByTenant 统计租户未完结的执行数
	CountActiveByTenant(ctx context.Context, tenantID string) (int64, error)
}
