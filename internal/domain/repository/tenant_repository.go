package repository

import (
	"context"

	"adcraft-api/internal/domain/entity"
)

// TenantRepository 租户仓储接口
type TenantRepository interface {
	// Create 创建租户
	Create(ctx context.Context, tenant *entity.Tenant) error

	// GetByID 根据 ID 获取租户，不存在返回 nil
	GetByID(ctx context.Context, id string) (*entity.Tenant, error)

	// GetBySlug 根据 slug 获取租户
	GetBySlug(ctx context.Context, slug string) (*entity.Tenant, error)

	// Update 更新租户
	Update(ctx context.Context, tenant *entity.Tenant) error

	// AdjustCredits 原子调整余额并返回调整后的值，余额不足返回错误
	AdjustCredits(ctx context.Context, id string, delta int) (int, error)
}
