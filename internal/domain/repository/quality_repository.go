package repository

import (
	"context"

	"adcraft-api/internal/domain/entity"
)

// QualityRepository 质量门禁结果仓储接口
type QualityRepository interface {
	// Create 保存质量门禁结果
	Create(ctx context.Context, v *entity.QualityValidation) error

	// GetByRunID 获取执行的质量门禁结果，不存在返回 nil
	GetByRunID(ctx context.Context, runID string) (*entity.QualityValidation, error)

	// ListByTenant 获取租户的质量门禁历史
	ListByTenant(ctx context.Context, tenantID string, pagination Pagination) (*PagedResult[*entity.QualityValidation], error)
}
