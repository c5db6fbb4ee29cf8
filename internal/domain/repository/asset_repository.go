package repository

import (
	"context"

	"adcraft-api/internal/domain/entity"
)

// AssetRepository 素材仓储接口
type AssetRepository interface {
	// Create 创建素材
	Create(ctx context.Context, asset *entity.Asset) error

	// GetByID 根据 ID 获取素材，不存在返回 nil
	GetByID(ctx context.Context, id string) (*entity.Asset, error)

	// GetByIDs 批量获取素材，结果顺序不保证
	GetByIDs(ctx context.Context, ids []string) ([]*entity.Asset, error)

	// Update 更新素材
	Update(ctx context.Context, asset *entity.Asset) error

	// ListByTenant 获取租户素材列表
	ListByTenant(ctx context.Context, tenantID string, pagination Pagination) (*PagedResult[*entity.Asset], error)
}

// AssetVectorRepository 素材向量仓储接口（向量库实现）
type AssetVectorRepository interface {
	// Upsert 写入或更新素材向量
	Upsert(ctx context.Context, tenantID, assetID string, vector []float32) error

	// SearchMaxSimilarity 在租户素材向量中检索与给定向量的最大相似度（0-1）
	SearchMaxSimilarity(ctx context.Context, tenantID string, vector []float32) (float32, error)

	// Delete 删除素材向量
	Delete(ctx context.Context, assetID string) error
}
