package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"adcraft-api/internal/domain/entity"
	"adcraft-api/internal/domain/repository"
)

// AssetRepository 素材仓储实现
type AssetRepository struct {
	client *Client
}

// NewAssetRepository 创建素材仓储
func NewAssetRepository(client *Client) *AssetRepository {
	return &AssetRepository{client: client}
}

// Create 创建素材
func (r *AssetRepository) Create(ctx context.Context, asset *entity.Asset) error {
	ctx, span := tracer.Start(ctx, "postgres.AssetRepository.Create")
	defer span.End()

	if err := getDB(ctx, r.client.db).Create(asset).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create asset: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取素材，不存在返回 nil
func (r *AssetRepository) GetByID(ctx context.Context, id string) (*entity.Asset, error) {
	ctx, span := tracer.Start(ctx, "postgres.AssetRepository.GetByID")
	defer span.End()

	var asset entity.Asset
	err := getDB(ctx, r.client.db).First(&asset, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	return &asset, nil
}

// GetByIDs 批量获取素材
func (r *AssetRepository) GetByIDs(ctx context.Context, ids []string) ([]*entity.Asset, error) {
	ctx, span := tracer.Start(ctx, "postgres.AssetRepository.GetByIDs")
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}

	var assets []*entity.Asset
	err := getDB(ctx, r.client.db).Where("id IN ?", ids).Find(&assets).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get assets: %w", err)
	}
	return assets, nil
}

// Update 更新素材
func (r *AssetRepository) Update(ctx context.Context, asset *entity.Asset) error {
	ctx, span := tracer.Start(ctx, "postgres.AssetRepository.Update")
	defer span.End()

	if err := getDB(ctx, r.client.db).Save(asset).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update asset: %w", err)
	}
	return nil
}

// ListByTenant 获取租户素材列表
func (r *AssetRepository) ListByTenant(ctx context.Context, tenantID string, pagination repository.Pagination) (*repository.PagedResult[*entity.Asset], error) {
	ctx, span := tracer.Start(ctx, "postgres.AssetRepository.ListByTenant")
	defer span.End()

	query := getDB(ctx, r.client.db).Model(&entity.Asset{}).Where("tenant_id = ?", tenantID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count assets: %w", err)
	}

	var assets []*entity.Asset
	err := query.
		Order("created_at DESC").
		Limit(pagination.Limit()).
		Offset(pagination.Offset()).
		Find(&assets).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}

	return repository.NewPagedResult(assets, total, pagination), nil
}
