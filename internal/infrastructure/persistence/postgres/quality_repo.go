package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"adcraft-api/internal/domain/entity"
	"adcraft-api/internal/domain/repository"
)

// QualityRepository 质量门禁结果仓储实现
type QualityRepository struct {
	client *Client
}

// NewQualityRepository 创建质量门禁结果仓储
func NewQualityRepository(client *Client) *QualityRepository {
	return &QualityRepository{client: client}
}

// Create 保存质量门禁结果
func (r *QualityRepository) Create(ctx context.Context, v *entity.QualityValidation) error {
	ctx, span := tracer.Start(ctx, "postgres.QualityRepository.Create")
	defer span.End()

	if err := getDB(ctx, r.client.db).Create(v).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create quality validation: %w", err)
	}
	return nil
}

// GetByRunID 获取执行的质量门禁结果，不存在返回 nil
func (r *QualityRepository) GetByRunID(ctx context.Context, runID string) (*entity.QualityValidation, error) {
	ctx, span := tracer.Start(ctx, "postgres.QualityRepository.GetByRunID")
	defer span.End()

	var v entity.QualityValidation
	err := getDB(ctx, r.client.db).
		Where("run_id = ?", runID).
		Order("created_at DESC").
		First(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get quality validation: %w", err)
	}
	return &v, nil
}

// ListByTenant 获取租户的质量门禁历史
func (r *QualityRepository) ListByTenant(ctx context.Context, tenantID string, pagination repository.Pagination) (*repository.PagedResult[*entity.QualityValidation], error) {
	ctx, span := tracer.Start(ctx, "postgres.QualityRepository.ListByTenant")
	defer span.End()

	query := getDB(ctx, r.client.db).Model(&entity.QualityValidation{}).Where("tenant_id = ?", tenantID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count quality validations: %w", err)
	}

	var items []*entity.QualityValidation
	err := query.
		Order("created_at DESC").
		Limit(pagination.Limit()).
		Offset(pagination.Offset()).
		Find(&items).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list quality validations: %w", err)
	}

	return repository.NewPagedResult(items, total, pagination), nil
}
