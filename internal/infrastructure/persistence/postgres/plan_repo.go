// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"adcraft-api/internal/domain/entity"
	"adcraft-api/internal/domain/repository"
)

// PlanRepository 内容计划仓储实现
type PlanRepository struct {
	client *Client
}

// NewPlanRepository 创建内容计划仓储
func NewPlanRepository(client *Client) *PlanRepository {
	return &PlanRepository{client: client}
}

// Create 创建计划
func (r *PlanRepository) Create(ctx context.Context, plan *entity.Plan) error {
	ctx, span := tracer.Start(ctx, "postgres.PlanRepository.Create")
	defer span.End()

	if err := getDB(ctx, r.client.db).Create(plan).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create plan: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取计划，不存在返回 nil
func (r *PlanRepository) GetByID(ctx context.Context, id string) (*entity.Plan, error) {
	ctx, span := tracer.Start(ctx, "postgres.PlanRepository.GetByID")
	defer span.End()

	var plan entity.Plan
	err := getDB(ctx, r.client.db).First(&plan, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return &plan, nil
}

// Update 更新计划
func (r *PlanRepository) Update(ctx context.Context, plan *entity.Plan) error {
	ctx, span := tracer.Start(ctx, "postgres.PlanRepository.Update")
	defer span.End()

	if err := getDB(ctx, r.client.db).Save(plan).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update plan: %w", err)
	}
	return nil
}

// Delete 删除计划
func (r *PlanRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.PlanRepository.Delete")
	defer span.End()

	if err := getDB(ctx, r.client.db).Delete(&entity.Plan{}, "id = ?", id).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	return nil
}

// ListByTenant 获取租户计划列表
func (r *PlanRepository) ListByTenant(ctx context.Context, tenantID string, filter *repository.PlanFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.Plan], error) {
	ctx, span := tracer.Start(ctx, "postgres.PlanRepository.ListByTenant")
	defer span.End()

	query := getDB(ctx, r.client.db).Model(&entity.Plan{}).Where("tenant_id = ?", tenantID)
	if filter != nil && filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count plans: %w", err)
	}

	var plans []*entity.Plan
	err := query.
		Order("updated_at DESC").
		Limit(pagination.Limit()).
		Offset(pagination.Offset()).
		Find(&plans).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}

	return repository.NewPagedResult(plans, total, pagination), nil
}

// UpdateStatus 更新计划状态
func (r *PlanRepository) UpdateStatus(ctx context.Context, id string, status entity.PlanStatus) error {
	ctx, span := tracer.Start(ctx, "postgres.PlanRepository.UpdateStatus")
	defer span.End()

	err := getDB(ctx, r.client.db).
		Model(&entity.Plan{}).
		Where("id = ?", id).
		Update("status", status).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update plan status: %w", err)
	}
	return nil
}
