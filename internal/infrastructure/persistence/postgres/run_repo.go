package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"adcraft-api/internal/domain/entity"
	"adcraft-api/internal/domain/repository"
)

// RunRepository 渲染执行仓储实现
type RunRepository struct {
	client *Client
}

// NewRunRepository 创建渲染执行仓储
func NewRunRepository(client *Client) *RunRepository {
	return &RunRepository{client: client}
}

// Create 创建渲染执行
func (r *RunRepository) Create(ctx context.Context, run *entity.Run) error {
	ctx, span := tracer.Start(ctx, "postgres.RunRepository.Create")
	defer span.End()

	if err := getDB(ctx, r.client.db).Create(run).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取执行，不存在返回 nil
func (r *RunRepository) GetByID(ctx context.Context, id string) (*entity.Run, error) {
	ctx, span := tracer.Start(ctx, "postgres.RunRepository.GetByID")
	defer span.End()

	var run entity.Run
	err := getDB(ctx, r.client.db).First(&run, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// GetByProviderJobID 根据供应商作业句柄获取执行
func (r *RunRepository) GetByProviderJobID(ctx context.Context, jobID string) (*entity.Run, error) {
	ctx, span := tracer.Start(ctx, "postgres.RunRepository.GetByProviderJobID")
	defer span.End()

	var run entity.Run
	err := getDB(ctx, r.client.db).First(&run, "provider_job_id = ?", jobID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get run by provider job id: %w", err)
	}
	return &run, nil
}

// Update 更新执行
func (r *RunRepository) Update(ctx context.Context, run *entity.Run) error {
	ctx, span := tracer.Start(ctx, "postgres.RunRepository.Update")
	defer span.End()

	if err := getDB(ctx, r.client.db).Save(run).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// ListByPlan 获取计划的执行历史（按创建时间倒序）
func (r *RunRepository) ListByPlan(ctx context.Context, planID string, filter *repository.RunFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.Run], error) {
	ctx, span := tracer.Start(ctx, "postgres.RunRepository.ListByPlan")
	defer span.End()

	query := getDB(ctx, r.client.db).Model(&entity.Run{}).Where("plan_id = ?", planID)
	if filter != nil {
		if filter.State != "" {
			query = query.Where("state = ?", filter.State)
		}
		if filter.Tier != "" {
			query = query.Where("tier = ?", filter.Tier)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}

	var runs []*entity.Run
	err := query.
		Order("created_at DESC").
		Limit(pagination.Limit()).
		Offset(pagination.Offset()).
		Find(&runs).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	return repository.NewPagedResult(runs, total, pagination), nil
}

// GetActiveByPlan 获取计划当前未完结的执行
func (r *RunRepository) GetActiveByPlan(ctx context.Context, planID string) ([]*entity.Run, error) {
	ctx, span := tracer.Start(ctx, "postgres.RunRepository.GetActiveByPlan")
	defer span.End()

	var runs []*entity.Run
	err := getDB(ctx, r.client.db).
		Where("plan_id = ? AND state IN ?", planID, []entity.RunState{entity.RunStateQueued, entity.RunStateRunning}).
		Order("created_at DESC").
		Find(&runs).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get active runs: %w", err)
	}
	return runs, nil
}

// GetStaleRunning 获取长时间停留在 running 状态的执行，供恢复扫描使用
func (r *RunRepository) GetStaleRunning(ctx context.Context, olderThanSec int, limit int) ([]*entity.Run, error) {
	ctx, span := tracer.Start(ctx, "postgres.RunRepository.GetStaleRunning")
	defer span.End()

	var runs []*entity.Run
	err := getDB(ctx, r.client.db).
		Where("state = ? AND updated_at < NOW() - make_interval(secs => ?)", entity.RunStateRunning, olderThanSec).
		Order("updated_at ASC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get stale runs: %w", err)
	}
	return runs, nil
}

// CountActiveByTenant 统计租户未完结的执行数
func (r *RunRepository) CountActiveByTenant(ctx context.Context, tenantID string) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.RunRepository.CountActiveByTenant")
	defer span.End()

	var count int64
	err := getDB(ctx, r.client.db).
		Model(&entity.Run{}).
		Where("tenant_id = ? AND state IN ?", tenantID, []entity.RunState{entity.RunStateQueued, entity.RunStateRunning}).
		Count(&count).Error
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count active runs: %w", err)
	}
	return count, nil
}
