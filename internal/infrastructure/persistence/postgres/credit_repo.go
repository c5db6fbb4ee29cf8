package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"adcraft-api/internal/domain/entity"
	"adcraft-api/internal/domain/repository"
)

// CreditRepository 积分流水仓储实现
type CreditRepository struct {
	client *Client
}

// NewCreditRepository 创建积分流水仓储
func NewCreditRepository(client *Client) *CreditRepository {
	return &CreditRepository{client: client}
}

// Create 追加流水记录，run_id 上的唯一索引保证同一执行只扣一次
func (r *CreditRepository) Create(ctx context.Context, entry *entity.CreditLedgerEntry) error {
	ctx, span := tracer.Start(ctx, "postgres.CreditRepository.Create")
	defer span.End()

	if err := getDB(ctx, r.client.db).Create(entry).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create credit entry: %w", err)
	}
	return nil
}

// GetByRunID 获取执行对应的扣费记录，不存在返回 nil
func (r *CreditRepository) GetByRunID(ctx context.Context, runID string) (*entity.CreditLedgerEntry, error) {
	ctx, span := tracer.Start(ctx, "postgres.CreditRepository.GetByRunID")
	defer span.End()

	var entry entity.CreditLedgerEntry
	err := getDB(ctx, r.client.db).
		Where("run_id = ? AND type = ?", runID, entity.CreditEntryDeduct).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get credit entry: %w", err)
	}
	return &entry, nil
}

// ListByTenant 获取租户流水（按时间倒序）
func (r *CreditRepository) ListByTenant(ctx context.Context, tenantID string, pagination repository.Pagination) (*repository.PagedResult[*entity.CreditLedgerEntry], error) {
	ctx, span := tracer.Start(ctx, "postgres.CreditRepository.ListByTenant")
	defer span.End()

	query := getDB(ctx, r.client.db).Model(&entity.CreditLedgerEntry{}).Where("tenant_id = ?", tenantID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count credit entries: %w", err)
	}

	var entries []*entity.CreditLedgerEntry
	err := query.
		Order("created_at DESC").
		Limit(pagination.Limit()).
		Offset(pagination.Offset()).
		Find(&entries).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list credit entries: %w", err)
	}

	return repository.NewPagedResult(entries, total, pagination), nil
}
