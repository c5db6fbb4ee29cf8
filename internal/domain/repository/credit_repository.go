package repository

import (
	"context"

	"adcraft-api/internal/domain/entity"
)

// CreditRepository 积分流水仓储接口
type CreditRepository interface {
	// Create 追加流水记录，run_id 上的唯一索引保证扣费幂等
	Create(ctx context.Context, entry *entity.CreditLedgerEntry) error

	// GetByRunID 获取执行对应的扣费记录，不存在返回 nil
	GetByRunID(ctx context.Context, runID string) (*entity.CreditLedgerEntry, error)

	// ListByTenant 获取租户流水（按时间倒序）
	ListByTenant(ctx context.Context, tenantID string, pagination Pagination) (*PagedResult[*entity.CreditLedgerEntry], error)
}
